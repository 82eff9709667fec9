package logging

import (
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/config"
)

const (
	serviceName = "doorbird-bridge"
	redacted    = "***"
)

// secretKeys are attribute keys whose values are never written.
var secretKeys = map[string]bool{
	"password": true,
	"token":    true,
	"secret":   true,
}

// credentialPattern matches credentials carried in URLs: a password query
// parameter or userinfo before the host.
var credentialPattern = regexp.MustCompile(`(?i)(password=)[^&\s"]*|(://[^/:@\s]+:)[^@/\s]+@`)

// Logger is the bridge logger. It satisfies the Logger interfaces of the
// host and integration packages and is safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to stdout, or stderr when cfg.Output says so.
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		output = os.Stderr
	}
	return NewWithWriter(cfg, version, output)
}

// NewWithWriter is New with an explicit destination. Records are JSON unless
// cfg.Format is "text", carry the service name and version, and have
// credentials scrubbed.
func NewWithWriter(cfg config.LoggingConfig, version string, output io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		ReplaceAttr: scrub,
	}

	var handler slog.Handler = slog.NewJSONHandler(output, opts)
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{Logger: slog.New(handler).With(
		slog.String("service", serviceName),
		slog.String("version", version),
	)}
}

// scrub replaces secret attributes and credentials embedded in string or
// error values.
func scrub(_ []string, a slog.Attr) slog.Attr {
	if secretKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redacted)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		if s := a.Value.String(); credentialPattern.MatchString(s) {
			return slog.String(a.Key, scrubString(s))
		}
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			if s := err.Error(); credentialPattern.MatchString(s) {
				return slog.String(a.Key, scrubString(s))
			}
		}
	}
	return a
}

func scrubString(s string) string {
	return credentialPattern.ReplaceAllStringFunc(s, func(m string) string {
		if strings.HasPrefix(strings.ToLower(m), "password=") {
			return m[:len("password=")] + redacted
		}
		// userinfo: keep "://user:"
		user := len("://") + strings.Index(m[len("://"):], ":") + 1
		return m[:user] + redacted + "@"
	})
}

// parseLevel maps debug, warn and error to their slog levels. Anything else
// is info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger carrying extra attributes.
//
//	stationLog := logger.With("host", host, "username", user)
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the logger used before configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json"}, "dev")
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}
