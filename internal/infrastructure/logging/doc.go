// Package logging provides structured logging for the DoorBird bridge.
//
// It wraps log/slog so every component logs the same way:
//
//   - JSON output for production, text for development
//   - service and version fields on every record
//   - level filtering (debug, info, warn, error)
//   - credential scrubbing
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("door station ready", "host", host, "username", user)
//
// Attributes named password, token or secret are written as "***", and
// credentials inside URL strings or error messages are scrubbed. Callers
// still must not log passwords deliberately.
package logging
