package logbook

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-doorbird/internal/host"
)

// writeTimeout bounds one insert.
const writeTimeout = 5 * time.Second

// Logger is the logger used by the recorder.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	// Repository receives the records. Required.
	Repository Repository

	// Accept selects the event types to record. Nil records everything.
	Accept func(eventType string) bool

	// QueueSize is the number of events buffered ahead of the database.
	QueueSize int

	// Logger is optional.
	Logger Logger
}

// Recorder is a bus listener writing events to the repository on its own
// goroutine.
type Recorder struct {
	repo   Repository
	accept func(string) bool
	logger Logger
	async  *host.AsyncListener
}

// NewRecorder creates a recorder. Call Start, then subscribe Listen.
func NewRecorder(opts RecorderOptions) *Recorder {
	r := &Recorder{
		repo:   opts.Repository,
		accept: opts.Accept,
		logger: opts.Logger,
	}
	r.async = host.NewAsyncListener("logbook", opts.QueueSize, r.write, opts.Logger)
	return r
}

// Listen is the bus Listener.
func (r *Recorder) Listen(e host.Event) {
	if r.accept != nil && !r.accept(e.Type) {
		return
	}
	r.async.Listen(e)
}

// Start launches the writer goroutine.
func (r *Recorder) Start() { r.async.Start() }

// Stop writes what is queued and stops the writer.
func (r *Recorder) Stop() { r.async.Stop() }

func (r *Recorder) write(e host.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	err := r.repo.Create(ctx, &Record{
		ID:        e.ID,
		EventType: e.Type,
		EntryID:   e.EntryID,
		Data:      e.Data,
		TimeFired: e.TimeFired,
	})
	if err != nil && r.logger != nil {
		r.logger.Error("failed to record event", "event_type", e.Type, "error", err)
	}
}
