package forward

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/gray-logic-doorbird/internal/host"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/mqtt"
)

// Logger is the logger used by the sinks.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Publisher sends MQTT messages. *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTOptions configures an MQTT forwarder.
type MQTTOptions struct {
	// Publisher is the broker connection. Required.
	Publisher Publisher

	// Topics builds event topic names.
	Topics mqtt.Topics

	// QoS for event messages.
	QoS byte

	// QueueSize is the number of events buffered ahead of the broker.
	QueueSize int

	// Logger is optional.
	Logger Logger
}

// eventMessage is the JSON payload of a forwarded event.
type eventMessage struct {
	ID        string         `json:"id"`
	EventType string         `json:"event_type"`
	EntryID   string         `json:"entry_id,omitempty"`
	TimeFired string         `json:"time_fired"`
	Data      map[string]any `json:"data"`
}

// MQTT publishes bus events to doorbird/event/<entry id>/<event type>.
// Messages are not retained.
type MQTT struct {
	publisher Publisher
	topics    mqtt.Topics
	qos       byte
	logger    Logger
	async     *host.AsyncListener
}

// NewMQTT creates an MQTT forwarder. Call Start, then subscribe Listen.
func NewMQTT(opts MQTTOptions) *MQTT {
	f := &MQTT{
		publisher: opts.Publisher,
		topics:    opts.Topics,
		qos:       opts.QoS,
		logger:    opts.Logger,
	}
	f.async = host.NewAsyncListener("mqtt", opts.QueueSize, f.publish, opts.Logger)
	return f
}

// Listen is the bus Listener.
func (f *MQTT) Listen(e host.Event) { f.async.Listen(e) }

// Start launches the publisher goroutine.
func (f *MQTT) Start() { f.async.Start() }

// Stop publishes what is queued and stops the publisher goroutine.
func (f *MQTT) Stop() { f.async.Stop() }

func (f *MQTT) publish(e host.Event) {
	payload, err := json.Marshal(eventMessage{
		ID:        e.ID,
		EventType: e.Type,
		EntryID:   e.EntryID,
		TimeFired: e.TimeFired.UTC().Format(time.RFC3339Nano),
		Data:      e.Data,
	})
	if err != nil {
		f.logError("failed to encode event", e, err)
		return
	}

	if err := f.publisher.Publish(f.topics.Event(e.EntryID, e.Type), payload, f.qos, false); err != nil {
		f.logError("failed to publish event", e, err)
	}
}

func (f *MQTT) logError(msg string, e host.Event, err error) {
	if f.logger != nil {
		f.logger.Error(msg, "event_type", e.Type, "entry_id", e.EntryID, "error", err)
	}
}
