package forward

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-doorbird/internal/host"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/mqtt"
)

type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type mockPublisher struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (m *mockPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, published{topic: topic, payload: payload, qos: qos, retained: retained})
	return m.err
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Warn(string, ...any)  {}
func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func TestMQTT_PublishesEvents(t *testing.T) {
	pub := &mockPublisher{}
	f := NewMQTT(MQTTOptions{Publisher: pub, Topics: mqtt.Topics{}, QoS: 1})
	f.Start()

	bus := host.NewBus()
	bus.Subscribe(host.MatchAll, f.Listen)
	fired := bus.Fire("doorbird_doorbell", "entry-1", map[string]any{
		"timestamp": "2026-03-01T09:00:00Z",
		"entity_id": "camera.front_last_ring",
	})
	f.Stop()

	if len(pub.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.topic != "doorbird/event/entry-1/doorbird_doorbell" {
		t.Errorf("topic = %q", msg.topic)
	}
	if msg.qos != 1 || msg.retained {
		t.Errorf("qos/retained = %d/%v, want 1/false", msg.qos, msg.retained)
	}

	var got eventMessage
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if got.ID != fired.ID || got.EventType != "doorbird_doorbell" || got.EntryID != "entry-1" {
		t.Errorf("payload = %+v", got)
	}
	if got.Data["entity_id"] != "camera.front_last_ring" {
		t.Errorf("payload data = %v", got.Data)
	}
	if _, err := time.Parse(time.RFC3339Nano, got.TimeFired); err != nil {
		t.Errorf("time_fired %q not RFC 3339: %v", got.TimeFired, err)
	}
}

func TestMQTT_LogsPublishFailure(t *testing.T) {
	pub := &mockPublisher{err: errors.New("not connected")}
	logger := &recordingLogger{}
	f := NewMQTT(MQTTOptions{Publisher: pub, Logger: logger})
	f.Start()
	f.Listen(host.Event{Type: "doorbird_motionsensor"})
	f.Stop()

	if len(logger.errors) != 1 || logger.errors[0] != "failed to publish event" {
		t.Errorf("logged errors = %v, want one publish failure", logger.errors)
	}
}

type mockWriter struct {
	mu     sync.Mutex
	points []influxdb.EventPoint
}

func (m *mockWriter) WriteEvent(e influxdb.EventPoint) {
	m.mu.Lock()
	m.points = append(m.points, e)
	m.mu.Unlock()
}

func TestInflux_WritesPoints(t *testing.T) {
	w := &mockWriter{}
	r := NewInflux(w, 0, nil)
	r.Start()

	when := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	r.Listen(host.Event{Type: "doorbird_doorbell", EntryID: "e1", TimeFired: when,
		Data: map[string]any{"entity_id": "camera.front_last_ring"}})
	r.Listen(host.Event{Type: "doorbird_motionsensor", EntryID: "e1", TimeFired: when})
	r.Stop()

	if len(w.points) != 2 {
		t.Fatalf("points = %d, want 2", len(w.points))
	}
	want := influxdb.EventPoint{Type: "doorbird_doorbell", EntryID: "e1", EntityID: "camera.front_last_ring", Time: when}
	if w.points[0] != want {
		t.Errorf("points[0] = %+v, want %+v", w.points[0], want)
	}
	if w.points[1].EntityID != "" {
		t.Errorf("points[1].EntityID = %q, want empty", w.points[1].EntityID)
	}
}
