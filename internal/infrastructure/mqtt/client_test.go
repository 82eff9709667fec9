package mqtt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) record(level, msg string) {
	l.mu.Lock()
	l.lines = append(l.lines, level+": "+msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Error(msg string, _ ...any) { l.record("error", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.record("warn", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.record("info", msg) }

func TestPublish_Validation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{name: "empty topic", topic: "", qos: 0, want: ErrInvalidTopic},
		{name: "wildcard topic", topic: "doorbird/command/+", qos: 0, want: ErrInvalidTopic},
		{name: "invalid qos", topic: "doorbird/x", qos: 3, want: ErrInvalidQoS},
		{name: "payload too large", topic: "doorbird/x", payload: make([]byte, maxPayloadSize+1), want: ErrPublishFailed},
		{name: "not connected", topic: "doorbird/x", qos: 1, want: ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPublishJSON_EncodingError(t *testing.T) {
	c := &Client{}
	err := c.PublishJSON("doorbird/x", make(chan int), false)
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON() error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 0, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("doorbird/command/+", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("doorbird/command/+", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("doorbird/command/+", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe(disconnected) error = %v, want ErrNotConnected", err)
	}
	if c.HasSubscription("doorbird/command/+") {
		t.Error("failed subscription should not be tracked")
	}
}

func TestValidateFilter(t *testing.T) {
	tests := []struct {
		filter string
		valid  bool
	}{
		{filter: "doorbird/command/+", valid: true},
		{filter: "doorbird/#", valid: true},
		{filter: "#", valid: true},
		{filter: "+/event/+/doorbird_doorbell", valid: true},
		{filter: "", valid: false},
		{filter: "doorbird/#/event", valid: false},
		{filter: "doorbird/cmd#", valid: false},
		{filter: "doorbird/cmd+", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			err := validateFilter(tt.filter)
			if tt.valid && err != nil {
				t.Errorf("validateFilter(%q) error = %v, want nil", tt.filter, err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidTopic) {
				t.Errorf("validateFilter(%q) error = %v, want ErrInvalidTopic", tt.filter, err)
			}
		})
	}
}

func TestHealthCheck_Disconnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestClose_NilClient(t *testing.T) {
	if err := (&Client{}).Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}

func TestDispatch_RecoversPanicAndLogsErrors(t *testing.T) {
	logger := &recordingLogger{}
	c := &Client{}
	c.SetLogger(logger)

	c.dispatch(func(string, []byte) error { panic("boom") }, "doorbird/command/a", nil)
	c.dispatch(func(string, []byte) error { return errors.New("bad payload") }, "doorbird/command/a", nil)

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.lines) != 2 {
		t.Fatalf("logged %d lines, want 2: %v", len(logger.lines), logger.lines)
	}
	if !strings.Contains(logger.lines[0], "panic") {
		t.Errorf("first line = %q, want panic record", logger.lines[0])
	}
	if !strings.HasPrefix(logger.lines[1], "warn:") {
		t.Errorf("second line = %q, want warn record", logger.lines[1])
	}
}
