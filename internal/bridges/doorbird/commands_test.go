package doorbird

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-doorbird/internal/host"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/mqtt"
)

// mockSubscriber keeps the handlers registered per filter.
type mockSubscriber struct {
	handlers     map[string]mqtt.MessageHandler
	unsubscribed []string
	err          error
}

func (s *mockSubscriber) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	if s.err != nil {
		return s.err
	}
	if s.handlers == nil {
		s.handlers = make(map[string]mqtt.MessageHandler)
	}
	s.handlers[topic] = handler
	return nil
}

func (s *mockSubscriber) Unsubscribe(topic string) error {
	s.unsubscribed = append(s.unsubscribed, topic)
	delete(s.handlers, topic)
	return nil
}

func TestSubscribeCommands(t *testing.T) {
	env := newTestEnv(t, nil)
	if err := env.integration.SetupEntry(context.Background(), testEntry("E1", "10.0.0.2", "Front Door")); err != nil {
		t.Fatalf("SetupEntry() error = %v", err)
	}

	sub := &mockSubscriber{}
	topics := mqtt.Topics{}
	stop, err := SubscribeCommands(sub, topics, 1, env.entities, env.logger)
	if err != nil {
		t.Fatalf("SubscribeCommands() error = %v", err)
	}

	handler, ok := sub.handlers["doorbird/command/+"]
	if !ok {
		t.Fatalf("subscriptions = %v, want doorbird/command/+", sub.handlers)
	}

	if err := handler(topics.Command("button.front_door_ir"), nil); err != nil {
		t.Fatalf("handler(ir) error = %v", err)
	}
	device := env.device("10.0.0.2")
	device.mu.Lock()
	lights := device.lights
	device.mu.Unlock()
	if lights != 1 {
		t.Errorf("light calls = %d, want 1", lights)
	}

	if err := handler(topics.Command("camera.front_door_live"), nil); !errors.Is(err, host.ErrNotPressable) {
		t.Errorf("handler(camera) error = %v, want ErrNotPressable", err)
	}
	if err := handler(topics.Command("button.missing"), nil); !errors.Is(err, host.ErrEntityNotFound) {
		t.Errorf("handler(missing) error = %v, want ErrEntityNotFound", err)
	}
	if err := handler("other/topic", nil); err == nil {
		t.Error("handler(other/topic) error = nil, want error")
	}

	if err := stop(); err != nil {
		t.Fatalf("stop() error = %v", err)
	}
	if len(sub.unsubscribed) != 1 || sub.unsubscribed[0] != "doorbird/command/+" {
		t.Errorf("unsubscribed = %v", sub.unsubscribed)
	}
}

func TestSubscribeCommands_SubscribeError(t *testing.T) {
	sub := &mockSubscriber{err: errors.New("not connected")}
	if _, err := SubscribeCommands(sub, mqtt.Topics{}, 1, host.NewEntityRegistry(), nil); err == nil {
		t.Fatal("SubscribeCommands() error = nil, want error")
	}
}
