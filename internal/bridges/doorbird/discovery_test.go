package doorbird

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/mqtt"
)

func newDiscoveryEnv(t *testing.T) (*testEnv, *mockPublisher) {
	t.Helper()
	pub := &mockPublisher{}
	env := newTestEnv(t, &DiscoveryOptions{
		Publisher: pub,
		NodeID:    "doorbird-bridge",
		Topics:    mqtt.Topics{},
		QoS:       1,
	})
	return env, pub
}

func TestDiscovery_PublishedOnSetup(t *testing.T) {
	env, pub := newDiscoveryEnv(t)
	if err := env.integration.SetupEntry(context.Background(), testEntry("E1", "10.0.0.2", "Front Door")); err != nil {
		t.Fatalf("SetupEntry() error = %v", err)
	}

	// Two triggers and three buttons.
	if n := len(pub.order); n != 5 {
		t.Fatalf("published %d configs, want 5: %v", n, pub.order)
	}

	raw, ok := pub.payload("homeassistant/device_automation/doorbird-bridge/front_door_doorbell/config")
	if !ok {
		t.Fatalf("doorbell trigger not published: %v", pub.order)
	}
	var trigger triggerConfig
	if err := json.Unmarshal(raw, &trigger); err != nil {
		t.Fatalf("decoding trigger: %v", err)
	}
	if trigger.Topic != "doorbird/event/E1/doorbird_doorbell" {
		t.Errorf("trigger topic = %q", trigger.Topic)
	}
	if trigger.Type != "button_short_press" || trigger.Subtype != "doorbell" || trigger.AutomationType != "trigger" {
		t.Errorf("trigger = %+v", trigger)
	}
	if trigger.Device.Manufacturer != Manufacturer || trigger.Device.Model != "DoorBird D2101V" || trigger.Device.SWVersion != "000125" {
		t.Errorf("device = %+v", trigger.Device)
	}
	if len(trigger.Device.Connections) != 1 || trigger.Device.Connections[0][1] != "1c:ca:e3:70:00:00" {
		t.Errorf("connections = %v", trigger.Device.Connections)
	}

	raw, ok = pub.payload("homeassistant/button/doorbird-bridge/front_door_relay_1/config")
	if !ok {
		t.Fatalf("relay button not published: %v", pub.order)
	}
	var button buttonConfig
	if err := json.Unmarshal(raw, &button); err != nil {
		t.Fatalf("decoding button: %v", err)
	}
	if button.CommandTopic != "doorbird/command/button.front_door_relay_1" {
		t.Errorf("command topic = %q", button.CommandTopic)
	}
	if button.AvailabilityTopic != "doorbird/status" || button.UniqueID != "doorbird-bridge_front_door_relay_1" {
		t.Errorf("button = %+v", button)
	}

	for _, topic := range pub.order {
		payload, _ := pub.payload(topic)
		if bytes.Contains(payload, []byte(testPassword)) {
			t.Errorf("config on %s leaks credentials", topic)
		}
	}
}

func TestDiscovery_ClearedOnUnload(t *testing.T) {
	env, pub := newDiscoveryEnv(t)
	entry := testEntry("E1", "10.0.0.2", "Front Door")
	ctx := context.Background()
	if err := env.integration.SetupEntry(ctx, entry); err != nil {
		t.Fatalf("SetupEntry() error = %v", err)
	}
	published := append([]string(nil), pub.order...)

	if ok, err := env.integration.UnloadEntry(ctx, entry); !ok || err != nil {
		t.Fatalf("UnloadEntry() = %v, %v", ok, err)
	}
	for _, topic := range published {
		payload, _ := pub.payload(topic)
		if len(payload) != 0 {
			t.Errorf("config on %s not cleared: %s", topic, payload)
		}
	}
}

func TestFormatMAC(t *testing.T) {
	tests := map[string]string{
		"1CCAE3700000":      "1c:ca:e3:70:00:00",
		"1c:ca:e3:70:00:00": "1c:ca:e3:70:00:00",
		"ABC":               "abc",
	}
	for in, want := range tests {
		if got := formatMAC(in); got != want {
			t.Errorf("formatMAC(%q) = %q, want %q", in, got, want)
		}
	}
}
