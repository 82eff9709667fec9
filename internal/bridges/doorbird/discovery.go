package doorbird

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-doorbird/internal/bridges/doorbird/bha"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/mqtt"
)

// Publisher sends MQTT messages. *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// DiscoveryOptions configures Home Assistant MQTT discovery.
type DiscoveryOptions struct {
	// Publisher is the broker connection. Required.
	Publisher Publisher

	// Prefix is the discovery prefix, usually "homeassistant".
	Prefix string

	// NodeID groups this bridge's configs, usually the bridge id.
	NodeID string

	// Topics are the bridge topics the configs point at.
	Topics mqtt.Topics

	// QoS for command subscriptions advertised to Home Assistant.
	QoS byte
}

type discovery struct {
	opts DiscoveryOptions
}

func newDiscovery(opts DiscoveryOptions) (*discovery, error) {
	if opts.Publisher == nil {
		return nil, fmt.Errorf("discovery publisher is required")
	}
	if opts.Prefix == "" {
		opts.Prefix = "homeassistant"
	}
	if opts.NodeID == "" {
		return nil, fmt.Errorf("discovery node id is required")
	}
	return &discovery{opts: opts}, nil
}

// haDevice is the device block shared by every config of a station.
type haDevice struct {
	Identifiers  []string   `json:"identifiers"`
	Connections  [][]string `json:"connections,omitempty"`
	Name         string     `json:"name"`
	Manufacturer string     `json:"manufacturer"`
	Model        string     `json:"model,omitempty"`
	SWVersion    string     `json:"sw_version,omitempty"`
}

type triggerConfig struct {
	AutomationType string   `json:"automation_type"`
	Topic          string   `json:"topic"`
	Type           string   `json:"type"`
	Subtype        string   `json:"subtype"`
	Device         haDevice `json:"device"`
}

type buttonConfig struct {
	Name                string   `json:"name"`
	UniqueID            string   `json:"unique_id"`
	CommandTopic        string   `json:"command_topic"`
	AvailabilityTopic   string   `json:"availability_topic"`
	PayloadAvailable    string   `json:"payload_available"`
	PayloadNotAvailable string   `json:"payload_not_available"`
	QoS                 byte     `json:"qos"`
	Device              haDevice `json:"device"`
}

type discoveryMessage struct {
	topic   string
	payload any
}

// messages builds the retained configs for one station.
func (d *discovery) messages(entryID string, session *ConfiguredDoorBird, info map[string]any, buttons []*Button) []discoveryMessage {
	device := haDevice{
		Identifiers:  []string{Domain + "_" + entryID},
		Name:         session.Name(),
		Manufacturer: Manufacturer,
		Model:        infoString(info, infoDeviceType),
		SWVersion:    infoString(info, infoFirmware),
	}
	if mac := MACAddress(info); mac != "" {
		device.Identifiers = append(device.Identifiers, mac)
		device.Connections = [][]string{{"mac", formatMAC(mac)}}
	}

	slug := session.Slug()
	triggers := []struct{ event, triggerType string }{
		{bha.EventDoorbell, "button_short_press"},
		{bha.EventMotionSensor, "motion"},
	}

	var msgs []discoveryMessage
	for _, t := range triggers {
		msgs = append(msgs, discoveryMessage{
			topic: mqtt.Discovery(d.opts.Prefix, "device_automation", d.opts.NodeID, slug+"_"+t.event),
			payload: triggerConfig{
				AutomationType: "trigger",
				Topic:          d.opts.Topics.Event(entryID, EventType(t.event)),
				Type:           t.triggerType,
				Subtype:        t.event,
				Device:         device,
			},
		})
	}

	for _, b := range buttons {
		objectID := strings.TrimPrefix(b.EntityID(), "button.")
		msgs = append(msgs, discoveryMessage{
			topic: mqtt.Discovery(d.opts.Prefix, "button", d.opts.NodeID, objectID),
			payload: buttonConfig{
				Name:                b.Name(),
				UniqueID:            d.opts.NodeID + "_" + objectID,
				CommandTopic:        d.opts.Topics.Command(b.EntityID()),
				AvailabilityTopic:   d.opts.Topics.Status(),
				PayloadAvailable:    mqtt.PayloadOnline,
				PayloadNotAvailable: mqtt.PayloadOffline,
				QoS:                 d.opts.QoS,
				Device:              device,
			},
		})
	}
	return msgs
}

// formatMAC turns "1CCAE3700000" into "1c:ca:e3:70:00:00".
func formatMAC(mac string) string {
	mac = strings.ToLower(strings.ReplaceAll(mac, ":", ""))
	if len(mac) != 12 {
		return mac
	}
	parts := make([]string, 0, 6)
	for i := 0; i < 12; i += 2 {
		parts = append(parts, mac[i:i+2])
	}
	return strings.Join(parts, ":")
}

// publishDiscovery announces a station and remembers the topics used.
func (i *Integration) publishDiscovery(ctx context.Context, entryID string, reg *RegistryEntry) {
	if i.discovery == nil {
		return
	}

	var buttons []*Button
	for _, e := range i.entities.ForEntry(entryID) {
		if b, ok := e.(*Button); ok {
			buttons = append(buttons, b)
		}
	}

	var topics []string
	for _, msg := range i.discovery.messages(entryID, reg.Session, reg.Info, buttons) {
		payload, err := json.Marshal(msg.payload)
		if err != nil {
			i.logger.Error("failed to encode discovery config", "topic", msg.topic, "error", err)
			continue
		}
		if err := i.discovery.opts.Publisher.Publish(msg.topic, payload, 1, true); err != nil {
			i.logger.Warn("failed to publish discovery config", "topic", msg.topic, "error", err)
			continue
		}
		topics = append(topics, msg.topic)
	}

	err := i.loop.Call(ctx, func() { reg.discoveryTopics = topics })
	if err != nil {
		i.logger.Warn("failed to record discovery topics", "entry_id", entryID, "error", err)
	}
}

// clearDiscovery removes retained configs with empty payloads.
func (i *Integration) clearDiscovery(entryID string, topics []string) {
	if i.discovery == nil {
		return
	}
	for _, topic := range topics {
		if err := i.discovery.opts.Publisher.Publish(topic, []byte{}, 1, true); err != nil {
			i.logger.Warn("failed to clear discovery config", "entry_id", entryID, "topic", topic, "error", err)
		}
	}
}
