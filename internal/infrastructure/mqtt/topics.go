package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicBase is the root of every topic the bridge owns.
const DefaultTopicBase = "doorbird"

// Availability payloads published on Topics.Status.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Topics builds the bridge's MQTT topic names.
//
//	topics := mqtt.Topics{Base: "doorbird"}
//	topics.Event("3f2a", "doorbird_doorbell") // "doorbird/event/3f2a/doorbird_doorbell"
//
// The zero value uses DefaultTopicBase.
type Topics struct {
	Base string
}

func (t Topics) base() string {
	if t.Base == "" {
		return DefaultTopicBase
	}
	return strings.TrimSuffix(t.Base, "/")
}

// Status is the retained availability topic, also used as the LWT topic.
//
// Example: doorbird/status
func (t Topics) Status() string {
	return t.base() + "/status"
}

// Event is the topic a bus event of the given type, raised for the given
// config entry, is forwarded to. Events not tied to an entry use "bridge".
//
// Example: doorbird/event/6b1d0c3e/doorbird_motionsensor
func (t Topics) Event(entryID, eventType string) string {
	if entryID == "" {
		entryID = "bridge"
	}
	return fmt.Sprintf("%s/event/%s/%s", t.base(), entryID, eventType)
}

// AllEvents matches every forwarded event.
func (t Topics) AllEvents() string {
	return t.base() + "/event/#"
}

// Command is the topic that triggers a pressable entity.
//
// Example: doorbird/command/button.front_door_relay_1
func (t Topics) Command(entityID string) string {
	return fmt.Sprintf("%s/command/%s", t.base(), entityID)
}

// AllCommands matches every command topic.
func (t Topics) AllCommands() string {
	return t.base() + "/command/+"
}

// EntityFromCommand extracts the entity id from a command topic.
// It returns false when topic is not a command topic of this base.
func (t Topics) EntityFromCommand(topic string) (string, bool) {
	prefix := t.base() + "/command/"
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	id := strings.TrimPrefix(topic, prefix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// Discovery returns a Home Assistant discovery config topic.
//
// Example: homeassistant/device_automation/doorbird-bridge/front_door_doorbell/config
func Discovery(prefix, component, nodeID, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", prefix, component, nodeID, objectID)
}
