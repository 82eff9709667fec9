package doorbird

import (
	"strings"
	"time"
)

// ConfiguredDoorBird pairs a device with its display name.
// It is immutable and safe to share.
type ConfiguredDoorBird struct {
	device Device
	name   string
}

// NewConfiguredDoorBird creates a session.
func NewConfiguredDoorBird(device Device, name string) *ConfiguredDoorBird {
	return &ConfiguredDoorBird{device: device, name: name}
}

// Name is the display name.
func (d *ConfiguredDoorBird) Name() string { return d.name }

// Device is the underlying client.
func (d *ConfiguredDoorBird) Device() Device { return d.device }

// Slug is the name reduced to [a-z0-9_], used in entity ids.
func (d *ConfiguredDoorBird) Slug() string { return slugify(d.name) }

// EventData is the payload attached to every event of this station.
// It is built fresh on each call; the URLs carry the current credentials.
func (d *ConfiguredDoorBird) EventData() map[string]any {
	return map[string]any{
		DataTimestamp:        time.Now().UTC().Format(time.RFC3339Nano),
		DataLiveVideoURL:     d.device.LiveVideoURL(),
		DataLiveImageURL:     d.device.LiveImageURL(),
		DataRTSPLiveVideoURL: d.device.RTSPLiveVideoURL(),
		DataHTML5ViewerURL:   d.device.HTML5ViewerURL(),
	}
}

func slugify(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	if b.Len() == 0 {
		return Domain
	}
	return b.String()
}
