package doorbird

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-doorbird/internal/bridges/doorbird/bha"
	"github.com/nerrad567/gray-logic-doorbird/internal/host"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/config"
)

// CameraKind distinguishes the three cameras of a station.
type CameraKind string

// Camera kinds.
const (
	CameraLive       CameraKind = "live"
	CameraLastRing   CameraKind = "last_ring"
	CameraLastMotion CameraKind = "last_motion"
)

// Camera is a camera entity of a station.
type Camera struct {
	entityID string
	name     string
	entryID  string
	kind     CameraKind
	event    string // device event the camera shows, "" for live
	mjpeg    bool
	session  *ConfiguredDoorBird
}

func newCameras(entryID string, session *ConfiguredDoorBird, mjpeg bool) []*Camera {
	slug, name := session.Slug(), session.Name()
	return []*Camera{
		{
			entityID: "camera." + slug + "_live",
			name:     name + " Live",
			entryID:  entryID,
			kind:     CameraLive,
			mjpeg:    mjpeg,
			session:  session,
		},
		{
			entityID: "camera." + slug + "_last_ring",
			name:     name + " Last Ring",
			entryID:  entryID,
			kind:     CameraLastRing,
			event:    bha.EventDoorbell,
			session:  session,
		},
		{
			entityID: "camera." + slug + "_last_motion",
			name:     name + " Last Motion",
			entryID:  entryID,
			kind:     CameraLastMotion,
			event:    bha.EventMotionSensor,
			session:  session,
		},
	}
}

// EntityID implements host.Entity.
func (c *Camera) EntityID() string { return c.entityID }

// Name implements host.Entity.
func (c *Camera) Name() string { return c.name }

// EntryID implements host.Entity.
func (c *Camera) EntryID() string { return c.entryID }

// Kind is the camera kind.
func (c *Camera) Kind() CameraKind { return c.kind }

// Attributes implements host.Entity.
func (c *Camera) Attributes() map[string]any {
	attrs := map[string]any{"kind": string(c.kind)}
	if c.event != "" {
		attrs["event"] = c.event
	}
	if c.kind == CameraLive {
		attrs["stream"] = c.streamType()
	}
	return attrs
}

func (c *Camera) streamType() string {
	if c.mjpeg {
		return "mjpeg"
	}
	return "rtsp"
}

// StreamSource is the live stream URL: MJPEG when configured, else RTSP.
// Only the live camera streams. The URL carries credentials.
func (c *Camera) StreamSource() string {
	if c.kind != CameraLive {
		return ""
	}
	device := c.session.Device()
	if c.mjpeg {
		return device.LiveVideoURL()
	}
	return device.RTSPLiveVideoURL()
}

// ImageURL is the still image of the camera. The URL carries credentials.
func (c *Camera) ImageURL() string {
	device := c.session.Device()
	if c.kind == CameraLive {
		return device.LiveImageURL()
	}
	return device.HistoryImageURL(1, c.event)
}

// cameraPlatform adds the cameras and maps event kinds to them.
type cameraPlatform struct {
	i *Integration
}

func (p *cameraPlatform) Name() string { return "camera" }

func (p *cameraPlatform) SetupEntry(ctx context.Context, entry *host.ConfigEntry) error {
	cfg, err := config.ParseDeviceConfig(entry.Data)
	if err != nil {
		return err
	}

	var setupErr error
	err = p.i.loop.Call(ctx, func() {
		reg, ok := p.i.state.entries[entry.ID]
		if !ok {
			setupErr = fmt.Errorf("entry %s is not registered", entry.ID)
			return
		}

		cameras := newCameras(entry.ID, reg.Session, cfg.MJPEG)
		entities := make([]host.Entity, len(cameras))
		for idx, c := range cameras {
			entities[idx] = c
		}
		if setupErr = p.i.entities.Add(entities...); setupErr != nil {
			return
		}

		for _, c := range cameras {
			if c.event != "" {
				p.i.state.eventEntityIDs[c.event] = c.entityID
			}
		}
	})
	if err != nil {
		return err
	}
	return setupErr
}

func (p *cameraPlatform) UnloadEntry(ctx context.Context, entry *host.ConfigEntry) (bool, error) {
	err := p.i.loop.Call(ctx, func() {
		for _, e := range p.i.entities.ForEntry(entry.ID) {
			if _, ok := e.(*Camera); !ok {
				continue
			}
			p.i.entities.Remove(e.EntityID())
			for event, entityID := range p.i.state.eventEntityIDs {
				if entityID == e.EntityID() {
					delete(p.i.state.eventEntityIDs, event)
				}
			}
		}
		p.i.remapEventCameras()
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// eventCamera returns the camera of entryID that shows event. Runs on the
// loop.
func (i *Integration) eventCamera(entryID, event string) (string, bool) {
	for _, e := range i.entities.ForEntry(entryID) {
		if c, ok := e.(*Camera); ok && c.event == event {
			return c.entityID, true
		}
	}
	return "", false
}

// remapEventCameras points event kinds left without a camera at one that
// is still loaded. Runs on the loop.
func (i *Integration) remapEventCameras() {
	for _, e := range i.entities.List() {
		c, ok := e.(*Camera)
		if !ok || c.event == "" {
			continue
		}
		if _, mapped := i.state.eventEntityIDs[c.event]; !mapped {
			i.state.eventEntityIDs[c.event] = c.entityID
		}
	}
}
