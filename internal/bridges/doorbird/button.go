package doorbird

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-doorbird/internal/host"
)

// Button is a relay or IR light of a station.
type Button struct {
	entityID string
	name     string
	entryID  string
	relay    string // "" for the IR light
	session  *ConfiguredDoorBird
	logger   Logger
}

func newButtons(entryID string, session *ConfiguredDoorBird, info map[string]any, logger Logger) []*Button {
	slug, name := session.Slug(), session.Name()

	var buttons []*Button
	for _, relay := range relays(info) {
		buttons = append(buttons, &Button{
			entityID: "button." + slug + "_relay_" + slugify(relay),
			name:     name + " Relay " + relay,
			entryID:  entryID,
			relay:    relay,
			session:  session,
			logger:   logger,
		})
	}
	buttons = append(buttons, &Button{
		entityID: "button." + slug + "_ir",
		name:     name + " IR",
		entryID:  entryID,
		session:  session,
		logger:   logger,
	})
	return buttons
}

// EntityID implements host.Entity.
func (b *Button) EntityID() string { return b.entityID }

// Name implements host.Entity.
func (b *Button) Name() string { return b.name }

// EntryID implements host.Entity.
func (b *Button) EntryID() string { return b.entryID }

// Relay is the relay id, "" for the IR light.
func (b *Button) Relay() string { return b.relay }

// Attributes implements host.Entity.
func (b *Button) Attributes() map[string]any {
	if b.relay == "" {
		return map[string]any{"action": "light_on"}
	}
	return map[string]any{"action": "open_door", "relay": b.relay}
}

// Press energizes the relay or turns on the IR light.
func (b *Button) Press(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pressTimeout)
	defer cancel()

	device := b.session.Device()
	var err error
	if b.relay == "" {
		err = device.TurnLightOn(ctx)
	} else {
		err = device.EnergizeRelay(ctx, b.relay)
	}
	if err != nil {
		b.logger.Error("DoorBird command failed",
			"entity_id", b.entityID, "host", device.Host(), "username", device.Username(), "error", err)
		return fmt.Errorf("pressing %s: %w", b.entityID, err)
	}
	b.logger.Info("DoorBird command sent", "entity_id", b.entityID, "host", device.Host())
	return nil
}

// buttonPlatform adds one button per relay plus the IR light.
type buttonPlatform struct {
	i *Integration
}

func (p *buttonPlatform) Name() string { return "button" }

func (p *buttonPlatform) SetupEntry(ctx context.Context, entry *host.ConfigEntry) error {
	var setupErr error
	err := p.i.loop.Call(ctx, func() {
		reg, ok := p.i.state.entries[entry.ID]
		if !ok {
			setupErr = fmt.Errorf("entry %s is not registered", entry.ID)
			return
		}

		buttons := newButtons(entry.ID, reg.Session, reg.Info, p.i.logger)
		entities := make([]host.Entity, len(buttons))
		for idx, b := range buttons {
			entities[idx] = b
		}
		setupErr = p.i.entities.Add(entities...)
	})
	if err != nil {
		return err
	}
	return setupErr
}

func (p *buttonPlatform) UnloadEntry(ctx context.Context, entry *host.ConfigEntry) (bool, error) {
	err := p.i.loop.Call(ctx, func() {
		for _, e := range p.i.entities.ForEntry(entry.ID) {
			if _, ok := e.(*Button); ok {
				p.i.entities.Remove(e.EntityID())
			}
		}
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

var _ host.Pressable = (*Button)(nil)
