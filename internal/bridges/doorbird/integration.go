package doorbird

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-doorbird/internal/bridges/doorbird/bha"
	"github.com/nerrad567/gray-logic-doorbird/internal/host"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/config"
)

// Logger is the structured logger used by the integration.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Reloader reloads a config entry without blocking. *host.Manager
// satisfies it.
type Reloader interface {
	ScheduleReload(entryID string)
}

// RegistryEntry is the state kept for one set-up config entry.
type RegistryEntry struct {
	Session *ConfiguredDoorBird
	Info    map[string]any

	discoveryTopics []string
}

// State is the integration state. Only Loop tasks may touch it.
type State struct {
	entries map[string]*RegistryEntry

	// eventEntityIDs maps an event name ("doorbell") to the entity that
	// events of that kind are attributed to.
	eventEntityIDs map[string]string
}

// Options configures an Integration.
type Options struct {
	// Loop owns the integration state. Required.
	Loop *host.Loop

	// Bus receives doorbird_<event> events. Required.
	Bus *host.Bus

	// Entities receives camera and button entities. Required.
	Entities *host.EntityRegistry

	// Reloader reloads entries after monitor failures. Required.
	Reloader Reloader

	// NewDevice builds device clients. Defaults to NewBHADevice.
	NewDevice DeviceFactory

	// Discovery publishes Home Assistant MQTT discovery configs. Optional.
	Discovery *DiscoveryOptions

	// Logger is optional.
	Logger Logger
}

// Integration implements host.Integration for DoorBird.
type Integration struct {
	loop      *host.Loop
	bus       *host.Bus
	entities  *host.EntityRegistry
	reloader  Reloader
	newDevice DeviceFactory
	discovery *discovery
	logger    Logger

	state     State
	platforms []host.Platform
}

// NewIntegration creates the integration. Register it with a host.Manager.
func NewIntegration(opts Options) (*Integration, error) {
	if opts.Loop == nil {
		return nil, fmt.Errorf("event loop is required")
	}
	if opts.Bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}
	if opts.Entities == nil {
		return nil, fmt.Errorf("entity registry is required")
	}
	if opts.Reloader == nil {
		return nil, fmt.Errorf("reloader is required")
	}

	i := &Integration{
		loop:      opts.Loop,
		bus:       opts.Bus,
		entities:  opts.Entities,
		reloader:  opts.Reloader,
		newDevice: opts.NewDevice,
		logger:    opts.Logger,
		state: State{
			entries:        make(map[string]*RegistryEntry),
			eventEntityIDs: make(map[string]string),
		},
	}
	if i.newDevice == nil {
		i.newDevice = NewBHADevice
	}
	if i.logger == nil {
		i.logger = nopLogger{}
	}
	if opts.Discovery != nil {
		d, err := newDiscovery(*opts.Discovery)
		if err != nil {
			return nil, err
		}
		i.discovery = d
	}
	i.platforms = []host.Platform{&cameraPlatform{i: i}, &buttonPlatform{i: i}}
	return i, nil
}

// Domain implements host.Integration.
func (i *Integration) Domain() string { return Domain }

// SetupEntry validates the station, registers it and starts monitoring.
func (i *Integration) SetupEntry(ctx context.Context, entry *host.ConfigEntry) error {
	cfg, err := config.ParseDeviceConfig(entry.Data)
	if err != nil {
		return fmt.Errorf("%w: %w", host.ErrSetupFailed, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", host.ErrSetupFailed, err)
	}

	device := i.newDevice(cfg)
	info, err := i.handshake(ctx, device)
	if err != nil {
		return err
	}

	name := cfg.Name
	if name == "" {
		name = entry.Title
	}
	if name == "" {
		name = cfg.Host
	}
	session := NewConfiguredDoorBird(device, name)
	reg := &RegistryEntry{Session: session, Info: info}

	if err := i.loop.Call(ctx, func() { i.state.entries[entry.ID] = reg }); err != nil {
		return fmt.Errorf("%w: registering station: %w", host.ErrSetupRetry, err)
	}

	if err := host.ForwardSetup(ctx, entry, i.platforms...); err != nil {
		i.forget(entry.ID, reg)
		return err
	}

	handler := &monitorHandler{i: i, entryID: entry.ID, session: session}
	if err := device.StartMonitoring(ctx, handler); err != nil {
		i.logger.Error("Failed to start DoorBird monitor",
			"name", name, "host", device.Host(), "username", device.Username(), "error", err)
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if _, unloadErr := host.ForwardUnload(cleanupCtx, entry, i.platforms...); unloadErr != nil {
			i.logger.Warn("platform cleanup after failed monitor start", "entry_id", entry.ID, "error", unloadErr)
		}
		i.forget(entry.ID, reg)
		return fmt.Errorf("%w: starting monitor: %w", host.ErrSetupRetry, err)
	}

	i.publishDiscovery(ctx, entry.ID, reg)

	i.logger.Info("DoorBird set up",
		"entry_id", entry.ID, "name", name, "host", device.Host(),
		"username", device.Username(), "mac", MACAddress(info))
	return nil
}

// handshake runs the readiness and info queries and classifies failures.
func (i *Integration) handshake(ctx context.Context, device Device) (map[string]any, error) {
	var (
		ready  bool
		status int
		info   map[string]any
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ready, status, err = device.Ready(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		info, err = device.Info(gctx)
		return err
	})
	err := g.Wait()

	user, addr := device.Username(), device.Host()
	var httpErr *bha.HTTPError
	switch {
	case bha.IsUnauthorized(err):
		i.logger.Error(fmt.Sprintf("Authorization rejected by DoorBird for %s@%s", user, addr),
			"host", addr, "username", user)
		return nil, fmt.Errorf("%w: %w", host.ErrSetupFailed, err)

	case errors.As(err, &httpErr):
		i.logger.Warn(fmt.Sprintf("DoorBird at %s answered HTTP %d", addr, httpErr.StatusCode),
			"host", addr, "username", user)
		return nil, fmt.Errorf("%w: %w", host.ErrSetupRetry, err)

	case err != nil:
		i.logger.Error(fmt.Sprintf("Failed to setup doorbird at %s", addr),
			"host", addr, "username", user, "error", err)
		return nil, fmt.Errorf("%w: %w", host.ErrSetupRetry, err)

	case !ready:
		i.logger.Error(fmt.Sprintf("Could not connect to DoorBird as %s@%s: Error %d", user, addr, status),
			"host", addr, "username", user)
		return nil, fmt.Errorf("%w: device not ready (status %d)", host.ErrSetupRetry, status)
	}
	return info, nil
}

// forget removes reg from the state if it is still the entry's record.
func (i *Integration) forget(entryID string, reg *RegistryEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	err := i.loop.Call(ctx, func() {
		if i.state.entries[entryID] == reg {
			delete(i.state.entries, entryID)
		}
	})
	if err != nil {
		i.logger.Warn("failed to drop station state", "entry_id", entryID, "error", err)
	}
}

// UnloadEntry stops monitoring and unloads the platforms. The station is
// dropped from the state only when every platform unloaded. An entry that
// is not set up unloads successfully.
func (i *Integration) UnloadEntry(ctx context.Context, entry *host.ConfigEntry) (bool, error) {
	var reg *RegistryEntry
	var topics []string
	err := i.loop.Call(ctx, func() {
		reg = i.state.entries[entry.ID]
		if reg != nil {
			topics = reg.discoveryTopics
		}
	})
	if err != nil {
		return false, err
	}
	if reg == nil {
		return true, nil
	}

	// No callback may fire once the state is gone.
	if err := reg.Session.Device().StopMonitoring(); err != nil {
		return false, fmt.Errorf("stopping monitor: %w", err)
	}

	i.clearDiscovery(entry.ID, topics)

	ok, err := host.ForwardUnload(ctx, entry, i.platforms...)
	if !ok {
		return false, err
	}

	err = i.loop.Call(ctx, func() {
		if i.state.entries[entry.ID] == reg {
			delete(i.state.entries, entry.ID)
		}
	})
	if err != nil {
		return false, err
	}

	i.logger.Info("DoorBird unloaded", "entry_id", entry.ID, "name", reg.Session.Name())
	return true, nil
}

// Station is a snapshot of one registered door station.
type Station struct {
	EntryID    string         `json:"entry_id"`
	Name       string         `json:"name"`
	Slug       string         `json:"slug"`
	Host       string         `json:"host"`
	Username   string         `json:"username"`
	MACAddress string         `json:"mac_address,omitempty"`
	Monitoring bool           `json:"monitoring"`
	Info       map[string]any `json:"info"`
}

// Station returns the snapshot of one entry. The bool is false when the
// entry is not set up.
func (i *Integration) Station(ctx context.Context, entryID string) (Station, bool, error) {
	var st Station
	var found bool
	err := i.loop.Call(ctx, func() {
		reg, ok := i.state.entries[entryID]
		if !ok {
			return
		}
		st, found = snapshot(entryID, reg), true
	})
	return st, found, err
}

func snapshot(entryID string, reg *RegistryEntry) Station {
	device := reg.Session.Device()
	info := make(map[string]any, len(reg.Info))
	for k, v := range reg.Info {
		info[k] = v
	}
	return Station{
		EntryID:    entryID,
		Name:       reg.Session.Name(),
		Slug:       reg.Session.Slug(),
		Host:       device.Host(),
		Username:   device.Username(),
		MACAddress: MACAddress(reg.Info),
		Monitoring: device.IsMonitoring(),
		Info:       info,
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

var _ host.Integration = (*Integration)(nil)
