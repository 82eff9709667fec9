package doorbird

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-doorbird/internal/bridges/doorbird/bha"
	"github.com/nerrad567/gray-logic-doorbird/internal/host"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/config"
)

const testPassword = "hunter2"

// mockDevice is a scripted door station.
type mockDevice struct {
	mu sync.Mutex

	host     string
	username string
	password string

	ready      bool
	status     int
	readyErr   error
	info       map[string]any
	infoErr    error
	monitorErr error
	commandErr error

	handler    bha.MonitorHandler
	monitoring bool
	stops      int
	relays     []string
	lights     int
}

func newMockDevice(cfg config.DeviceConfig) *mockDevice {
	return &mockDevice{
		host:     cfg.Host,
		username: cfg.Username,
		password: cfg.Password,
		ready:    true,
		status:   200,
		info: map[string]any{
			"FIRMWARE":      "000125",
			"WIFI_MAC_ADDR": "1CCAE3700000",
			"RELAYS":        []any{"1", "gggaaa@1"},
			"DEVICE-TYPE":   "DoorBird D2101V",
		},
	}
}

func (d *mockDevice) Host() string     { return d.host }
func (d *mockDevice) Username() string { return d.username }

func (d *mockDevice) Ready(context.Context) (bool, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ready, d.status, d.readyErr
}

func (d *mockDevice) Info(context.Context) (map[string]any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.infoErr != nil {
		return nil, d.infoErr
	}
	return d.info, nil
}

func (d *mockDevice) StartMonitoring(_ context.Context, handler bha.MonitorHandler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.monitorErr != nil {
		return d.monitorErr
	}
	d.handler = handler
	d.monitoring = true
	return nil
}

func (d *mockDevice) StopMonitoring() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
	d.monitoring = false
	return nil
}

func (d *mockDevice) IsMonitoring() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.monitoring
}

func (d *mockDevice) monitorHandler() bha.MonitorHandler {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handler
}

func (d *mockDevice) url(path string) string {
	return fmt.Sprintf("http://%s/bha-api/%s?http-user=%s&http-password=%s", d.host, path, d.username, d.password)
}

func (d *mockDevice) LiveVideoURL() string   { return d.url("video.cgi") }
func (d *mockDevice) LiveImageURL() string   { return d.url("image.cgi") }
func (d *mockDevice) HTML5ViewerURL() string { return d.url("view.cgi") }
func (d *mockDevice) RTSPLiveVideoURL() string {
	return fmt.Sprintf("rtsp://%s:%s@%s:554/mpeg/media.amp", d.username, d.password, d.host)
}

func (d *mockDevice) HistoryImageURL(index int, event string) string {
	return d.url(fmt.Sprintf("history.cgi?index=%d&event=%s", index, event))
}

func (d *mockDevice) EnergizeRelay(_ context.Context, relay string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.relays = append(d.relays, relay)
	return d.commandErr
}

func (d *mockDevice) TurnLightOn(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lights++
	return d.commandErr
}

// mockReloader records scheduled reloads.
type mockReloader struct {
	reloads chan string
}

func (r *mockReloader) ScheduleReload(entryID string) {
	r.reloads <- entryID
}

// logRecord is one captured log call.
type logRecord struct {
	level string
	msg   string
	args  []any
}

// recordingLogger captures log calls for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	records []logRecord
}

func (l *recordingLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, logRecord{level: level, msg: msg, args: args})
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

// find returns the first record at level whose message contains substr.
func (l *recordingLogger) find(level, substr string) (logRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.records {
		if r.level == level && strings.Contains(r.msg, substr) {
			return r, true
		}
	}
	return logRecord{}, false
}

// leaks reports whether any record mentions secret.
func (l *recordingLogger) leaks(secret string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.records {
		if strings.Contains(fmt.Sprint(r.msg, r.args), secret) {
			return true
		}
	}
	return false
}

// mockPublisher records MQTT publishes.
type mockPublisher struct {
	mu       sync.Mutex
	messages map[string][]byte
	order    []string
}

func (p *mockPublisher) Publish(topic string, payload []byte, _ byte, retained bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !retained {
		return fmt.Errorf("discovery message on %s not retained", topic)
	}
	if p.messages == nil {
		p.messages = make(map[string][]byte)
	}
	p.messages[topic] = payload
	p.order = append(p.order, topic)
	return nil
}

func (p *mockPublisher) payload(topic string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.messages[topic]
	return b, ok
}

// testEnv is an integration wired to a running loop and mock devices.
type testEnv struct {
	t           *testing.T
	integration *Integration
	loop        *host.Loop
	bus         *host.Bus
	entities    *host.EntityRegistry
	reloader    *mockReloader
	logger      *recordingLogger

	mu      sync.Mutex
	devices map[string]*mockDevice
	script  func(*mockDevice)
}

func newTestEnv(t *testing.T, discovery *DiscoveryOptions) *testEnv {
	t.Helper()

	loop := host.NewLoop(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx) //nolint:errcheck // stopped via cancel
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})

	env := &testEnv{
		t:        t,
		loop:     loop,
		bus:      host.NewBus(),
		entities: host.NewEntityRegistry(),
		reloader: &mockReloader{reloads: make(chan string, 8)},
		logger:   &recordingLogger{},
		devices:  make(map[string]*mockDevice),
	}

	integration, err := NewIntegration(Options{
		Loop:     loop,
		Bus:      env.bus,
		Entities: env.entities,
		Reloader: env.reloader,
		NewDevice: func(cfg config.DeviceConfig) Device {
			d := newMockDevice(cfg)
			env.mu.Lock()
			if env.script != nil {
				env.script(d)
			}
			env.devices[cfg.Host] = d
			env.mu.Unlock()
			return d
		},
		Discovery: discovery,
		Logger:    env.logger,
	})
	if err != nil {
		t.Fatalf("NewIntegration() error = %v", err)
	}
	env.integration = integration
	return env
}

// scriptDevices applies fn to every device created from now on.
func (e *testEnv) scriptDevices(fn func(*mockDevice)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.script = fn
}

func (e *testEnv) device(host string) *mockDevice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.devices[host]
}

// onLoop runs fn on the loop and fails the test if that is impossible.
func (e *testEnv) onLoop(fn func()) {
	e.t.Helper()
	if err := e.loop.Call(context.Background(), fn); err != nil {
		e.t.Fatalf("loop.Call() error = %v", err)
	}
}

// registered returns a copy of the entry map.
func (e *testEnv) registered() map[string]*RegistryEntry {
	e.t.Helper()
	out := map[string]*RegistryEntry{}
	e.onLoop(func() {
		for k, v := range e.integration.state.entries {
			out[k] = v
		}
	})
	return out
}

// captureEvents subscribes to every bus event.
func (e *testEnv) captureEvents() <-chan host.Event {
	ch := make(chan host.Event, 16)
	e.bus.Subscribe(host.MatchAll, func(ev host.Event) { ch <- ev })
	return ch
}

func testEntry(id, hostAddr, name string) *host.ConfigEntry {
	cfg := config.DeviceConfig{
		Host:     hostAddr,
		Username: "ghxxxx0001",
		Password: testPassword,
		Port:     config.DefaultDevicePort,
		Name:     name,
	}
	data, err := cfg.StorageJSON()
	if err != nil {
		panic(err)
	}
	return &host.ConfigEntry{ID: id, Domain: Domain, Title: hostAddr, UniqueID: hostAddr, Data: data}
}

func waitEvent(t *testing.T, ch <-chan host.Event) host.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no bus event fired")
		return host.Event{}
	}
}
