package doorbird

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-doorbird/internal/host"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/database"
)

// fakeStation serves the LAN API endpoints the bha client uses.
type fakeStation struct {
	mu       sync.Mutex
	streams  int
	relays   []string
	lines    chan string
	hangUp   chan struct{}
	password string
}

func newFakeStation(t *testing.T) (*fakeStation, *httptest.Server) {
	t.Helper()
	st := &fakeStation{
		lines:    make(chan string, 8),
		hangUp:   make(chan struct{}, 1),
		password: testPassword,
	}

	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != "ghxxxx0001" || pass != st.password {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/bha-api/info.cgi", auth(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"BHA":{"RETURNCODE":"1","VERSION":[{"FIRMWARE":"000125","PRIMARY_MAC_ADDR":"1CCAE3711111","RELAYS":["1"],"DEVICE-TYPE":"DoorBird D1101V"}]}}`)) //nolint:errcheck // test server
	}))
	mux.HandleFunc("/bha-api/open-door.cgi", auth(func(w http.ResponseWriter, r *http.Request) {
		st.mu.Lock()
		st.relays = append(st.relays, r.URL.Query().Get("r"))
		st.mu.Unlock()
		w.Write([]byte(`{"BHA":{"RETURNCODE":"1"}}`)) //nolint:errcheck // test server
	}))
	mux.HandleFunc("/bha-api/monitor.cgi", auth(func(w http.ResponseWriter, r *http.Request) {
		st.mu.Lock()
		st.streams++
		st.mu.Unlock()

		flusher, _ := w.(http.Flusher)
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=--ioboundary")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-st.hangUp:
				return
			case line := <-st.lines:
				w.Write([]byte("--ioboundary\r\nContent-Type: text/plain\r\n\r\n" + line + "\r\n")) //nolint:errcheck // test server
				flusher.Flush()
			}
		}
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return st, srv
}

func (st *fakeStation) streamCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.streams
}

func stationConfig(t *testing.T, srv *httptest.Server, password string) config.DeviceConfig {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	hostname, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host: %v", err)
	}
	port, _ := strconv.Atoi(portStr) //nolint:errcheck // httptest always has a port
	return config.DeviceConfig{
		Host:     hostname,
		Port:     port,
		Username: "ghxxxx0001",
		Password: password,
		Name:     "Front Door",
	}
}

type stack struct {
	manager     *host.Manager
	integration *Integration
	bus         *host.Bus
	entities    *host.EntityRegistry
}

// newStack wires the real client, manager and integration together.
func newStack(t *testing.T) *stack {
	t.Helper()

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "doorbird.db"), BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	loop := host.NewLoop(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx) //nolint:errcheck // stopped via cancel
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})

	mgr, err := host.NewManager(host.ManagerOptions{
		Store:     host.NewSQLiteEntryStore(db.DB),
		RetryBase: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(func() { mgr.Shutdown(context.Background()) }) //nolint:errcheck // test cleanup

	s := &stack{manager: mgr, bus: host.NewBus(), entities: host.NewEntityRegistry()}
	s.integration, err = NewIntegration(Options{
		Loop:     loop,
		Bus:      s.bus,
		Entities: s.entities,
		Reloader: mgr,
	})
	if err != nil {
		t.Fatalf("NewIntegration() error = %v", err)
	}
	if err := mgr.Register(s.integration); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return s
}

func (s *stack) importStation(t *testing.T, cfg config.DeviceConfig) string {
	t.Helper()
	data, err := cfg.StorageJSON()
	if err != nil {
		t.Fatalf("StorageJSON() error = %v", err)
	}
	status, _, err := s.manager.Import(context.Background(), Domain, cfg.DisplayName(), cfg.Host+":"+strconv.Itoa(cfg.Port), data)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	return status.ID
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStation_EndToEnd(t *testing.T) {
	st, srv := newFakeStation(t)
	s := newStack(t)
	events := make(chan host.Event, 8)
	s.bus.Subscribe(EventTypeDoorbell, func(e host.Event) { events <- e })

	id := s.importStation(t, stationConfig(t, srv, testPassword))
	ctx := context.Background()
	if err := s.manager.Setup(ctx, id); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	station, ok, err := s.integration.Station(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Station() = %v, %v", ok, err)
	}
	if station.MACAddress != "1CCAE3711111" || !station.Monitoring {
		t.Errorf("Station() = %+v", station)
	}

	st.lines <- "doorbell:L"
	st.lines <- "doorbell:H"
	ev := waitEvent(t, events)
	if ev.EntryID != id {
		t.Errorf("EntryID = %q, want %q", ev.EntryID, id)
	}
	if ev.Data[DataEntityID] != "camera.front_door_last_ring" {
		t.Errorf("entity_id = %v", ev.Data[DataEntityID])
	}

	if err := s.entities.Press(ctx, "button.front_door_relay_1"); err != nil {
		t.Fatalf("Press() error = %v", err)
	}
	st.mu.Lock()
	relays := append([]string(nil), st.relays...)
	st.mu.Unlock()
	if len(relays) != 1 || relays[0] != "1" {
		t.Errorf("relays = %v, want [1]", relays)
	}

	// The device dropping the stream reloads the entry, which reconnects.
	st.hangUp <- struct{}{}
	eventually(t, "monitor reconnect", func() bool { return st.streamCount() == 2 })
	eventually(t, "entry loaded again", func() bool {
		status, err := s.manager.Entry(id)
		return err == nil && status.State == host.StateLoaded
	})
	eventually(t, "monitor running", func() bool {
		station, ok, _ := s.integration.Station(ctx, id)
		return ok && station.Monitoring
	})

	if ok, err := s.manager.Unload(ctx, id); !ok || err != nil {
		t.Fatalf("Unload() = %v, %v", ok, err)
	}
	if _, ok, _ := s.integration.Station(ctx, id); ok {
		t.Error("station still registered after unload")
	}
	if n := len(s.entities.List()); n != 0 {
		t.Errorf("entities after unload = %d, want 0", n)
	}
}

func TestStation_WrongPassword(t *testing.T) {
	_, srv := newFakeStation(t)
	s := newStack(t)

	id := s.importStation(t, stationConfig(t, srv, "wrong"))
	if err := s.manager.Setup(context.Background(), id); err == nil {
		t.Fatal("Setup() error = nil, want authorization failure")
	}

	status, err := s.manager.Entry(id)
	if err != nil {
		t.Fatalf("Entry() error = %v", err)
	}
	if status.State != host.StateSetupError {
		t.Errorf("State = %q, want %q", status.State, host.StateSetupError)
	}
	if _, ok, _ := s.integration.Station(context.Background(), id); ok {
		t.Error("station registered despite rejected credentials")
	}
}

func TestStation_UnreachableRetries(t *testing.T) {
	_, srv := newFakeStation(t)
	cfg := stationConfig(t, srv, testPassword)
	srv.Close()

	s := newStack(t)
	id := s.importStation(t, cfg)
	_ = s.manager.Setup(context.Background(), id) //nolint:errcheck // state checked below

	status, err := s.manager.Entry(id)
	if err != nil {
		t.Fatalf("Entry() error = %v", err)
	}
	if status.State != host.StateSetupRetry {
		t.Errorf("State = %q, want %q", status.State, host.StateSetupRetry)
	}
}
