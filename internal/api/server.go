// Package api provides the HTTP API and WebSocket server of the DoorBird bridge.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-doorbird/internal/bridges/doorbird"
	"github.com/nerrad567/gray-logic-doorbird/internal/host"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-doorbird/internal/logbook"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// EntryManager is the part of *host.Manager the API drives.
type EntryManager interface {
	Entries() []host.EntryStatus
	Entry(id string) (host.EntryStatus, error)
	Reload(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
}

// StationSource returns live station snapshots. *doorbird.Integration
// satisfies it.
type StationSource interface {
	Station(ctx context.Context, entryID string) (doorbird.Station, bool, error)
}

// LogbookReader lists described events. *logbook.Logbook satisfies it.
type LogbookReader interface {
	List(ctx context.Context, filter logbook.Filter) (*logbook.Page, error)
}

// HealthChecker is a component probed by the health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ConnectionStatus reports broker connectivity. *mqtt.Client satisfies it.
type ConnectionStatus interface {
	IsConnected() bool
}

// WriteStats reports time series sink counters. *influxdb.Client satisfies it.
type WriteStats interface {
	Stats() influxdb.Stats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Entries  EntryManager
	Stations StationSource
	Entities *host.EntityRegistry
	Logbook  LogbookReader
	Bus      *host.Bus

	// Checks are probed by /health, keyed by component name. Optional.
	Checks map[string]HealthChecker

	// MQTT is reported by /api/v1/metrics. Optional.
	MQTT ConnectionStatus

	// InfluxDB is reported by /api/v1/metrics. Optional.
	InfluxDB WriteStats

	Version string
}

// Server is the HTTP API server of the bridge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	entries   EntryManager
	stations  StationSource
	entities  *host.EntityRegistry
	logbook   LogbookReader
	bus       *host.Bus
	checks    map[string]HealthChecker
	mqtt      ConnectionStatus
	influx    WriteStats
	version   string
	startTime time.Time

	server   *http.Server
	hub      *Hub
	relay    *host.AsyncListener
	unsub    func()
	cancel   context.CancelFunc // cancels background goroutines on Close()
	wsClosed chan struct{}
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Entries == nil {
		return nil, fmt.Errorf("entry manager is required")
	}
	if deps.Entities == nil {
		return nil, fmt.Errorf("entity registry is required")
	}
	if deps.Logbook == nil {
		return nil, fmt.Errorf("logbook is required")
	}
	if deps.Bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		entries:   deps.Entries,
		stations:  deps.Stations,
		entities:  deps.Entities,
		logbook:   deps.Logbook,
		bus:       deps.Bus,
		checks:    deps.Checks,
		mqtt:      deps.MQTT,
		influx:    deps.InfluxDB,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, relays bus events to it, and launches the
// HTTP listener in a background goroutine. The server can be stopped with
// Close().
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.startHub(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// startHub creates the hub and subscribes it to every bus event.
func (s *Server) startHub(ctx context.Context) {
	s.hub = NewHub(s.wsCfg, s.logger)
	s.wsClosed = make(chan struct{})
	go func() {
		defer close(s.wsClosed)
		s.hub.Run(ctx)
	}()

	s.relay = host.NewAsyncListener("websocket", host.DefaultQueueSize, s.hub.BroadcastEvent, s.logger)
	s.relay.Start()
	s.unsub = s.bus.Subscribe(host.MatchAll, s.relay.Listen)
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.unsub != nil {
		s.unsub()
		s.relay.Stop()
	}
	if s.cancel != nil {
		s.cancel()
		<-s.wsClosed
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
