// DoorBird Bridge
//
// doorbirdd connects DoorBird door stations to an MQTT based home
// automation system. Each configured station is imported as a config entry,
// set up with a readiness and info handshake, and monitored for doorbell
// and motion events. Events are published to MQTT, recorded in the SQLite
// logbook, written to InfluxDB when enabled, and streamed over WebSocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-doorbird/migrations"

	"github.com/nerrad567/gray-logic-doorbird/internal/api"
	"github.com/nerrad567/gray-logic-doorbird/internal/bridges/doorbird"
	"github.com/nerrad567/gray-logic-doorbird/internal/forward"
	"github.com/nerrad567/gray-logic-doorbird/internal/host"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-doorbird/internal/logbook"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// shutdownTimeout bounds unloading every entry on exit.
const shutdownTimeout = 30 * time.Second

// configFlag overrides DOORBIRD_CONFIG when set.
var configFlag = flag.String("config", "", "path to the configuration file")

func main() {
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting DoorBird bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "devices", len(cfg.Devices))
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	topics := mqtt.Topics{}
	mqttClient, err := mqtt.Connect(cfg.MQTT, topics)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	mqttClient.SetLogger(log)
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT connected")
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// The loop outlives every component that submits to it.
	loop := host.NewLoop(log)
	loopCtx, stopLoop := context.WithCancel(context.WithoutCancel(ctx))
	go loop.Run(loopCtx) //nolint:errcheck // only returns on cancel
	defer func() {
		stopLoop()
		<-loop.Done()
	}()

	bus := host.NewBus()
	entities := host.NewEntityRegistry()

	sinks := startSinks(db, loop, bus, mqttClient, influxClient, log)
	defer sinks.stop()
	lb := sinks.logbook

	manager, err := host.NewManager(host.ManagerOptions{
		Store:  host.NewSQLiteEntryStore(db.DB),
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("creating entry manager: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("unloading config entries")
		if shutdownErr := manager.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error("error unloading config entries", "error", shutdownErr)
		}
	}()

	opts := doorbird.Options{
		Loop:     loop,
		Bus:      bus,
		Entities: entities,
		Reloader: manager,
		Logger:   log,
	}
	if cfg.Bridge.Discovery {
		opts.Discovery = &doorbird.DiscoveryOptions{
			Publisher: mqttClient,
			Prefix:    cfg.Bridge.DiscoveryPrefix,
			NodeID:    cfg.Bridge.ID,
			Topics:    topics,
			QoS:       mqttClient.QoS(),
		}
	}
	integration, err := doorbird.NewIntegration(opts)
	if err != nil {
		return fmt.Errorf("creating DoorBird integration: %w", err)
	}
	integration.RegisterLogbook(lb)
	if err := manager.Register(integration); err != nil {
		return fmt.Errorf("registering DoorBird integration: %w", err)
	}

	if err := manager.Load(ctx); err != nil {
		return fmt.Errorf("loading config entries: %w", err)
	}
	if err := importDevices(ctx, manager, cfg.Devices, log); err != nil {
		return err
	}

	unsubscribe, err := doorbird.SubscribeCommands(mqttClient, topics, mqttClient.QoS(), entities, log)
	if err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	defer func() {
		if unsubErr := unsubscribe(); unsubErr != nil {
			log.Warn("error removing command subscription", "error", unsubErr)
		}
	}()

	manager.SetupAll(ctx)

	checks := map[string]api.HealthChecker{"database": db, "mqtt": mqttClient}
	var influxStats api.WriteStats
	if influxClient != nil {
		checks["influxdb"] = influxClient
		influxStats = influxClient
	}
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Entries:  manager,
		Stations: integration,
		Entities: entities,
		Logbook:  lb,
		Bus:      bus,
		Checks:   checks,
		MQTT:     mqttClient,
		InfluxDB: influxStats,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls unwind in reverse start order.
	return nil
}

// getConfigPath returns the configuration file path: the -config flag,
// then DOORBIRD_CONFIG, then the default.
func getConfigPath() string {
	if configFlag != nil && *configFlag != "" {
		return *configFlag
	}
	if path := os.Getenv("DOORBIRD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// importDevices turns every configured station into a config entry keyed
// by its host. Existing entries are updated in place.
func importDevices(ctx context.Context, manager *host.Manager, devices []config.DeviceConfig, log *logging.Logger) error {
	for _, d := range devices {
		data, err := d.StorageJSON()
		if err != nil {
			return fmt.Errorf("encoding device %s: %w", d.Host, err)
		}
		status, created, err := manager.Import(ctx, doorbird.Domain, d.DisplayName(), d.Host, data)
		if err != nil {
			return fmt.Errorf("importing device %s: %w", d.Host, err)
		}
		log.Info("door station imported",
			"entry_id", status.ID, "host", d.Host, "username", d.Username, "created", created)
	}
	return nil
}

// sink is a bus listener with its own worker goroutine.
type sink interface {
	Start()
	Stop()
}

// eventSinks are the bus listeners that move events off the loop.
type eventSinks struct {
	logbook     *logbook.Logbook
	listeners   []sink
	unsubscribe []func()
}

// startSinks subscribes the logbook recorder, the MQTT forwarder and, when
// enabled, the InfluxDB recorder to the bus.
func startSinks(db *database.DB, loop *host.Loop, bus *host.Bus,
	mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) *eventSinks {
	repo := logbook.NewSQLiteRepository(db.DB)
	lb := logbook.New(repo, loop)
	s := &eventSinks{logbook: lb}

	recorder := logbook.NewRecorder(logbook.RecorderOptions{
		Repository: repo,
		Accept:     lb.Describes,
		Logger:     log,
	})
	s.add(bus, recorder, recorder.Listen)

	mqttSink := forward.NewMQTT(forward.MQTTOptions{
		Publisher: mqttClient,
		Topics:    mqttClient.Topics(),
		QoS:       mqttClient.QoS(),
		Logger:    log,
	})
	s.add(bus, mqttSink, mqttSink.Listen)

	if influxClient != nil {
		influxSink := forward.NewInflux(influxClient, host.DefaultQueueSize, log)
		s.add(bus, influxSink, influxSink.Listen)
	}
	return s
}

func (s *eventSinks) add(bus *host.Bus, l sink, listen host.Listener) {
	l.Start()
	s.listeners = append(s.listeners, l)
	s.unsubscribe = append(s.unsubscribe, bus.Subscribe(host.MatchAll, listen))
}

// stop unsubscribes every sink, then drains them.
func (s *eventSinks) stop() {
	for _, unsub := range s.unsubscribe {
		unsub()
	}
	for _, l := range s.listeners {
		l.Stop()
	}
}
