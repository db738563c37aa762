// Vantage Bridge - Davis weather-station adapter
//
// This is the main entry point for the Vantage bridge. It polls Davis
// WeatherLinkIP data loggers on their live-data endpoint and exposes every
// station as a set of sensor entities:
//   - MQTT state, availability and Home Assistant discovery topics
//   - A local REST/WebSocket API for adding and tuning stations
//   - Optional InfluxDB history and Prometheus metrics
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-logic-weather/migrations"

	"github.com/nerrad567/gray-logic-weather/internal/api"
	"github.com/nerrad567/gray-logic-weather/internal/bridges/vantage"
	"github.com/nerrad567/gray-logic-weather/internal/entry"
	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-weather/internal/integration"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting Vantage bridge",
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
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"stations", len(cfg.Stations),
	)

	db, err := database.Open(ctx, cfg.Database)
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

	opts := integration.Options{
		Repository: entry.NewSQLiteRepository(db.DB),
		Location:   cfg.Location(),
		Logger:     log.Component("integration"),
	}

	// MQTT (optional)
	var (
		mqttClient *mqtt.Client
		bridge     *vantage.Bridge
		health     *vantage.HealthReporter
	)
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT connected")
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		bridge = vantage.NewBridge(vantage.Config{
			Client:          mqttClient,
			DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
			QoS:             byte(cfg.MQTT.QoS), // #nosec G115 -- validated 0..2
			Logger:          log.Component("discovery"),
		})
		health = vantage.NewHealthReporter(vantage.HealthReporterConfig{
			Version:   version,
			Publisher: mqttClient,
			Logger:    log.Component("health"),
		})
		opts.Publisher = bridge
		opts.Health = health
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		var influxErr error
		influxClient, influxErr = influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		opts.History = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Prometheus (optional)
	var reg *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg = metrics.New()
		opts.Metrics = reg
	}

	// The hub outlives the API server so late refreshes never hit a closed hub.
	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)
	opts.Broadcaster = hub

	manager, err := integration.New(opts)
	if err != nil {
		return fmt.Errorf("creating integration manager: %w", err)
	}
	defer manager.Close()

	if bridge != nil {
		bridge.SetRefresher(manager)
		if startErr := bridge.Start(); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		health.SetSource(manager)
		health.Start(ctx)
		defer health.Stop()
	}

	if seedErr := manager.SeedFromConfig(ctx, cfg.Stations); seedErr != nil {
		log.Warn("some configured stations could not be stored", "error", seedErr)
	}
	if setupErr := manager.SetupAll(ctx); setupErr != nil {
		log.Warn("some stations failed to set up", "error", setupErr)
	}
	log.Info("stations loaded", "count", len(manager.List()))

	deps := api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Metrics:     cfg.Metrics,
		Logger:      log,
		Stations:    manager,
		MQTT:        mqttClient,
		DB:          db.DB,
		ExternalHub: hub,
		Version:     version,
	}
	if reg != nil {
		deps.Exposition = reg.Handler()
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	// Deferred calls run in reverse: API server, health reporter, manager,
	// hub, InfluxDB, MQTT, database.
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses VANTAGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("VANTAGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure connections are healthy.
// mqttClient may be nil when MQTT is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
