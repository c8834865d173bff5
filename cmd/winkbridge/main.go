// Wink Bridge - MQTT and HTTP gateway for the Wink hub.
//
// This is the main entry point of the bridge. It runs on the hub itself,
// reads device state through the aprontest tool and exposes it:
//   - over MQTT (status, set commands, Home Assistant discovery)
//   - over a small HTTP API with a WebSocket event stream
//   - optionally into InfluxDB (attribute history) and Redis (status mirror)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/wink-bridge/internal/api"
	"github.com/nerrad567/wink-bridge/internal/apron"
	"github.com/nerrad567/wink-bridge/internal/audit"
	"github.com/nerrad567/wink-bridge/internal/bridges/wink"
	"github.com/nerrad567/wink-bridge/internal/commands"
	"github.com/nerrad567/wink-bridge/internal/device"
	"github.com/nerrad567/wink-bridge/internal/infrastructure/config"
	"github.com/nerrad567/wink-bridge/internal/infrastructure/database"
	"github.com/nerrad567/wink-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/wink-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/wink-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/wink-bridge/internal/infrastructure/statecache"
	"github.com/nerrad567/wink-bridge/internal/metrics"
	"github.com/nerrad567/wink-bridge/internal/process"
	"github.com/nerrad567/wink-bridge/internal/resync"
	"github.com/nerrad567/wink-bridge/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path. A missing default file is not an error;
// the bridge then runs on defaults plus WINKBRIDGE_* overrides.
const defaultConfigPath = "configs/config.yaml"

// mqttDialWait bounds how long startup waits for the broker before going on
// without it.
var mqttDialWait = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on a clean shutdown after ctx is cancelled.
func run(ctx context.Context, args []string) error {
	log := logging.Default()
	log.Info("starting wink bridge",
		"commit", commit,
		"build_date", date,
	)

	configPath, explicit, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(configPath, explicit)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "from_file", explicit || fileExists(configPath))

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	m := metrics.New()

	controller, err := newController(cfg, log, m)
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}

	registry := device.NewRegistry()
	registry.SetLogger(log.Component("registry"))
	registry.OnReplace(m.ObserveReplace)

	// Command log (optional)
	var recorder audit.Repository = audit.Nop{}
	var checks []healthCheck
	if cfg.Database.Enabled {
		db, dbErr := openDatabase(ctx, cfg.Database)
		if dbErr != nil {
			return dbErr
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database ready", "path", cfg.Database.Path)
		recorder = audit.NewSQLiteRepository(db.DB)
		checks = append(checks, healthCheck{"database", db.HealthCheck})
	} else {
		log.Info("command log disabled")
	}

	cmds, err := commands.New(commands.Options{
		Controller: controller,
		Registry:   registry,
		Recorder:   recorder,
		Logger:     log.Component("commands"),
	})
	if err != nil {
		return fmt.Errorf("creating command service: %w", err)
	}

	scheduler, err := resync.New(resync.Options{
		Source:    controller,
		Registry:  registry,
		Interval:  cfg.Resync.Interval,
		QueueSize: cfg.Resync.TriggerQueue,
		Logger:    log.Component("resync"),
		Observer:  m,
	})
	if err != nil {
		return fmt.Errorf("creating resync scheduler: %w", err)
	}
	cmds.SetTrigger(scheduler)

	// MQTT bridge (optional)
	var bridgeMetrics api.BridgeMetricsProvider
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Dial(cfg.MQTT, mqttDialWait)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		broker := fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port)
		if mqttClient.IsConnected() {
			log.Info("MQTT connected", "broker", broker, "client_id", cfg.MQTT.Broker.ClientID)
		} else {
			log.Warn("MQTT broker unreachable, retrying in the background", "broker", broker)
		}

		bridge, bridgeErr := wink.NewBridge(wink.BridgeOptions{
			MQTTClient:        mqttClient,
			Topics:            mqttClient.Topics(),
			Registry:          registry,
			Commands:          cmds,
			Trigger:           scheduler,
			QoS:               byte(cfg.MQTT.QoS),
			QueueSize:         cfg.MQTT.PublishQueueSize,
			Overflow:          cfg.MQTT.QueueOverflow,
			SuppressUnchanged: cfg.MQTT.SuppressUnchanged,
			Logger:            log.Component("bridge"),
			Observer:          m,
		})
		if bridgeErr != nil {
			return fmt.Errorf("creating MQTT bridge: %w", bridgeErr)
		}
		if startErr := bridge.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			bridge.Stop()
		}()
		bridgeMetrics = bridge
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB attribute history (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
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
		registry.OnReplace(influxClient.ObserveReplace)
		checks = append(checks, healthCheck{"influxdb", influxClient.HealthCheck})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Redis status mirror (optional)
	if cfg.Redis.Enabled {
		cache, cacheErr := statecache.Connect(ctx, cfg.Redis)
		if cacheErr != nil {
			return fmt.Errorf("connecting to Redis: %w", cacheErr)
		}
		defer func() {
			log.Info("closing Redis connection")
			if closeErr := cache.Close(); closeErr != nil {
				log.Error("error closing Redis", "error", closeErr)
			}
		}()
		cache.SetLogger(log.Component("statecache"))
		// Drop keys left over from devices that were unpaired while the
		// bridge was down. The first resync fills the mirror again.
		removed, syncErr := cache.Sync(ctx, registry.Snapshot())
		if syncErr != nil {
			return fmt.Errorf("syncing Redis mirror: %w", syncErr)
		}
		registry.OnReplace(cache.ObserveReplace)
		checks = append(checks, healthCheck{"redis", cache.HealthCheck})
		log.Info("Redis connected", "addr", cfg.Redis.Addr, "pruned", len(removed))
	} else {
		log.Info("Redis mirror disabled")
	}

	// HTTP API (optional)
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Logger:   log.Component("api"),
			Registry: registry,
			Commands: cmds,
			Audit:    recorder,
			Bridge:   bridgeMetrics,
			Observer: m,
			Version:  version,
		}
		if cfg.Metrics.Enabled {
			deps.MetricsHandler = m.Handler()
			deps.MetricsPath = cfg.Metrics.Path
		}
		server, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
		log.Info("API server listening", "addr", server.Addr().String())
	} else {
		log.Info("API disabled")
	}

	if err := runHealthChecks(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	scheduler.Start(ctx)
	defer func() {
		log.Info("stopping resync scheduler")
		scheduler.Stop()
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	// Deferred closes run in reverse order: scheduler, API, Redis,
	// InfluxDB, bridge, MQTT, database.
	return nil
}

// parseFlags returns the config path and whether it was chosen explicitly.
// The -config flag wins over WINKBRIDGE_CONFIG.
func parseFlags(args []string) (string, bool, error) {
	fset := flag.NewFlagSet("winkbridge", flag.ContinueOnError)
	path := fset.String("config", "", "path to config.yaml")
	if err := fset.Parse(args); err != nil {
		return "", false, err
	}
	if *path != "" {
		return *path, true, nil
	}
	if env := os.Getenv("WINKBRIDGE_CONFIG"); env != "" {
		return env, true, nil
	}
	return defaultConfigPath, false, nil
}

// loadConfig reads the config file. A missing implicit default falls back
// to defaults plus environment overrides.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	if !explicit && !fileExists(path) {
		return config.FromEnv()
	}
	return config.Load(path)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

// newController returns the in-memory fake or the aprontest-backed controller.
func newController(cfg *config.Config, log *logging.Logger, m *metrics.Metrics) (apron.Controller, error) {
	if cfg.Apron.Fake {
		log.Warn("using fake controller, no hub commands will run")
		return apron.NewFake(cfg.Apron.Radios), nil
	}

	runnerCfg := process.DefaultConfig("aprontest", cfg.Apron.Binary)
	runnerCfg.Timeout = cfg.Apron.Timeout
	runnerCfg.Serialize = cfg.Apron.Serialize
	runner := process.NewRunner(runnerCfg)
	runner.SetLogger(log.Component("aprontest"))

	return apron.New(apron.Options{
		Runner:   runner,
		Binary:   cfg.Apron.Binary,
		Radios:   cfg.Apron.Radios,
		Logger:   log.Component("apron"),
		Observer: m,
	})
}

// openDatabase opens the command log database and applies migrations.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS, "."); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

type healthCheck struct {
	name  string
	check func(ctx context.Context) error
}

// runHealthChecks returns the first failing check.
func runHealthChecks(ctx context.Context, checks []healthCheck) error {
	for _, c := range checks {
		if err := c.check(ctx); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}
