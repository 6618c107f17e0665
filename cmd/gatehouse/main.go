// Gatehouse is a role-based access gateway.
//
// It authenticates principals from a configured directory, issues signed
// access tokens, enforces role requirements on protected routes, and
// records every authentication outcome to an audit trail that is also
// streamed over WebSocket, MQTT and InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gatehouse/internal/api"
	"github.com/nerrad567/gatehouse/internal/audit"
	"github.com/nerrad567/gatehouse/internal/auth"
	"github.com/nerrad567/gatehouse/internal/infrastructure/config"
	"github.com/nerrad567/gatehouse/internal/infrastructure/database"
	"github.com/nerrad567/gatehouse/internal/infrastructure/influxdb"
	"github.com/nerrad567/gatehouse/internal/infrastructure/logging"
	"github.com/nerrad567/gatehouse/internal/infrastructure/mqtt"
	"github.com/nerrad567/gatehouse/migrations"
)

// Version information, set at build time via ldflags:
// go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled.
// Components are torn down in reverse start order.
func run(ctx context.Context) error {
	boot := logging.Default()
	boot.Info("gatehouse starting", "version", version, "commit", commit, "build_date", date)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config %s: %w", configPath, err)
	}

	log := logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "log_level", cfg.Logging.Level)

	authn, guard, err := buildAuth(cfg, log)
	if err != nil {
		return err
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening audit store: %w", err)
	}
	defer closeLogged(log, "database", db.Close)
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("migrating audit store: %w", err)
	}
	log.Info("audit store ready", "path", db.Path())

	bus, err := connectMQTT(cfg.MQTT, log)
	if err != nil {
		return err
	}
	if bus != nil {
		defer closeLogged(log, "mqtt", bus.Close)
	}

	metrics, err := connectInflux(ctx, cfg.InfluxDB, log)
	if err != nil {
		return err
	}
	if metrics != nil {
		defer closeLogged(log, "influxdb", metrics.Close)
	}

	// Drained after the API server stops and before its sinks close.
	auditRepo := audit.NewSQLiteRepository(db.DB)
	recorder := audit.NewRecorder(auditRepo, log.With("component", "audit").Logger, audit.DefaultQueueSize)
	defer closeLogged(log, "audit recorder", func() error { recorder.Close(); return nil })

	deps := api.Deps{
		Config:        cfg.API,
		WS:            cfg.WebSocket,
		RateLimit:     cfg.Security.RateLimit,
		Logger:        log,
		Authenticator: authn,
		Guard:         guard,
		AuditRepo:     auditRepo,
		Recorder:      recorder,
		Version:       version,
	}
	if bus != nil {
		recorder.AddSink("mqtt", audit.MQTTSink(bus))
	}
	if metrics != nil {
		recorder.AddSink("influxdb", audit.MetricsSink(metrics))
		deps.Metrics = metrics
	}

	srv, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer closeLogged(log, "api server", srv.Close)

	if err := healthCheck(ctx, db, bus, metrics); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("gatehouse ready")

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

// buildAuth loads the principal directory and assembles the token
// services around it.
func buildAuth(cfg *config.Config, log *logging.Logger) (*auth.Authenticator, *auth.Guard, error) {
	dir, err := auth.LoadDirectory(cfg.DirectorySource(os.Environ()), auth.DirectoryOptions{
		Prefix:           cfg.Directory.EnvPrefix,
		AllowDevFallback: cfg.Directory.AllowDevFallback,
		Logger:           log.With("component", "directory").Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("loading directory: %w", err)
	}

	codec, err := auth.NewTokenCodec(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer, cfg.TokenTTL())
	if err != nil {
		return nil, nil, fmt.Errorf("creating token codec: %w", err)
	}
	authn, err := auth.NewAuthenticator(dir, codec, log.With("component", "auth").Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating authenticator: %w", err)
	}

	log.Info("directory loaded", "principals", dir.Len(), "token_ttl", codec.TTL())
	return authn, auth.NewGuard(codec, dir), nil
}

// connectMQTT returns nil when the bus is disabled.
func connectMQTT(cfg config.MQTTConfig, log *logging.Logger) (*mqtt.Client, error) {
	if !cfg.Enabled {
		log.Info("mqtt disabled")
		return nil, nil
	}
	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log)
	client.SetOnConnect(func() { log.Debug("mqtt session established") })
	client.SetOnDisconnect(func(err error) { log.Warn("mqtt disconnected", "error", err) })

	log.Info("mqtt connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)
	return client, nil
}

// connectInflux returns nil when metrics are disabled.
func connectInflux(ctx context.Context, cfg config.InfluxDBConfig, log *logging.Logger) (*influxdb.Client, error) {
	if !cfg.Enabled {
		log.Info("influxdb disabled")
		return nil, nil
	}
	client, err := influxdb.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) { log.Error("influxdb write failed", "error", err) })

	log.Info("influxdb connected", "url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket)
	return client, nil
}

func closeLogged(log *logging.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		log.Error("close failed", "component", name, "error", err)
		return
	}
	log.Info("closed", "component", name)
}

func getConfigPath() string {
	if path := os.Getenv("GATEHOUSE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck accepts nil for the optional clients.
func healthCheck(ctx context.Context, db *database.DB, bus *mqtt.Client, metrics *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if bus != nil {
		if err := bus.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if metrics != nil {
		if err := metrics.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
