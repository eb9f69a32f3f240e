// dimmersync keeps the status LEDs of HomeSeer Z-Wave dimmers in step with
// fourteen Home Assistant entities (a colour and a blink state per LED).
//
// It follows the entities over the Home Assistant websocket API, writes the
// dimmers' configuration parameters through Z-Wave JS, and records every
// reconciliation and ping pass in SQLite, Prometheus and optionally InfluxDB.
// An optional MQTT bridge and an HTTP API accept tables and commands.
//
// Usage:
//
//	dimmersync [-config path]
//	dimmersync -mint-token subject [-role operator] [-ttl 720h]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/yavuzozge/homeseer-dimmers/internal/api"
	"github.com/yavuzozge/homeseer-dimmers/internal/auth"
	"github.com/yavuzozge/homeseer-dimmers/internal/bridges/mqttbridge"
	"github.com/yavuzozge/homeseer-dimmers/internal/discovery"
	"github.com/yavuzozge/homeseer-dimmers/internal/history"
	"github.com/yavuzozge/homeseer-dimmers/internal/homeassistant"
	"github.com/yavuzozge/homeseer-dimmers/internal/infrastructure/config"
	"github.com/yavuzozge/homeseer-dimmers/internal/infrastructure/database"
	"github.com/yavuzozge/homeseer-dimmers/internal/infrastructure/influxdb"
	"github.com/yavuzozge/homeseer-dimmers/internal/infrastructure/logging"
	"github.com/yavuzozge/homeseer-dimmers/internal/infrastructure/mqtt"
	"github.com/yavuzozge/homeseer-dimmers/internal/ledinput"
	"github.com/yavuzozge/homeseer-dimmers/internal/ledsync"
	"github.com/yavuzozge/homeseer-dimmers/internal/metrics"
	"github.com/yavuzozge/homeseer-dimmers/internal/opqueue"
	"github.com/yavuzozge/homeseer-dimmers/internal/ping"
	"github.com/yavuzozge/homeseer-dimmers/internal/reconcile"
	"github.com/yavuzozge/homeseer-dimmers/internal/zwave"
	"github.com/yavuzozge/homeseer-dimmers/migrations"
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

// healthCheckTimeout bounds the startup health checks.
const healthCheckTimeout = 10 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options are the command line flags.
type options struct {
	configPath string
	mintToken  string
	role       string
	ttl        time.Duration
	version    bool
}

// parseFlags parses args into options.
func parseFlags(args []string, output io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("dimmersync", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.configPath, "config", getConfigPath(), "configuration file")
	fs.StringVar(&opts.mintToken, "mint-token", "", "print an API token for `subject` and exit")
	fs.StringVar(&opts.role, "role", string(auth.RoleViewer), "role of the minted token (viewer or operator)")
	fs.DurationVar(&opts.ttl, "ttl", auth.DefaultTokenTTL, "lifetime of the minted token")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command line arguments without the program name
//   - stdout: Destination for -version and -mint-token output
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string, stdout io.Writer) error { //nolint:gocognit,gocyclo // startup wiring is linear
	opts, err := parseFlags(args, stdout)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if opts.version {
		fmt.Fprintf(stdout, "dimmersync %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if opts.mintToken != "" {
		return mintToken(cfg, opts, stdout)
	}

	log := logging.New(cfg.Logging, version)
	log.Info("starting dimmersync",
		"version", version,
		"commit", commit,
		"build_date", date,
	)
	log.Info("configuration loaded",
		"path", opts.configPath,
		"log_level", cfg.Logging.Level,
		"log_format", cfg.Logging.Format,
	)

	// Open database and apply migrations
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", db.Path())

	applied, err := db.Migrate(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete", "applied", applied)

	// Connect to Home Assistant
	haCfg := homeAssistantConfig(cfg.HomeAssistant)
	haClient, err := homeassistant.ConnectWithLogger(ctx, haCfg, log.Component("homeassistant"))
	if err != nil {
		return fmt.Errorf("connecting to Home Assistant: %w", err)
	}
	defer func() {
		log.Info("disconnecting from Home Assistant")
		if closeErr := haClient.Close(); closeErr != nil {
			log.Error("error closing Home Assistant client", "error", closeErr)
		}
	}()
	haClient.SetOnConnect(func() {
		log.Info("Home Assistant reconnected")
	})
	haClient.SetOnDisconnect(func(err error) {
		log.Warn("Home Assistant disconnected", "error", err)
	})
	log.Info("Home Assistant connected", "url", haCfg.URL)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	runMetrics := metrics.New(registry)
	runMetrics.SetInfo(version)
	runMetrics.ObserveConnection("home_assistant", haClient.IsConnected)

	// Run history sinks; the MQTT bridge and API server join once built.
	sinks := &runSinks{}
	sinks.add(history.NewSQLiteRepository(db.DB))
	sinks.add(runMetrics)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
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
		sinks.add(history.NewPointRecorder(influxClient))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Dimmer reconciliation and device pings
	dimmerCache := discovery.New(haClient, "dimmers")
	dimmerCache.SetLogger(log.Component("discovery"))
	pingCache := discovery.New(haClient, "ping_targets")
	pingCache.SetLogger(log.Component("discovery"))

	reconciler, err := reconcile.New(reconcile.Deps{
		Parameters: haClient,
		Discovery:  dimmerCache,
		Logger:     log.Component("reconcile"),
	}, reconcile.Options{
		BlinkFrequency:    cfg.Dimmers.BlinkFrequency,
		DiscoveryValidity: cfg.GetDiscoveryValidity(),
		MaxAttempts:       cfg.Dimmers.MaxAttempts,
	})
	if err != nil {
		return fmt.Errorf("creating reconciler: %w", err)
	}

	targets, err := pingTargets(cfg.Dimmers.PingDevices)
	if err != nil {
		return err
	}
	pinger, err := ping.New(ping.Deps{
		Refresher: haClient,
		Discovery: pingCache,
		Logger:    log.Component("ping"),
	}, targets, cfg.GetDiscoveryValidity())
	if err != nil {
		return fmt.Errorf("creating pinger: %w", err)
	}

	queue := opqueue.New()
	queue.SetLogger(log.Component("opqueue"))
	runMetrics.ObserveQueue(queue.Pending)

	input, err := ledinput.New(entityStates{source: haClient}, ledinput.Options{
		ColorPattern: cfg.Dimmers.ColorPattern,
		BlinkPattern: cfg.Dimmers.BlinkPattern,
		Logger:       log.Component("ledinput"),
	})
	if err != nil {
		return fmt.Errorf("creating LED input: %w", err)
	}

	service, err := ledsync.New(ledsync.Deps{
		Queue:      queue,
		Reconciler: reconciler,
		Pinger:     pinger,
		Connection: haClient,
		Input:      input,
		Recorder:   sinks,
		Logger:     log.Component("ledsync"),
	}, ledsync.Options{
		ResyncInterval: cfg.GetResyncInterval(),
		PingInterval:   cfg.GetPingInterval(),
	})
	if err != nil {
		return fmt.Errorf("creating sync service: %w", err)
	}

	if event := cfg.HomeAssistant.TriggerEvent; event != "" {
		haClient.OnEvent(event, func(json.RawMessage) {
			log.Info("sync requested by Home Assistant event", "event", event)
			service.ResyncFrom(ledsync.TriggerEvent)
		})
	}

	// Connect to MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = startMQTT(ctx, cfg, service, input, sinks, runMetrics, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	} else {
		log.Info("MQTT disabled")
	}

	// HTTP API (optional)
	if cfg.API.Enabled {
		health := map[string]api.HealthFunc{
			"database":       db.HealthCheck,
			"home_assistant": haClient.HealthCheck,
		}
		if mqttClient != nil {
			health["mqtt"] = mqttClient.HealthCheck
		}
		if influxClient != nil {
			health["influxdb"] = influxClient.HealthCheck
		}

		server, apiErr := api.New(api.Deps{
			Config:      cfg.API,
			WS:          cfg.WebSocket,
			Security:    cfg.Security,
			Logger:      log.Component("api"),
			Coordinator: service,
			Input:       input,
			Runs:        history.NewSQLiteRepository(db.DB),
			Dimmers:     dimmerCache,
			PingTargets: pingCache,
			Health:      health,
			Metrics:     metrics.Handler(registry),
			Version:     version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		sinks.add(server)
	} else {
		log.Info("HTTP API disabled")
	}

	// Start the pipeline: queue first so the initial table has a consumer.
	if err := queue.Start(ctx); err != nil {
		return fmt.Errorf("starting operation queue: %w", err)
	}
	defer queue.Stop()

	if err := input.Start(ctx); err != nil {
		return fmt.Errorf("starting LED input: %w", err)
	}
	defer input.Stop()

	if err := service.Start(ctx); err != nil {
		return fmt.Errorf("starting sync service: %w", err)
	}
	defer service.Stop()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, haClient, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"channels", len(input.ChannelNames()),
		"ping_targets", len(targets),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: service, input, queue, API,
	// MQTT, InfluxDB, Home Assistant, database.

	log.Info("dimmersync stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses DIMMERSYNC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DIMMERSYNC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// mintToken prints a signed API token for opts.mintToken.
func mintToken(cfg *config.Config, opts options, stdout io.Writer) error {
	token, err := auth.GenerateToken(opts.mintToken, auth.Role(opts.role), cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer, opts.ttl)
	if err != nil {
		return fmt.Errorf("minting token: %w", err)
	}
	fmt.Fprintln(stdout, token)
	return nil
}

// homeAssistantConfig converts the YAML settings into client configuration.
func homeAssistantConfig(cfg config.HomeAssistantConfig) homeassistant.Config {
	haCfg := homeassistant.Config{
		URL:                  cfg.URL,
		Token:                cfg.Token,
		ConnectTimeout:       time.Duration(cfg.ConnectTimeout) * time.Second,
		RequestTimeout:       time.Duration(cfg.RequestTimeout) * time.Second,
		ReconnectInterval:    time.Duration(cfg.Reconnect.InitialDelay) * time.Second,
		MaxReconnectInterval: time.Duration(cfg.Reconnect.MaxDelay) * time.Second,
	}
	if cfg.TriggerEvent != "" {
		haCfg.Events = []string{cfg.TriggerEvent}
	}
	return haCfg
}

// pingTargets resolves the configured ping devices. A blank command class
// refreshes every value (NoOperation).
func pingTargets(devices []config.PingDeviceConfig) ([]ping.Target, error) {
	targets := make([]ping.Target, 0, len(devices))
	for _, d := range devices {
		cc := zwave.CommandClassNoOperation
		if d.CommandClass != "" {
			parsed, err := zwave.ParseCommandClass(d.CommandClass)
			if err != nil {
				return nil, fmt.Errorf("ping device %q: %w", d.Name, err)
			}
			cc = parsed
		}
		targets = append(targets, ping.Target{Name: d.Name, CommandClass: cc})
	}
	return targets, nil
}

// startMQTT connects to the broker and starts the command bridge.
//
// The bridge is stopped when ctx is cancelled; the caller owns the client.
//
// Returns:
//   - *mqtt.Client: Connected client
//   - error: If the connection or bridge fails
func startMQTT(ctx context.Context, cfg *config.Config, service *ledsync.Service, input *ledinput.Aggregator, sinks *runSinks, runMetrics *metrics.Metrics, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	runMetrics.ObserveConnection("mqtt", client.IsConnected)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	bridge, err := mqttbridge.New(mqttbridge.Deps{
		MQTT:     client,
		Commands: service,
		Input:    input,
		Logger:   log.Component("mqttbridge"),
		QoS:      byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0-2
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("creating MQTT bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("starting MQTT bridge: %w", err)
	}
	context.AfterFunc(ctx, bridge.Stop)
	sinks.add(bridge)
	log.Info("MQTT bridge started")

	return client, nil
}

// healthChecker is a component with a health check.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// healthCheck verifies all infrastructure connections are healthy.
//
// The checks run concurrently; optional clients may be nil.
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, ha *homeassistant.Client, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	checks := map[string]healthChecker{
		"database":       db,
		"home_assistant": ha,
	}
	if mqttClient != nil {
		checks["mqtt"] = mqttClient
	}
	if influxClient != nil {
		checks["influxdb"] = influxClient
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for name, check := range checks {
		name, check := name, check
		g.Go(func() error {
			if err := check.HealthCheck(gctx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// haStates is the entity-state side of the Home Assistant client.
type haStates interface {
	CurrentValue(entityID string) (string, bool)
	SubscribeChanges(entityIDs []string, handler func(homeassistant.StateChange)) (func(), error)
}

// entityStates adapts Home Assistant entity states to ledinput.StateSource.
type entityStates struct {
	source haStates
}

func (e entityStates) CurrentValue(entityID string) (string, bool) {
	return e.source.CurrentValue(entityID)
}

func (e entityStates) SubscribeChanges(entityIDs []string, handler func(ledinput.StateChange)) (func(), error) {
	return e.source.SubscribeChanges(entityIDs, func(c homeassistant.StateChange) {
		handler(ledinput.StateChange{EntityID: c.EntityID, State: c.State})
	})
}

// runSinks fans finished runs out to recorders that may be added after the
// sync service is built (the MQTT bridge and API server need the service).
type runSinks struct {
	mu        sync.RWMutex
	recorders history.MultiRecorder
}

func (s *runSinks) add(r history.Recorder) {
	s.mu.Lock()
	s.recorders = append(s.recorders, r)
	s.mu.Unlock()
}

// RecordRun implements history.Recorder.
func (s *runSinks) RecordRun(ctx context.Context, run history.Run) error {
	s.mu.RLock()
	recorders := s.recorders
	s.mu.RUnlock()
	return recorders.RecordRun(ctx, run)
}

var _ history.Recorder = (*runSinks)(nil)
