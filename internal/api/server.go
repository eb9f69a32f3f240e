package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/yavuzozge/homeseer-dimmers/internal/history"
	"github.com/yavuzozge/homeseer-dimmers/internal/infrastructure/config"
	"github.com/yavuzozge/homeseer-dimmers/internal/infrastructure/logging"
	"github.com/yavuzozge/homeseer-dimmers/internal/led"
	"github.com/yavuzozge/homeseer-dimmers/internal/ledsync"
	"github.com/yavuzozge/homeseer-dimmers/internal/zwave"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// tableBuffer is the LED table subscription depth for the websocket hub.
const tableBuffer = 1

// ErrMissingDependency is returned by New when a required dependency is nil.
var ErrMissingDependency = errors.New("api: missing dependency")

// Coordinator is the part of ledsync.Service the API drives.
type Coordinator interface {
	SyncDimmersFrom(trigger ledsync.Trigger, table led.Table)
	ResyncFrom(trigger ledsync.Trigger)
	PingFrom(trigger ledsync.Trigger)
	LastTable() led.Table
	LastRun(kind string) (history.Run, bool)
}

// TableSource is the aggregated LED input.
type TableSource interface {
	Current() led.Table
	Subscribe(buffer int) (<-chan led.Table, func())
}

// RunLister lists recorded runs.
type RunLister interface {
	ListRuns(ctx context.Context, kind string, limit int) ([]history.Run, error)
}

// DeviceSnapshot exposes a discovery cache without triggering discovery.
type DeviceSnapshot interface {
	Snapshot() ([]zwave.Device, time.Time)
}

// HealthFunc checks one component.
type HealthFunc func(ctx context.Context) error

// Deps holds the dependencies required by the API server.
//
// Input, Runs, Dimmers, PingTargets, Health and Metrics are optional; the
// matching routes answer 503 when they are missing.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Security    config.SecurityConfig
	Logger      *logging.Logger
	Coordinator Coordinator
	Input       TableSource
	Runs        RunLister
	Dimmers     DeviceSnapshot
	PingTargets DeviceSnapshot
	Health      map[string]HealthFunc
	Metrics     http.Handler
	Version     string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware and the websocket hub
// that streams LED tables and run results.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	coordinator Coordinator
	input       TableSource
	runs        RunLister
	dimmers     DeviceSnapshot
	pingTargets DeviceSnapshot
	health      map[string]HealthFunc
	metrics     http.Handler
	version     string

	hub     *Hub
	tickets *ticketStore
	handler http.Handler

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a new API server with the given dependencies.
//
// The router is built immediately so Handler can be used without a
// listener; nothing runs until Start.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: ErrMissingDependency if Logger or Coordinator is nil
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("%w: logger", ErrMissingDependency)
	}
	if deps.Coordinator == nil {
		return nil, fmt.Errorf("%w: coordinator", ErrMissingDependency)
	}

	s := &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		secCfg:      deps.Security,
		logger:      deps.Logger,
		coordinator: deps.Coordinator,
		input:       deps.Input,
		runs:        deps.Runs,
		dimmers:     deps.Dimmers,
		pingTargets: deps.PingTargets,
		health:      deps.Health,
		metrics:     deps.Metrics,
		version:     deps.Version,
		hub:         NewHub(deps.WS, deps.Logger),
		tickets:     newTicketStore(),
	}
	s.hub.SetSnapshot(ChannelLEDs, func() any { return s.currentTable() })
	s.handler = s.buildRouter()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener and serves in the background.
//
// It also starts relaying LED tables from the input source to websocket
// clients and the expired ticket sweeper. Everything stops on Close or when
// ctx is cancelled.
//
// Returns:
//   - error: If the listener cannot be bound (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	srvCtx, cancel := context.WithCancel(ctx)
	server := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.mu.Lock()
	s.server = server
	s.listener = ln
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.hub.Run(srvCtx)
	}()
	go func() {
		defer s.wg.Done()
		s.tickets.sweep(srvCtx, ticketTTL)
	}()

	if s.input != nil {
		tables, unsubscribe := s.input.Subscribe(tableBuffer)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer unsubscribe()
			s.relayTables(srvCtx, tables)
		}()
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// currentTable is the aggregated input table, or the last submitted one when
// no input source is wired.
func (s *Server) currentTable() led.Table {
	if s.input != nil {
		return s.input.Current()
	}
	return s.coordinator.LastTable()
}

// relayTables broadcasts every published LED table to websocket clients.
func (s *Server) relayTables(ctx context.Context, tables <-chan led.Table) {
	for {
		select {
		case <-ctx.Done():
			return
		case table, ok := <-tables:
			if !ok {
				return
			}
			s.hub.Broadcast(ChannelLEDs, table)
		}
	}
}

// RecordRun streams a finished run to websocket clients subscribed to
// ChannelRuns. It lets the server sit in a history.MultiRecorder.
func (s *Server) RecordRun(_ context.Context, run history.Run) error {
	s.hub.Broadcast(ChannelRuns, run)
	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	s.mu.Lock()
	server, cancel := s.server, s.cancel
	s.server, s.cancel = nil, nil
	s.mu.Unlock()

	if server == nil {
		return nil
	}
	cancel()

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("API server shutting down")
	err := server.Shutdown(ctx)
	s.wg.Wait()
	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
