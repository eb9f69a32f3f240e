package ledsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yavuzozge/homeseer-dimmers/internal/history"
	"github.com/yavuzozge/homeseer-dimmers/internal/led"
	"github.com/yavuzozge/homeseer-dimmers/internal/opqueue"
	"github.com/yavuzozge/homeseer-dimmers/internal/ping"
	"github.com/yavuzozge/homeseer-dimmers/internal/reconcile"
)

// recordTimeout bounds how long recorders may take per run.
const recordTimeout = 5 * time.Second

// inputBuffer is the number of pending tables kept from the aggregator.
const inputBuffer = 1

// Sentinel errors for the service.
var (
	// ErrMissingDependency is returned by New when a required dependency is nil.
	ErrMissingDependency = errors.New("ledsync: missing dependency")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("ledsync: already started")
)

// Trigger names what submitted an operation group.
type Trigger string

// Triggers.
const (
	TriggerInput    Trigger = "input"
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
	TriggerAPI      Trigger = "api"
	TriggerMQTT     Trigger = "mqtt"
	TriggerEvent    Trigger = "ha_event"
)

// Logger defines the logging interface used by the Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Submitter queues operation groups.
type Submitter interface {
	Submit(name string, op opqueue.Operation)
}

// Reconciler runs reconciliation passes.
type Reconciler interface {
	Reconcile(ctx context.Context, table led.Table) (reconcile.Report, error)
}

// Pinger runs ping passes.
type Pinger interface {
	Ping(ctx context.Context) (ping.Report, error)
}

// Connection reports whether the device registry is reachable.
type Connection interface {
	IsConnected() bool
}

// TableSource publishes desired LED tables.
type TableSource interface {
	Subscribe(buffer int) (<-chan led.Table, func())
}

// Deps holds the service's collaborators. Input, Recorder, Logger and
// NewID are optional.
type Deps struct {
	Queue      Submitter
	Reconciler Reconciler
	Pinger     Pinger
	Connection Connection
	Input      TableSource
	Recorder   history.Recorder
	Logger     Logger
	NewID      func() string
}

// Options configures the periodic timers. A non-positive interval disables
// that timer.
type Options struct {
	ResyncInterval time.Duration
	PingInterval   time.Duration
}

// Service coordinates triggers into serialised operation groups.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use.
type Service struct {
	queue      Submitter
	reconciler Reconciler
	pinger     Pinger
	conn       Connection
	input      TableSource
	recorder   history.Recorder
	logger     Logger
	newID      func() string
	opts       Options

	mu        sync.RWMutex
	lastTable led.Table
	// aggregated is the newest table from input; resyncs use it once set.
	aggregated    led.Table
	hasAggregated bool
	lastRun       map[string]history.Run

	started  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a Service.
//
// Returns:
//   - *Service: Service ready to Start
//   - error: ErrMissingDependency if Queue, Reconciler, Pinger or Connection is nil
func New(deps Deps, opts Options) (*Service, error) {
	switch {
	case deps.Queue == nil:
		return nil, fmt.Errorf("%w: queue", ErrMissingDependency)
	case deps.Reconciler == nil:
		return nil, fmt.Errorf("%w: reconciler", ErrMissingDependency)
	case deps.Pinger == nil:
		return nil, fmt.Errorf("%w: pinger", ErrMissingDependency)
	case deps.Connection == nil:
		return nil, fmt.Errorf("%w: connection", ErrMissingDependency)
	}

	s := &Service{
		queue:      deps.Queue,
		reconciler: deps.Reconciler,
		pinger:     deps.Pinger,
		conn:       deps.Connection,
		input:      deps.Input,
		recorder:   deps.Recorder,
		logger:     deps.Logger,
		newID:      deps.NewID,
		opts:       opts,
		lastRun:    make(map[string]history.Run),
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s, nil
}

// Start follows the input source and starts the periodic timers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	if s.input != nil {
		tables, unsubscribe := s.input.Subscribe(inputBuffer)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer unsubscribe()
			s.followInput(runCtx, tables)
		}()
	}

	if s.schedulePeriodic(runCtx, s.opts.ResyncInterval, func() { s.resync(TriggerSchedule) }) {
		s.logger.Info("periodic LED resync enabled", "interval", s.opts.ResyncInterval)
	}
	if s.schedulePeriodic(runCtx, s.opts.PingInterval, func() { s.pingDevices(TriggerSchedule) }) {
		s.logger.Info("periodic device ping enabled", "interval", s.opts.PingInterval)
	}

	return nil
}

// Stop stops following input and the timers. Groups already queued are
// left to the queue's owner.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.mu.RLock()
		cancel := s.cancel
		s.mu.RUnlock()
		if cancel != nil {
			cancel()
		}
		s.wg.Wait()
	})
}

// SyncDimmers queues a reconciliation pass for table and remembers it as
// the last table.
func (s *Service) SyncDimmers(table led.Table) {
	s.sync(TriggerManual, table)
}

// SyncDimmersFrom is SyncDimmers with an explicit trigger for the run history.
func (s *Service) SyncDimmersFrom(trigger Trigger, table led.Table) {
	s.sync(trigger, table)
}

// ResyncUsingLastTable queues a reconciliation pass for the most recently
// aggregated input table. Tables supplied through SyncDimmers do not replace
// it; without an input source the last supplied table is used.
func (s *Service) ResyncUsingLastTable() {
	s.resync(TriggerManual)
}

// ResyncFrom is ResyncUsingLastTable with an explicit trigger.
func (s *Service) ResyncFrom(trigger Trigger) {
	s.resync(trigger)
}

// PingDevices queues a ping pass.
func (s *Service) PingDevices() {
	s.pingDevices(TriggerManual)
}

// PingFrom is PingDevices with an explicit trigger.
func (s *Service) PingFrom(trigger Trigger) {
	s.pingDevices(trigger)
}

// LastTable returns the most recently submitted desired table.
func (s *Service) LastTable() led.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTable
}

// LastRun returns the most recent run of kind, if any.
func (s *Service) LastRun(kind string) (history.Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.lastRun[kind]
	return run, ok
}

func (s *Service) followInput(ctx context.Context, tables <-chan led.Table) {
	for {
		select {
		case <-ctx.Done():
			return
		case table, ok := <-tables:
			if !ok {
				return
			}
			s.logger.Debug("LED input changed", "table", table.String())
			s.mu.Lock()
			s.aggregated = table
			s.hasAggregated = true
			s.mu.Unlock()
			s.sync(TriggerInput, table)
		}
	}
}

func (s *Service) sync(trigger Trigger, table led.Table) {
	s.mu.Lock()
	s.lastTable = table
	s.mu.Unlock()

	s.submitReconcile(trigger, table)
}

func (s *Service) resync(trigger Trigger) {
	s.submitReconcile(trigger, s.resyncTable())
}

func (s *Service) resyncTable() led.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.hasAggregated {
		return s.aggregated
	}
	return s.lastTable
}

func (s *Service) submitReconcile(trigger Trigger, table led.Table) {
	id := s.newID()
	s.queue.Submit("reconcile:"+string(trigger), func(ctx context.Context) error {
		return s.runReconcile(ctx, id, trigger, table)
	})
}

func (s *Service) pingDevices(trigger Trigger) {
	id := s.newID()
	s.queue.Submit("ping:"+string(trigger), func(ctx context.Context) error {
		return s.runPing(ctx, id, trigger)
	})
}

func (s *Service) runReconcile(ctx context.Context, id string, trigger Trigger, table led.Table) error {
	run := history.Run{
		ID:        id,
		Kind:      history.KindReconcile,
		Trigger:   string(trigger),
		StartedAt: time.Now(),
	}

	if !s.conn.IsConnected() {
		s.logger.Error("no registry connection, skipping dimmer LED sync", "run_id", id)
		run.Result = history.ResultSkipped
		s.record(ctx, run)
		return nil
	}

	report, err := s.reconciler.Reconcile(ctx, table)
	run.Attempts = report.Attempts
	run.Devices = report.Devices
	run.Writes = report.Writes
	run.FailedWrites = report.FailedWrites
	run.FailedDevices = report.FailedDevices
	run.Elapsed = time.Since(run.StartedAt)

	if err != nil {
		run.Result = history.ResultFailed
		run.Error = err.Error()
		s.record(ctx, run)
		return fmt.Errorf("dimmer LED sync %s: %w", id, err)
	}

	run.Result = report.Result.String()
	s.logger.Info("dimmer LED sync completed",
		"run_id", id,
		"trigger", trigger,
		"elapsed", report.Elapsed,
		"result", run.Result,
		"devices", report.Devices,
		"writes", report.Writes,
		"attempts", report.Attempts,
	)
	s.record(ctx, run)
	return nil
}

func (s *Service) runPing(ctx context.Context, id string, trigger Trigger) error {
	run := history.Run{
		ID:        id,
		Kind:      history.KindPing,
		Trigger:   string(trigger),
		StartedAt: time.Now(),
	}

	if !s.conn.IsConnected() {
		s.logger.Error("no registry connection, skipping device ping", "run_id", id)
		run.Result = history.ResultSkipped
		s.record(ctx, run)
		return nil
	}

	report, err := s.pinger.Ping(ctx)
	run.Attempts = 1
	run.Devices = report.Devices
	run.FailedDevices = report.Failures
	run.Elapsed = time.Since(run.StartedAt)

	if err != nil {
		run.Result = history.ResultFailed
		run.Error = err.Error()
		s.record(ctx, run)
		return fmt.Errorf("device ping %s: %w", id, err)
	}

	run.Result = history.ResultCompleted
	s.logger.Info("device ping completed",
		"run_id", id,
		"trigger", trigger,
		"elapsed", report.Elapsed,
		"devices", report.Devices,
		"failures", report.Failures,
	)
	s.record(ctx, run)
	return nil
}

// record stores run as the latest of its kind and hands it to the recorder.
func (s *Service) record(ctx context.Context, run history.Run) {
	s.mu.Lock()
	s.lastRun[run.Kind] = run
	s.mu.Unlock()

	if s.recorder == nil {
		return
	}
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.recorder.RecordRun(recordCtx, run); err != nil {
		s.logger.Warn("recording run failed", "run_id", run.ID, "error", err)
	}
}
