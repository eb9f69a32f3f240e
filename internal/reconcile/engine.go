package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yavuzozge/homeseer-dimmers/internal/discovery"
	"github.com/yavuzozge/homeseer-dimmers/internal/led"
	"github.com/yavuzozge/homeseer-dimmers/internal/zwave"
)

// Defaults for Options.
const (
	// DefaultMaxAttempts is one pass plus one retry.
	DefaultMaxAttempts = 2

	// statusAccepted is the registry status of a successful write.
	statusAccepted = "accepted"
)

// Logger defines the logging interface used by the Engine.
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

// ParameterClient reads and writes device configuration parameters.
type ParameterClient interface {
	ParameterReader
	SetConfigurationParameter(ctx context.Context, device zwave.Device, property int, propertyKey *int, value string) (string, error)
}

// DeviceSource returns the devices to reconcile.
type DeviceSource interface {
	Devices(ctx context.Context, predicate discovery.Predicate, validity time.Duration) ([]zwave.Device, error)
}

// Deps holds the engine's collaborators.
type Deps struct {
	Parameters ParameterClient
	Discovery  DeviceSource
	Logger     Logger
}

// Options configures reconciliation.
type Options struct {
	// BlinkFrequency is the target value of the blink frequency parameter.
	BlinkFrequency int

	// DiscoveryValidity is how long a dimmer discovery stays fresh.
	DiscoveryValidity time.Duration

	// MaxAttempts bounds the device loop per pass. Zero means DefaultMaxAttempts.
	MaxAttempts int
}

// Result is the terminal state of a pass.
type Result int

// Pass results.
const (
	Converged Result = iota
	ConvergedWithFailures
)

func (r Result) String() string {
	if r == ConvergedWithFailures {
		return "converged_with_failures"
	}
	return "converged"
}

// Report summarises one pass.
type Report struct {
	Result        Result
	Attempts      int
	Devices       int
	Writes        int
	FailedWrites  int
	FailedDevices int
	Elapsed       time.Duration
}

// Engine reconciles dimmers toward a desired table.
type Engine struct {
	params    ParameterClient
	discovery DeviceSource
	logger    Logger
	opts      Options
}

// New creates an Engine.
//
// Returns:
//   - *Engine: Engine ready for use
//   - error: ErrMissingDependency if Parameters or Discovery is nil
func New(deps Deps, opts Options) (*Engine, error) {
	if deps.Parameters == nil {
		return nil, fmt.Errorf("%w: parameters client", ErrMissingDependency)
	}
	if deps.Discovery == nil {
		return nil, fmt.Errorf("%w: discovery", ErrMissingDependency)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		params:    deps.Parameters,
		discovery: deps.Discovery,
		logger:    logger,
		opts:      opts,
	}, nil
}

// deviceOutcome is the result of reconciling one device in one attempt.
type deviceOutcome struct {
	writes int
	failed int
	fatal  error
}

// Reconcile runs one pass for table.
//
// Discovery happens once per pass. The device loop runs again only when a
// write failed, up to MaxAttempts loops in total. Every loop reads every
// device again, including ones whose read failed before; the failure
// counts in the report are those of the final loop.
//
// Parameters:
//   - ctx: Cancels the pass between and during registry calls
//   - table: Desired LED state
//
// Returns:
//   - Report: Outcome of the final attempt plus totals
//   - error: Discovery failure or context cancellation
func (e *Engine) Reconcile(ctx context.Context, table led.Table) (Report, error) {
	start := time.Now()
	var report Report

	devices, err := e.discovery.Devices(ctx, IsSupportedDimmer, e.opts.DiscoveryValidity)
	if err != nil {
		return report, fmt.Errorf("discovering dimmers: %w", err)
	}
	report.Devices = len(devices)

	for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
		report.Attempts = attempt
		report.FailedWrites = 0
		report.FailedDevices = 0
		retry := false

		if attempt > 1 {
			e.logger.Info("retrying dimmer LED sync", "attempt", attempt)
		}

		for _, device := range devices {
			if err := ctx.Err(); err != nil {
				report.Elapsed = time.Since(start)
				return report, err
			}

			outcome := e.reconcileDevice(ctx, device, table)
			report.Writes += outcome.writes

			if outcome.fatal != nil {
				e.logger.Error("skipping dimmer",
					"device_id", device.ID,
					"name", device.DisplayName(),
					"error", outcome.fatal,
				)
				report.FailedDevices++
				continue
			}
			if outcome.failed > 0 {
				report.FailedWrites += outcome.failed
				retry = true
			}
		}

		if !retry {
			break
		}
	}

	report.Result = Converged
	if report.FailedWrites > 0 || report.FailedDevices > 0 {
		report.Result = ConvergedWithFailures
	}
	report.Elapsed = time.Since(start)
	return report, nil
}

// reconcileDevice reads the device and writes the differing fields.
func (e *Engine) reconcileDevice(ctx context.Context, device zwave.Device, table led.Table) deviceOutcome {
	var out deviceOutcome

	node, err := zwave.NodeID(device)
	if err != nil {
		out.fatal = err
		return out
	}

	current, err := ReadConfiguration(ctx, e.params, device, node)
	if err != nil {
		out.fatal = err
		return out
	}

	for _, w := range Plan(current, table, e.opts.BlinkFrequency) {
		out.writes++
		if err := e.write(ctx, device, w); err != nil {
			out.failed++
			e.logger.Warn("dimmer parameter write failed",
				"device_id", device.ID,
				"name", device.DisplayName(),
				"field", w.Field,
				"property", w.Property,
				"error", err,
			)
		}
	}

	if out.writes > 0 {
		e.logger.Info("dimmer LEDs updated",
			"device_id", device.ID,
			"name", device.DisplayName(),
			"writes", out.writes,
			"failed", out.failed,
		)
	}
	return out
}

func (e *Engine) write(ctx context.Context, device zwave.Device, w Write) error {
	e.logger.Debug("writing dimmer parameter",
		"device_id", device.ID,
		"field", w.Field,
		"property", w.Property,
		"value", w.Value,
	)

	status, err := e.params.SetConfigurationParameter(ctx, device, w.Property, w.PropertyKey, w.Value)
	if err != nil {
		return err
	}
	if !strings.EqualFold(status, statusAccepted) {
		return fmt.Errorf("%w: status %q", ErrWriteRejected, status)
	}
	return nil
}
