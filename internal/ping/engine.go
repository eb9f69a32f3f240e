package ping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yavuzozge/homeseer-dimmers/internal/discovery"
	"github.com/yavuzozge/homeseer-dimmers/internal/zwave"
)

// ErrMissingDependency is returned by New when a required dependency is nil.
var ErrMissingDependency = errors.New("ping: missing dependency")

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

// Target is a device to ping and the command class to refresh on it.
type Target struct {
	Name         string
	CommandClass zwave.CommandClassID
}

// Refresher issues refresh requests.
type Refresher interface {
	RefreshValues(ctx context.Context, device zwave.Device) error
	RefreshCommandClassValues(ctx context.Context, device zwave.Device, commandClass zwave.CommandClassID) error
}

// DeviceSource returns the devices to ping.
type DeviceSource interface {
	Devices(ctx context.Context, predicate discovery.Predicate, validity time.Duration) ([]zwave.Device, error)
}

// Deps holds the engine's collaborators.
type Deps struct {
	Refresher Refresher
	Discovery DeviceSource
	Logger    Logger
}

// Report summarises one ping pass.
type Report struct {
	Devices  int
	Failures int
	Elapsed  time.Duration
}

// Engine runs ping passes.
type Engine struct {
	refresher Refresher
	discovery DeviceSource
	logger    Logger
	targets   map[string]zwave.CommandClassID
	validity  time.Duration
}

// New creates a ping Engine for targets. When two targets share a name the
// first one is used.
func New(deps Deps, targets []Target, validity time.Duration) (*Engine, error) {
	if deps.Refresher == nil {
		return nil, fmt.Errorf("%w: refresher", ErrMissingDependency)
	}
	if deps.Discovery == nil {
		return nil, fmt.Errorf("%w: discovery", ErrMissingDependency)
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	byName := make(map[string]zwave.CommandClassID, len(targets))
	for _, t := range targets {
		if _, dup := byName[t.Name]; dup {
			logger.Warn("ignoring duplicate ping target", "name", t.Name, "command_class", t.CommandClass)
			continue
		}
		byName[t.Name] = t.CommandClass
	}

	return &Engine{
		refresher: deps.Refresher,
		discovery: deps.Discovery,
		logger:    logger,
		targets:   byName,
		validity:  validity,
	}, nil
}

// Matches reports whether d is a configured ping target.
func (e *Engine) Matches(d zwave.Device) bool {
	_, ok := e.targets[d.Name]
	return ok
}

// Ping refreshes every matched device once.
//
// Returns:
//   - Report: Devices pinged and refresh failures
//   - error: Discovery failure or context cancellation
func (e *Engine) Ping(ctx context.Context) (Report, error) {
	start := time.Now()
	var report Report

	if len(e.targets) == 0 {
		return report, nil
	}

	devices, err := e.discovery.Devices(ctx, e.Matches, e.validity)
	if err != nil {
		return report, fmt.Errorf("discovering ping targets: %w", err)
	}
	report.Devices = len(devices)

	for _, device := range devices {
		if err := ctx.Err(); err != nil {
			report.Elapsed = time.Since(start)
			return report, err
		}

		cc := e.targets[device.Name]
		if err := e.refresh(ctx, device, cc); err != nil {
			report.Failures++
			e.logger.Warn("device ping failed",
				"device_id", device.ID,
				"name", device.Name,
				"command_class", cc.String(),
				"error", err,
			)
			continue
		}
		e.logger.Debug("device pinged", "device_id", device.ID, "name", device.Name, "command_class", cc.String())
	}

	report.Elapsed = time.Since(start)
	return report, nil
}

func (e *Engine) refresh(ctx context.Context, device zwave.Device, cc zwave.CommandClassID) error {
	if cc == zwave.CommandClassNoOperation {
		return e.refresher.RefreshValues(ctx, device)
	}
	return e.refresher.RefreshCommandClassValues(ctx, device, cc)
}
