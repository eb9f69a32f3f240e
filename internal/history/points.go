package history

import (
	"context"
	"time"
)

// MeasurementRuns is the time-series measurement PointRecorder writes.
const MeasurementRuns = "dimmer_sync_runs"

// PointWriter accepts time-series points. *influxdb.Client satisfies it.
type PointWriter interface {
	Write(measurement string, tags map[string]string, fields map[string]any, at time.Time)
}

// PointRecorder forwards runs to a time-series database as one point per
// run, stamped with the run's start time.
type PointRecorder struct {
	w PointWriter
}

// NewPointRecorder returns a recorder writing to w.
func NewPointRecorder(w PointWriter) *PointRecorder {
	return &PointRecorder{w: w}
}

// RecordRun writes run. Writes are batched by the underlying client, so
// failures surface through its error callback rather than here.
func (p *PointRecorder) RecordRun(_ context.Context, run Run) error {
	ts := run.StartedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	tags := map[string]string{
		"kind":   run.Kind,
		"result": run.Result,
	}
	if run.Trigger != "" {
		tags["trigger"] = run.Trigger
	}

	p.w.Write(MeasurementRuns, tags, map[string]any{
		"attempts":       run.Attempts,
		"devices":        run.Devices,
		"writes":         run.Writes,
		"failed_writes":  run.FailedWrites,
		"failed_devices": run.FailedDevices,
		"elapsed_ms":     run.Elapsed.Milliseconds(),
	}, ts)
	return nil
}
