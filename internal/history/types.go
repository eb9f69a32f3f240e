package history

import (
	"context"
	"time"
)

// Run kinds.
const (
	KindReconcile = "reconcile"
	KindPing      = "ping"
)

// Run outcomes beyond the reconcile results.
const (
	ResultConverged             = "converged"
	ResultConvergedWithFailures = "converged_with_failures"
	ResultCompleted             = "completed"
	ResultFailed                = "failed"
	ResultSkipped               = "skipped"
)

// Run is the outcome of one operation group.
type Run struct {
	// ID is a UUID assigned when the group is submitted.
	ID string `json:"id"`

	// Kind is KindReconcile or KindPing.
	Kind string `json:"kind"`

	// Trigger names what submitted the group (input, resync, schedule, api, mqtt).
	Trigger string `json:"trigger"`

	// Result is one of the Result* constants.
	Result string `json:"result"`

	Attempts      int `json:"attempts"`
	Devices       int `json:"devices"`
	Writes        int `json:"writes"`
	FailedWrites  int `json:"failed_writes"`
	FailedDevices int `json:"failed_devices"`

	// Error is set when the group failed as a whole.
	Error string `json:"error,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// Recorder receives finished runs.
type Recorder interface {
	RecordRun(ctx context.Context, run Run) error
}

// Repository stores and lists runs.
type Repository interface {
	Recorder

	// ListRuns returns recent runs newest first. limit is clamped to 1..200.
	ListRuns(ctx context.Context, kind string, limit int) ([]Run, error)
}
