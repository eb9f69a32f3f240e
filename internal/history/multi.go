package history

import (
	"context"
	"errors"
)

// MultiRecorder hands each run to every recorder and joins their errors.
type MultiRecorder []Recorder

// RecordRun calls every recorder, even after a failure.
func (m MultiRecorder) RecordRun(ctx context.Context, run Run) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.RecordRun(ctx, run); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
