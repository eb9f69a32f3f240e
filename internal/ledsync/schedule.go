package ledsync

import (
	"context"
	"time"
)

// schedulePeriodic calls fn every interval until ctx is cancelled.
// It returns false, and schedules nothing, when interval is not positive.
func (s *Service) schedulePeriodic(ctx context.Context, interval time.Duration, fn func()) bool {
	if interval <= 0 {
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
	return true
}
