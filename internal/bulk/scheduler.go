package bulk

import (
	"context"
	"time"
)

// Scheduler abstracts the inter-batch delay so tests can advance time
// deterministically instead of waiting on real timers.
type Scheduler interface {
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerScheduler is the production scheduler backed by the runtime timer.
type TimerScheduler struct{}

// Sleep implements Scheduler.
func (TimerScheduler) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NopScheduler skips delays entirely. Used in tests and for operations
// configured with a zero inter-batch delay.
type NopScheduler struct{}

// Sleep implements Scheduler.
func (NopScheduler) Sleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}
