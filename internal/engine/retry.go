package engine

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/nvallejo/weft/pkg/schema"
)

// DefaultMaxAttempts is the total attempt budget per node per firing:
// one initial attempt plus retries.
const DefaultMaxAttempts = 3

// DefaultBackoff is the wait schedule before retry attempts 2 and 3. The
// last entry repeats if the schedule is shorter than the attempt budget.
var DefaultBackoff = []time.Duration{1 * time.Second, 5 * time.Second, 10 * time.Second}

// IsTransient classifies whether a node execution error warrants a retry.
// Only externally-caused failures are transient: TRANSIENT_ERROR codes,
// network errors, deadline expiry. Configuration and validation errors
// never retry; a canceled context means the run is shutting down.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var engErr *schema.EngineError
	if errors.As(err, &engErr) {
		return engErr.IsRetryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return false
}

// BackoffDelay returns the wait before the given retry. attempt is the
// attempt that just failed, starting at 1.
func BackoffDelay(schedule []time.Duration, attempt int) time.Duration {
	if len(schedule) == 0 || attempt < 1 {
		return 0
	}
	if attempt > len(schedule) {
		return schedule[len(schedule)-1]
	}
	return schedule[attempt-1]
}

// WaitForBackoff sleeps for the given delay or returns early if the
// context is canceled.
func WaitForBackoff(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
