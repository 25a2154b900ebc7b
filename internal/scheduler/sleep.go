// Package scheduler runs deferred actions at a wall-clock deadline.
package scheduler

import (
	"context"
	"math"
	"time"
)

// MaxWait is the longest single timer wait. Longer delays are split into
// consecutive sub-waits.
var MaxWait = time.Duration(math.MaxInt32-1) * time.Millisecond

// waitOnce blocks for d or until ctx is done.
var waitOnce = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Sleep waits for d in steps of at most MaxWait, checking ctx before each
// step. A non-positive d returns immediately.
func Sleep(ctx context.Context, d time.Duration) error {
	for d > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		step := min(d, MaxWait)
		if err := waitOnce(ctx, step); err != nil {
			return err
		}
		d -= step
	}
	return nil
}
