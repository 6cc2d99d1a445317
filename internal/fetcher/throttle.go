package fetcher

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Pacer blocks until the next request may be issued. *rate.Limiter and
// *Throttle both satisfy it.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the real Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Throttle sleeps a uniformly random duration in [0, max) before each
// request.
type Throttle struct {
	max   time.Duration
	sleep Sleeper
}

// NewThrottle creates a Throttle. A nil sleeper means SleepContext.
func NewThrottle(maxDelay time.Duration, sleep Sleeper) *Throttle {
	if sleep == nil {
		sleep = SleepContext
	}
	return &Throttle{max: maxDelay, sleep: sleep}
}

// Delay draws the next delay.
func (t *Throttle) Delay() time.Duration {
	if t.max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(t.max)))
}

// Wait sleeps for a freshly drawn delay.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.sleep(ctx, t.Delay())
}

// NewLimiter returns the lighter discovery-phase pacer: rps requests per
// second with a burst of one. rps <= 0 disables limiting.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}
