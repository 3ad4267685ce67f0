package ratelimit

import (
	"context"
	"time"
)

// Sleeper pauses for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper backed by a timer
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Throttle paces a local loop: it sleeps Period once every Every iterations,
// starting with the first one. Every == 0 disables it.
type Throttle struct {
	every  int
	period time.Duration
	sleep  Sleeper
}

// NewThrottle creates a loop throttle
func NewThrottle(every int, period time.Duration, sleep Sleeper) *Throttle {
	if sleep == nil {
		sleep = Sleep
	}
	return &Throttle{
		every:  every,
		period: period,
		sleep:  sleep,
	}
}

// Tick is called before iteration i
func (t *Throttle) Tick(ctx context.Context, i int) error {
	if t == nil || t.every <= 0 {
		return nil
	}
	if i%t.every == 0 {
		return t.sleep(ctx, t.period)
	}
	return nil
}
