package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Limiter allows at most Calls acquisitions to start within any window of length Period.
// Each Acquire takes a permit; the permit returns to the pool Period after the matching
// Release, so a burst can never exceed the budget even across window boundaries.
// A zero Calls budget disables limiting.
type Limiter struct {
	calls  int
	period time.Duration
	sem    *semaphore.Weighted

	mu      sync.Mutex
	pending int
	timers  []*time.Timer
}

// New creates a limiter for calls per period
func New(calls int, period time.Duration) *Limiter {
	l := &Limiter{
		calls:  calls,
		period: period,
	}
	if calls > 0 {
		l.sem = semaphore.NewWeighted(int64(calls))
	}
	return l
}

// Enabled reports whether the limiter throttles at all
func (l *Limiter) Enabled() bool {
	return l != nil && l.sem != nil
}

// Calls returns the per-period budget
func (l *Limiter) Calls() int {
	return l.calls
}

// Period returns the throttling window
func (l *Limiter) Period() time.Duration {
	return l.period
}

// Acquire blocks until a call may start or ctx is done
func (l *Limiter) Acquire(ctx context.Context) error {
	if !l.Enabled() {
		return nil
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.mu.Lock()
	l.pending++
	l.mu.Unlock()
	return nil
}

// Release marks the end of a call started with Acquire.
// The permit becomes available again once Period has elapsed.
func (l *Limiter) Release() {
	if !l.Enabled() {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending == 0 {
		return
	}
	l.pending--

	if l.period <= 0 {
		l.sem.Release(1)
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(l.period, func() {
		l.sem.Release(1)
		l.mu.Lock()
		l.forget(timer)
		l.mu.Unlock()
	})
	l.timers = append(l.timers, timer)
}

// Do runs fn between Acquire and Release
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}

// Stop cancels outstanding permit timers and returns their permits immediately
func (l *Limiter) Stop() {
	if !l.Enabled() {
		return
	}

	l.mu.Lock()
	timers := l.timers
	l.timers = nil
	l.mu.Unlock()

	for _, timer := range timers {
		if timer.Stop() {
			l.sem.Release(1)
		}
	}
}

// forget drops a fired timer. Callers hold l.mu.
func (l *Limiter) forget(timer *time.Timer) {
	for i, t := range l.timers {
		if t == timer {
			l.timers = append(l.timers[:i], l.timers[i+1:]...)
			return
		}
	}
}
