package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	// The remote allows 25 calls per 5 seconds per access token; keep local
	// headroom so bursts from this process never trip the remote limit.
	DefaultMaxCalls = 20
	DefaultWindow   = 5 * time.Second
)

// Limiter bounds the outbound call rate with a rolling window of recent call
// timestamps. One instance is shared per process and passed to the request
// pipeline by construction. Waiters are served in FIFO order via the mutex.
type Limiter struct {
	mu       sync.Mutex
	maxCalls int
	window   time.Duration
	calls    []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures the limiter
type Option func(*Limiter)

// WithClock injects a deterministic clock for testing
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithSleeper injects the wait function used when the window is full
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) {
		l.sleep = sleep
	}
}

// NewLimiter creates a limiter allowing maxCalls per window
func NewLimiter(maxCalls int, window time.Duration, opts ...Option) *Limiter {
	if maxCalls <= 0 {
		maxCalls = DefaultMaxCalls
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{
		maxCalls: maxCalls,
		window:   window,
		now:      func() time.Time { return time.Now().UTC() },
		sleep:    sleepWithContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Wait suspends the caller until issuing one more call stays under the
// configured ceiling. It records the call timestamp before returning.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := l.now()
		l.prune(now)
		if len(l.calls) < l.maxCalls {
			l.calls = append(l.calls, now)
			return nil
		}
		// Sleep the minimum time for the oldest call to fall out of the
		// window. The mutex is held across the sleep so waiters stay FIFO.
		wait := l.calls[0].Add(l.window).Sub(now)
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	idx := 0
	for idx < len(l.calls) && !l.calls[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		l.calls = append(l.calls[:0], l.calls[idx:]...)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
