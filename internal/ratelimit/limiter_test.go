package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/ledger-bridge/internal/ratelimit"
)

// fakeClock advances only when slept on, so tests are deterministic.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return nil
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestWaitAdmitsUpToMaxCallsWithoutSleeping(t *testing.T) {
	clock := newFakeClock()
	slept := 0
	limiter := ratelimit.NewLimiter(3, 5*time.Second,
		ratelimit.WithClock(clock.Now),
		ratelimit.WithSleeper(func(ctx context.Context, d time.Duration) error {
			slept++
			return clock.Sleep(ctx, d)
		}),
	)

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Wait(context.Background()))
	}
	assert.Equal(t, 0, slept)
}

func TestWaitBlocksWhenWindowFull(t *testing.T) {
	clock := newFakeClock()
	var sleeps []time.Duration
	limiter := ratelimit.NewLimiter(2, 5*time.Second,
		ratelimit.WithClock(clock.Now),
		ratelimit.WithSleeper(func(ctx context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return clock.Sleep(ctx, d)
		}),
	)

	require.NoError(t, limiter.Wait(context.Background()))
	require.NoError(t, limiter.Wait(context.Background()))

	// Third call must wait for the oldest timestamp to expire.
	require.NoError(t, limiter.Wait(context.Background()))
	require.Len(t, sleeps, 1)
	assert.Equal(t, 5*time.Second, sleeps[0])
}

func TestWaitSleepsOnlyUntilOldestCallExpires(t *testing.T) {
	clock := newFakeClock()
	var sleeps []time.Duration
	limiter := ratelimit.NewLimiter(2, 5*time.Second,
		ratelimit.WithClock(clock.Now),
		ratelimit.WithSleeper(func(ctx context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return clock.Sleep(ctx, d)
		}),
	)

	require.NoError(t, limiter.Wait(context.Background()))
	require.NoError(t, clock.Sleep(context.Background(), 2*time.Second))
	require.NoError(t, limiter.Wait(context.Background()))

	require.NoError(t, limiter.Wait(context.Background()))
	require.Len(t, sleeps, 1)
	assert.Equal(t, 3*time.Second, sleeps[0])
}

func TestWaitHonoursContextCancellation(t *testing.T) {
	clock := newFakeClock()
	limiter := ratelimit.NewLimiter(1, 5*time.Second,
		ratelimit.WithClock(clock.Now),
		ratelimit.WithSleeper(func(ctx context.Context, d time.Duration) error {
			return ctx.Err()
		}),
	)

	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := limiter.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentCallersNeverExceedWindow(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()

	var sleepMu sync.Mutex
	var totalSlept time.Duration
	limiter := ratelimit.NewLimiter(5, 200*time.Millisecond,
		ratelimit.WithClock(clock.Now),
		ratelimit.WithSleeper(func(ctx context.Context, d time.Duration) error {
			sleepMu.Lock()
			totalSlept += d
			sleepMu.Unlock()
			return clock.Sleep(ctx, d)
		}),
	)

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, limiter.Wait(context.Background()))
		}()
	}
	wg.Wait()

	// 12 calls at 5 per window need exactly two full-window waits.
	assert.Equal(t, 400*time.Millisecond, totalSlept)
	assert.Equal(t, 400*time.Millisecond, clock.Now().Sub(start))
}
