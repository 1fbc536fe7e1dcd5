package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/rezonia/ledger-bridge/internal/model"
)

const (
	DefaultMaxAttempts    = 4
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 10 * time.Second
)

// Classifier maps an operation error to the closed failure taxonomy.
type Classifier func(err error) model.ErrorKind

// Policy parameterizes the retry combinator. Every outbound call in the
// request pipeline wraps through exactly one instance of it.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Classify       Classifier

	// Sleep is injectable for deterministic tests; defaults to a
	// context-aware timer wait.
	Sleep func(ctx context.Context, d time.Duration) error
	// Jitter returns a random factor in [0,1); defaults to math/rand.
	Jitter func() float64
}

// DefaultPolicy returns the policy used by the request pipeline
func DefaultPolicy(classify Classifier) Policy {
	return Policy{
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		Classify:       classify,
	}
}

// Do runs op up to MaxAttempts times, backing off exponentially with jitter
// between attempts. Only failures classified as retryable are retried;
// everything else propagates immediately.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}
	jitter := p.Jitter
	if jitter == nil {
		jitter = rand.Float64
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		kind := model.KindUnknown
		if p.Classify != nil {
			kind = p.Classify(lastErr)
		}
		if !kind.Retryable() || attempt == maxAttempts {
			return lastErr
		}
		delay := nextDelay(p, attempt)
		// Full jitter: sleep a uniform fraction of the computed delay so
		// concurrent callers do not retry in lockstep.
		delay = time.Duration(float64(delay) * (0.5 + jitter()/2))
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

func nextDelay(p Policy, attempt int) time.Duration {
	initial := p.InitialBackoff
	if initial <= 0 {
		initial = DefaultInitialBackoff
	}
	max := p.MaxBackoff
	if max <= 0 {
		max = DefaultMaxBackoff
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	return delay
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
