package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/ledger-bridge/internal/model"
	"github.com/rezonia/ledger-bridge/internal/retry"
)

func classifyAPIError(err error) model.ErrorKind {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return model.KindUnknown
}

func testPolicy(classify retry.Classifier, sleeps *[]time.Duration) retry.Policy {
	p := retry.DefaultPolicy(classify)
	p.Sleep = func(_ context.Context, d time.Duration) error {
		if sleeps != nil {
			*sleeps = append(*sleeps, d)
		}
		return nil
	}
	p.Jitter = func() float64 { return 1 } // full delay, no randomness
	return p
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), testPolicy(classifyAPIError, nil), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientFailures(t *testing.T) {
	serverErr := &model.APIError{Kind: model.KindServer, StatusCode: 503, Message: "unavailable"}

	calls := 0
	err := retry.Do(context.Background(), testPolicy(classifyAPIError, nil), func(context.Context) error {
		calls++
		if calls < 3 {
			return serverErr
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsAfterMaxAttempts(t *testing.T) {
	serverErr := &model.APIError{Kind: model.KindServer, StatusCode: 503, Message: "unavailable"}

	calls := 0
	err := retry.Do(context.Background(), testPolicy(classifyAPIError, nil), func(context.Context) error {
		calls++
		return serverErr
	})
	assert.Equal(t, serverErr, err)
	assert.Equal(t, retry.DefaultMaxAttempts, calls)
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	clientErr := &model.APIError{Kind: model.KindClient, StatusCode: 400, Message: "bad request"}

	calls := 0
	err := retry.Do(context.Background(), testPolicy(classifyAPIError, nil), func(context.Context) error {
		calls++
		return clientErr
	})
	assert.Equal(t, clientErr, err)
	assert.Equal(t, 1, calls)
}

func TestDoBacksOffExponentially(t *testing.T) {
	serverErr := &model.APIError{Kind: model.KindServer, StatusCode: 500, Message: "boom"}

	var sleeps []time.Duration
	p := testPolicy(classifyAPIError, &sleeps)
	p.MaxAttempts = 4

	_ = retry.Do(context.Background(), p, func(context.Context) error {
		return serverErr
	})

	require.Len(t, sleeps, 3)
	assert.Equal(t, 500*time.Millisecond, sleeps[0])
	assert.Equal(t, 1*time.Second, sleeps[1])
	assert.Equal(t, 2*time.Second, sleeps[2])
}

func TestDoCapsBackoffAtMax(t *testing.T) {
	serverErr := &model.APIError{Kind: model.KindServer, StatusCode: 500, Message: "boom"}

	var sleeps []time.Duration
	p := testPolicy(classifyAPIError, &sleeps)
	p.MaxAttempts = 8

	_ = retry.Do(context.Background(), p, func(context.Context) error {
		return serverErr
	})

	require.Len(t, sleeps, 7)
	assert.Equal(t, retry.DefaultMaxBackoff, sleeps[6])
}

func TestDoJitterScalesDelay(t *testing.T) {
	serverErr := &model.APIError{Kind: model.KindServer, StatusCode: 500, Message: "boom"}

	var sleeps []time.Duration
	p := testPolicy(classifyAPIError, &sleeps)
	p.MaxAttempts = 2
	p.Jitter = func() float64 { return 0 } // minimum: half the computed delay

	_ = retry.Do(context.Background(), p, func(context.Context) error {
		return serverErr
	})

	require.Len(t, sleeps, 1)
	assert.Equal(t, 250*time.Millisecond, sleeps[0])
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retry.Do(ctx, testPolicy(classifyAPIError, nil), func(context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestErrorKindRetryable(t *testing.T) {
	tests := []struct {
		kind      model.ErrorKind
		retryable bool
	}{
		{model.KindTimeout, true},
		{model.KindRateLimited, true},
		{model.KindServer, true},
		{model.KindClient, false},
		{model.KindUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.kind.Retryable())
		})
	}
}
