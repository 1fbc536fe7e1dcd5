package credentials_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/ledger-bridge/internal/credentials"
	"github.com/rezonia/ledger-bridge/internal/model"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// stepClock returns a strictly increasing time on every call, so each store
// write lands with a distinct version.
func stepClock() func() time.Time {
	var mu sync.Mutex
	var step time.Duration
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		step += time.Millisecond
		return baseTime.Add(step)
	}
}

type fakeExchanger struct {
	exchange func(ctx context.Context, code, redirectURI string) (credentials.TokenSet, error)
	refresh  func(ctx context.Context, refreshToken string) (credentials.TokenSet, error)
}

func (f *fakeExchanger) Exchange(ctx context.Context, code, redirectURI string) (credentials.TokenSet, error) {
	return f.exchange(ctx, code, redirectURI)
}

func (f *fakeExchanger) Refresh(ctx context.Context, refreshToken string) (credentials.TokenSet, error) {
	return f.refresh(ctx, refreshToken)
}

func seedRecord(t *testing.T, store *credentials.MemoryStore, scope string, expiresAt time.Time) *credentials.Record {
	t.Helper()
	rec := &credentials.Record{
		SubjectID:    "acme",
		ScopeID:      scope,
		AccessToken:  "access-0",
		RefreshToken: "refresh-0",
		ExpiresAt:    expiresAt,
	}
	require.NoError(t, store.Create(context.Background(), rec))
	return rec
}

func TestAccessTokenReturnsStoredTokenWhenFresh(t *testing.T) {
	store := credentials.NewMemoryStore()
	store.SetClock(stepClock())
	seedRecord(t, store, "books", baseTime.Add(time.Hour))

	exchanger := &fakeExchanger{
		refresh: func(context.Context, string) (credentials.TokenSet, error) {
			t.Fatal("refresh must not be called for a fresh token")
			return credentials.TokenSet{}, nil
		},
	}
	mgr := credentials.NewManager(store, exchanger, nil,
		credentials.WithClock(func() time.Time { return baseTime }))

	token, err := mgr.AccessToken(context.Background(), "acme", "books")
	require.NoError(t, err)
	assert.Equal(t, "access-0", token)
}

func TestAccessTokenRefreshesInsideMargin(t *testing.T) {
	store := credentials.NewMemoryStore()
	store.SetClock(stepClock())
	// Expires in 3 minutes, inside the 5 minute margin.
	seedRecord(t, store, "books", baseTime.Add(3*time.Minute))

	refreshed := 0
	exchanger := &fakeExchanger{
		refresh: func(_ context.Context, refreshToken string) (credentials.TokenSet, error) {
			refreshed++
			assert.Equal(t, "refresh-0", refreshToken)
			return credentials.TokenSet{
				AccessToken:  "access-1",
				RefreshToken: "refresh-1",
				ExpiresAt:    baseTime.Add(time.Hour),
			}, nil
		},
	}
	mgr := credentials.NewManager(store, exchanger, nil,
		credentials.WithClock(func() time.Time { return baseTime }))

	token, err := mgr.AccessToken(context.Background(), "acme", "books")
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)
	assert.Equal(t, 1, refreshed)

	rec, err := store.Get(context.Background(), "acme", "books")
	require.NoError(t, err)
	assert.Equal(t, "access-1", rec.AccessToken)
	assert.Equal(t, "refresh-1", rec.RefreshToken)
	assert.Equal(t, 1, rec.RefreshCount)
	require.NotNil(t, rec.LastRefreshAt)
}

func TestAccessTokenUnknownSubject(t *testing.T) {
	store := credentials.NewMemoryStore()
	mgr := credentials.NewManager(store, &fakeExchanger{}, nil)

	_, err := mgr.AccessToken(context.Background(), "nobody", "books")
	assert.ErrorIs(t, err, model.ErrCredentialsNotFound)
}

func TestAccessTokenAdoptsLegacyRecord(t *testing.T) {
	store := credentials.NewMemoryStore()
	store.SetClock(stepClock())
	// Legacy record has no scope stamped on it.
	seedRecord(t, store, "", baseTime.Add(time.Hour))

	mgr := credentials.NewManager(store, &fakeExchanger{}, nil,
		credentials.WithClock(func() time.Time { return baseTime }))

	token, err := mgr.AccessToken(context.Background(), "acme", "books")
	require.NoError(t, err)
	assert.Equal(t, "access-0", token)

	rec, err := store.Get(context.Background(), "acme", "books")
	require.NoError(t, err)
	assert.Equal(t, "books", rec.ScopeID)
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	store := credentials.NewMemoryStore()
	store.SetClock(stepClock())
	seedRecord(t, store, "books", baseTime.Add(time.Minute))

	// Both callers read the record before either exchanges, so exactly one
	// conditional update can land.
	const callers = 2
	barrier := make(chan struct{})
	var arrivals sync.WaitGroup
	arrivals.Add(callers)

	var mu sync.Mutex
	exchanges := 0
	exchanger := &fakeExchanger{
		refresh: func(context.Context, string) (credentials.TokenSet, error) {
			arrivals.Done()
			<-barrier
			mu.Lock()
			exchanges++
			n := exchanges
			mu.Unlock()
			return credentials.TokenSet{
				AccessToken:  fmt.Sprintf("access-new-%d", n),
				RefreshToken: fmt.Sprintf("refresh-new-%d", n),
				ExpiresAt:    baseTime.Add(time.Hour),
			}, nil
		},
	}
	mgr := credentials.NewManager(store, exchanger, nil,
		credentials.WithClock(func() time.Time { return baseTime }))

	go func() {
		arrivals.Wait()
		close(barrier)
	}()

	results := make(chan string, callers)
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			token, err := mgr.AccessToken(context.Background(), "acme", "books")
			results <- token
			errs <- err
		}()
	}

	tokens := map[string]bool{}
	for i := 0; i < callers; i++ {
		require.NoError(t, <-errs)
		tokens[<-results] = true
	}

	// The loser discards its exchange result and reuses the stored token, so
	// the store holds one of the exchanged tokens and its refresh count moved
	// exactly once.
	rec, err := store.Get(context.Background(), "acme", "books")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.RefreshCount)
	assert.True(t, tokens[rec.AccessToken], "stored token %q not among returned tokens %v", rec.AccessToken, tokens)
	assert.Equal(t, 2, exchanges)
}

func TestInvalidGrantRaceReusesWinnerToken(t *testing.T) {
	store := credentials.NewMemoryStore()
	store.SetClock(stepClock())
	rec := seedRecord(t, store, "books", baseTime.Add(time.Minute))

	exchanger := &fakeExchanger{
		refresh: func(context.Context, string) (credentials.TokenSet, error) {
			// Simulate a concurrent winner rotating the credential before the
			// remote rejects our now-stale refresh token.
			current, err := store.Get(context.Background(), "acme", "books")
			if err != nil {
				return credentials.TokenSet{}, err
			}
			_, err = store.CASUpdate(context.Background(), rec.ID, current.UpdatedAt, credentials.Update{
				AccessToken:  "access-winner",
				RefreshToken: "refresh-winner",
				ExpiresAt:    baseTime.Add(time.Hour),
				RefreshCount: current.RefreshCount + 1,
			})
			if err != nil {
				return credentials.TokenSet{}, err
			}
			return credentials.TokenSet{}, credentials.ErrInvalidGrant
		},
	}
	mgr := credentials.NewManager(store, exchanger, nil,
		credentials.WithClock(func() time.Time { return baseTime }))

	token, err := mgr.AccessToken(context.Background(), "acme", "books")
	require.NoError(t, err)
	assert.Equal(t, "access-winner", token)
}

func TestInvalidGrantWithoutWinnerRequiresReauth(t *testing.T) {
	store := credentials.NewMemoryStore()
	store.SetClock(stepClock())
	seedRecord(t, store, "books", baseTime.Add(time.Minute))

	exchanger := &fakeExchanger{
		refresh: func(context.Context, string) (credentials.TokenSet, error) {
			return credentials.TokenSet{}, credentials.ErrInvalidGrant
		},
	}
	mgr := credentials.NewManager(store, exchanger, nil,
		credentials.WithClock(func() time.Time { return baseTime }))

	_, err := mgr.AccessToken(context.Background(), "acme", "books")
	assert.ErrorIs(t, err, model.ErrReauthRequired)
}

func TestRefreshTimeoutPropagates(t *testing.T) {
	store := credentials.NewMemoryStore()
	store.SetClock(stepClock())
	seedRecord(t, store, "books", baseTime.Add(time.Minute))

	exchanger := &fakeExchanger{
		refresh: func(context.Context, string) (credentials.TokenSet, error) {
			return credentials.TokenSet{}, fmt.Errorf("%w: token endpoint", model.ErrRefreshTimeout)
		},
	}
	mgr := credentials.NewManager(store, exchanger, nil,
		credentials.WithClock(func() time.Time { return baseTime }))

	_, err := mgr.AccessToken(context.Background(), "acme", "books")
	assert.ErrorIs(t, err, model.ErrRefreshTimeout)
}

func TestConnectCreatesRecord(t *testing.T) {
	store := credentials.NewMemoryStore()
	store.SetClock(stepClock())

	exchanger := &fakeExchanger{
		exchange: func(_ context.Context, code, redirectURI string) (credentials.TokenSet, error) {
			assert.Equal(t, "auth-code", code)
			assert.Equal(t, "https://example.com/cb", redirectURI)
			return credentials.TokenSet{
				AccessToken:  "access-0",
				RefreshToken: "refresh-0",
				ExpiresAt:    baseTime.Add(time.Hour),
			}, nil
		},
	}
	mgr := credentials.NewManager(store, exchanger, nil)

	require.NoError(t, mgr.Connect(context.Background(), "acme", "books", "auth-code", "https://example.com/cb"))

	rec, err := store.Get(context.Background(), "acme", "books")
	require.NoError(t, err)
	assert.Equal(t, "access-0", rec.AccessToken)
	assert.Equal(t, "refresh-0", rec.RefreshToken)
}

func TestDisconnectRemovesRecord(t *testing.T) {
	store := credentials.NewMemoryStore()
	seedRecord(t, store, "books", baseTime.Add(time.Hour))

	mgr := credentials.NewManager(store, &fakeExchanger{}, nil)
	require.NoError(t, mgr.Disconnect(context.Background(), "acme", "books"))

	_, err := store.Get(context.Background(), "acme", "books")
	assert.ErrorIs(t, err, model.ErrCredentialsNotFound)
}
