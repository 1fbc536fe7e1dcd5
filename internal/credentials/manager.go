package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rezonia/ledger-bridge/internal/model"
)

const (
	// Tokens expiring within this margin are refreshed before use.
	RefreshMargin = 5 * time.Minute
	// After losing an invalid_grant race, the stored token is only reused if
	// its expiry is comfortably in the future.
	raceReuseMargin = 60 * time.Second
)

// Manager owns the OAuth token lifecycle for the ledger API. It never caches
// tokens in memory: the credential store is the source of truth and the
// synchronization point, so concurrent invocations coordinate purely through
// the store's compare-and-swap update.
type Manager struct {
	store Store
	oauth TokenExchanger
	log   *logrus.Entry
	now   func() time.Time
}

// ManagerOption configures the manager
type ManagerOption func(*Manager)

// WithClock injects a deterministic clock for testing
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a credential manager
func NewManager(store Store, oauth TokenExchanger, log *logrus.Entry, opts ...ManagerOption) *Manager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	m := &Manager{
		store: store,
		oauth: oauth,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AccessToken returns a valid access token for (subject, scope), refreshing
// transparently when the stored token expires within the safety margin.
func (m *Manager) AccessToken(ctx context.Context, subject, scope string) (string, error) {
	rec, err := m.lookup(ctx, subject, scope)
	if err != nil {
		return "", err
	}

	if m.now().Before(rec.ExpiresAt.Add(-RefreshMargin)) {
		return rec.AccessToken, nil
	}
	return m.refresh(ctx, subject, scope, rec)
}

// Connect exchanges an authorization code and creates the credential record.
func (m *Manager) Connect(ctx context.Context, subject, scope, code, redirectURI string) error {
	tokens, err := m.oauth.Exchange(ctx, code, redirectURI)
	if err != nil {
		return err
	}
	return m.store.Create(ctx, &Record{
		SubjectID:    subject,
		ScopeID:      scope,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
	})
}

// Disconnect removes the stored credential.
func (m *Manager) Disconnect(ctx context.Context, subject, scope string) error {
	return m.store.Delete(ctx, subject, scope)
}

// lookup reads the (subject, scope) record, falling back to a legacy record
// lacking a scope and adopting it by stamping the scope onto it.
func (m *Manager) lookup(ctx context.Context, subject, scope string) (*Record, error) {
	rec, err := m.store.Get(ctx, subject, scope)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, model.ErrCredentialsNotFound) {
		return nil, err
	}

	legacy, legacyErr := m.store.GetLegacy(ctx, subject)
	if legacyErr != nil {
		return nil, model.ErrCredentialsNotFound
	}
	if adoptErr := m.store.AdoptScope(ctx, legacy.ID, scope); adoptErr != nil {
		return nil, adoptErr
	}
	m.log.WithFields(logrus.Fields{
		"subject": subject,
		"scope":   scope,
	}).Info("adopted legacy credential record")
	return m.store.Get(ctx, subject, scope)
}

// refresh exchanges the refresh token and persists the result with a
// conditional update. Refresh is never retried automatically because the
// exchange rotates the refresh token.
func (m *Manager) refresh(ctx context.Context, subject, scope string, rec *Record) (string, error) {
	lockVersion := rec.UpdatedAt
	refreshCount := rec.RefreshCount

	tokens, err := m.oauth.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidGrant) {
			return m.resolveInvalidGrant(ctx, subject, scope, err)
		}
		if errors.Is(err, model.ErrRefreshTimeout) {
			return "", err
		}
		return "", fmt.Errorf("credential refresh failed: %w", err)
	}

	won, err := m.store.CASUpdate(ctx, rec.ID, lockVersion, Update{
		AccessToken:   tokens.AccessToken,
		RefreshToken:  tokens.RefreshToken,
		ExpiresAt:     tokens.ExpiresAt,
		RefreshCount:  refreshCount + 1,
		LastRefreshAt: m.now(),
	})
	if err != nil {
		return "", err
	}
	if !won {
		// A concurrent refresh won the race. Our exchange result stays valid
		// server-side but is discarded; the winner already rotated and
		// stored a token, so re-read and use that one.
		m.log.WithFields(logrus.Fields{
			"subject": subject,
			"scope":   scope,
		}).Info("lost credential refresh race, reusing stored token")
		latest, readErr := m.store.Get(ctx, subject, scope)
		if readErr != nil {
			return "", readErr
		}
		return latest.AccessToken, nil
	}
	return tokens.AccessToken, nil
}

// resolveInvalidGrant handles the refresh race: another caller may have
// already rotated the refresh token, making ours invalid. If the re-read
// record is comfortably fresh the winner's token is used; otherwise the
// credential is genuinely dead.
func (m *Manager) resolveInvalidGrant(ctx context.Context, subject, scope string, cause error) (string, error) {
	latest, err := m.store.Get(ctx, subject, scope)
	if err != nil {
		return "", model.ErrReauthRequired
	}
	if latest.ExpiresAt.After(m.now().Add(raceReuseMargin)) {
		return latest.AccessToken, nil
	}
	m.log.WithFields(logrus.Fields{
		"subject": subject,
		"scope":   scope,
	}).Warn("refresh token rejected, reauthorization required")
	return "", fmt.Errorf("%w: %v", model.ErrReauthRequired, cause)
}
