package credentials

import (
	"context"
	"time"
)

// Record holds the OAuth tokens for one (subject, scope) pair. UpdatedAt
// doubles as the optimistic-lock version: a refresh only persists if the row
// still carries the version it captured before the token exchange.
type Record struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	SubjectID     string     `gorm:"size:64;index:idx_subject_scope,unique" json:"subject_id"`
	ScopeID       string     `gorm:"size:64;index:idx_subject_scope,unique" json:"scope_id"`
	AccessToken   string     `gorm:"type:text" json:"-"`
	RefreshToken  string     `gorm:"type:text" json:"-"`
	ExpiresAt     time.Time  `json:"expires_at"`
	RefreshCount  int        `json:"refresh_count"`
	LastRefreshAt *time.Time `json:"last_refresh_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Record) TableName() string {
	return "ledger_credentials"
}

// Update carries the fields a successful refresh writes back.
type Update struct {
	AccessToken   string
	RefreshToken  string
	ExpiresAt     time.Time
	RefreshCount  int
	LastRefreshAt time.Time
}

// Store is the credential persistence collaborator. Any backend that can
// implement the compare-and-swap update (SQL row version, key-value ETag)
// satisfies it.
type Store interface {
	// Get returns the record for (subject, scope), or
	// model.ErrCredentialsNotFound.
	Get(ctx context.Context, subject, scope string) (*Record, error)
	// GetLegacy returns a record lacking a scope, left behind by the
	// pre-multi-company schema.
	GetLegacy(ctx context.Context, subject string) (*Record, error)
	// AdoptScope stamps a scope onto a legacy record.
	AdoptScope(ctx context.Context, id uint, scope string) error
	Create(ctx context.Context, rec *Record) error
	// CASUpdate applies fields only if the row still has expectedVersion as
	// its UpdatedAt. Returns false when a concurrent refresh won the race.
	CASUpdate(ctx context.Context, id uint, expectedVersion time.Time, fields Update) (bool, error)
	// Delete removes the record on disconnect.
	Delete(ctx context.Context, subject, scope string) error
}
