package credentials

import (
	"context"
	"sync"
	"time"

	"github.com/rezonia/ledger-bridge/internal/model"
)

// MemoryStore is an in-memory credential store used in tests. The CAS
// semantics match the SQL store: an update only lands when the caller still
// holds the current version.
type MemoryStore struct {
	mu     sync.Mutex
	nextID uint
	items  map[uint]*Record

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		items:  map[uint]*Record{},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock injects a deterministic clock
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *MemoryStore) Get(_ context.Context, subject, scope string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.items {
		if rec.SubjectID == subject && rec.ScopeID == scope {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, model.ErrCredentialsNotFound
}

func (s *MemoryStore) GetLegacy(_ context.Context, subject string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.items {
		if rec.SubjectID == subject && rec.ScopeID == "" {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, model.ErrCredentialsNotFound
}

func (s *MemoryStore) AdoptScope(_ context.Context, id uint, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[id]
	if !ok {
		return model.ErrCredentialsNotFound
	}
	rec.ScopeID = scope
	rec.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) Create(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = s.nextID
	s.nextID++
	now := s.now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	cp := *rec
	s.items[rec.ID] = &cp
	return nil
}

func (s *MemoryStore) CASUpdate(_ context.Context, id uint, expectedVersion time.Time, fields Update) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[id]
	if !ok {
		return false, model.ErrCredentialsNotFound
	}
	if !rec.UpdatedAt.Equal(expectedVersion) {
		return false, nil
	}
	rec.AccessToken = fields.AccessToken
	rec.RefreshToken = fields.RefreshToken
	rec.ExpiresAt = fields.ExpiresAt
	rec.RefreshCount = fields.RefreshCount
	last := fields.LastRefreshAt
	rec.LastRefreshAt = &last
	rec.UpdatedAt = s.now()
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, subject, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.items {
		if rec.SubjectID == subject && rec.ScopeID == scope {
			delete(s.items, id)
			return nil
		}
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
