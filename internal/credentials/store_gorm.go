package credentials

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/rezonia/ledger-bridge/internal/model"
)

// GormStore persists credential records in MySQL through gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a gorm-backed credential store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates the token table if needed
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(&Record{})
}

func (s *GormStore) Get(ctx context.Context, subject, scope string) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).
		Where("subject_id = ? AND scope_id = ?", subject, scope).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrCredentialsNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *GormStore) GetLegacy(ctx context.Context, subject string) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).
		Where("subject_id = ? AND (scope_id = '' OR scope_id IS NULL)", subject).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrCredentialsNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *GormStore) AdoptScope(ctx context.Context, id uint, scope string) error {
	return s.db.WithContext(ctx).Model(&Record{}).
		Where("id = ?", id).
		Update("scope_id", scope).Error
}

func (s *GormStore) Create(ctx context.Context, rec *Record) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *GormStore) CASUpdate(ctx context.Context, id uint, expectedVersion time.Time, fields Update) (bool, error) {
	res := s.db.WithContext(ctx).Model(&Record{}).
		Where("id = ? AND updated_at = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"access_token":    fields.AccessToken,
			"refresh_token":   fields.RefreshToken,
			"expires_at":      fields.ExpiresAt,
			"refresh_count":   fields.RefreshCount,
			"last_refresh_at": fields.LastRefreshAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) Delete(ctx context.Context, subject, scope string) error {
	return s.db.WithContext(ctx).
		Where("subject_id = ? AND scope_id = ?", subject, scope).
		Delete(&Record{}).Error
}

var _ Store = (*GormStore)(nil)
