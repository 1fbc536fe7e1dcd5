package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sync record statuses.
const (
	StatusStarted    = "STARTED"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// SyncRecord tracks one export operation against the ledger API.
type SyncRecord struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Kind      string    `gorm:"size:64" json:"kind"`
	Reference string    `gorm:"size:128" json:"reference"`
	Status    string    `gorm:"size:32" json:"status"`
	Detail    string    `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SyncRecord) TableName() string {
	return "ledger_sync_records"
}

// Logger is the audit/sync collaborator: voucher and supplier-invoice export
// operations record their lifecycle through it. This core generates the sync
// ids but does not own the records beyond these transitions.
type Logger interface {
	Start(ctx context.Context, kind, reference string) (string, error)
	Update(ctx context.Context, id, detail string) error
	Complete(ctx context.Context, id, detail string) error
	Fail(ctx context.Context, id, detail string) error
}

// GormLogger persists sync records through gorm.
type GormLogger struct {
	db *gorm.DB
}

// NewGormLogger creates a gorm-backed audit logger
func NewGormLogger(db *gorm.DB) *GormLogger {
	return &GormLogger{db: db}
}

// Migrate creates the sync record table if needed
func (l *GormLogger) Migrate() error {
	return l.db.AutoMigrate(&SyncRecord{})
}

func (l *GormLogger) Start(ctx context.Context, kind, reference string) (string, error) {
	record := SyncRecord{
		ID:        uuid.NewString(),
		Kind:      kind,
		Reference: reference,
		Status:    StatusStarted,
	}
	if err := l.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", err
	}
	return record.ID, nil
}

func (l *GormLogger) Update(ctx context.Context, id, detail string) error {
	return l.setStatus(ctx, id, StatusInProgress, detail)
}

func (l *GormLogger) Complete(ctx context.Context, id, detail string) error {
	return l.setStatus(ctx, id, StatusCompleted, detail)
}

func (l *GormLogger) Fail(ctx context.Context, id, detail string) error {
	return l.setStatus(ctx, id, StatusFailed, detail)
}

func (l *GormLogger) setStatus(ctx context.Context, id, status, detail string) error {
	return l.db.WithContext(ctx).Model(&SyncRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "detail": detail}).Error
}

var _ Logger = (*GormLogger)(nil)

// MemoryLogger records sync transitions in memory for tests.
type MemoryLogger struct {
	mu      sync.Mutex
	Records map[string]*SyncRecord
}

// NewMemoryLogger creates an empty in-memory audit logger
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{Records: map[string]*SyncRecord{}}
}

func (l *MemoryLogger) Start(_ context.Context, kind, reference string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := uuid.NewString()
	l.Records[id] = &SyncRecord{ID: id, Kind: kind, Reference: reference, Status: StatusStarted}
	return id, nil
}

func (l *MemoryLogger) Update(_ context.Context, id, detail string) error {
	return l.set(id, StatusInProgress, detail)
}

func (l *MemoryLogger) Complete(_ context.Context, id, detail string) error {
	return l.set(id, StatusCompleted, detail)
}

func (l *MemoryLogger) Fail(_ context.Context, id, detail string) error {
	return l.set(id, StatusFailed, detail)
}

func (l *MemoryLogger) set(id, status, detail string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if record, ok := l.Records[id]; ok {
		record.Status = status
		record.Detail = detail
	}
	return nil
}

var _ Logger = (*MemoryLogger)(nil)
