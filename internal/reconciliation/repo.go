package reconciliation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/nordstil-checkout/internal/repo"
	"github.com/angelmondragon/nordstil-checkout/pkg/db/models"
	"github.com/angelmondragon/nordstil-checkout/pkg/pagination"
)

// Repository manages persistence for reconciliation records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.Reconciliation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reconciliation, error)
	ListUnresolved(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.Reconciliation, error)
	MarkResolved(ctx context.Context, id uuid.UUID, note string, at time.Time) (bool, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a reconciliation repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, record *models.Reconciliation) error {
	return r.DB(ctx).Create(record).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Reconciliation, error) {
	var record models.Reconciliation
	if err := r.DB(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// ListUnresolved returns open records newest first. limit should include the
// look-ahead row used to detect a next page.
func (r *repository) ListUnresolved(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.Reconciliation, error) {
	query := r.DB(ctx).
		Model(&models.Reconciliation{}).
		Where("resolved_at IS NULL")
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var records []models.Reconciliation
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// MarkResolved closes an open record. It reports false when no open record matched.
func (r *repository) MarkResolved(ctx context.Context, id uuid.UUID, note string, at time.Time) (bool, error) {
	res := r.DB(ctx).
		Model(&models.Reconciliation{}).
		Where("id = ? AND resolved_at IS NULL", id).
		Updates(map[string]any{"resolved_at": at, "resolution_note": note})
	return res.RowsAffected > 0, res.Error
}
