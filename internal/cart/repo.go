package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/nordstil-checkout/internal/repo"
	"github.com/angelmondragon/nordstil-checkout/pkg/db/models"
)

// Repository defines the persistence surface required by the cart service.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListItems(ctx context.Context, ownerID string) ([]models.CartItem, error)
	ListCustomItems(ctx context.Context, ownerID string) ([]models.CustomItem, error)
	UpsertItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error)
	SaveCustomItem(ctx context.Context, item *models.CustomItem) (*models.CustomItem, error)
	DeleteItem(ctx context.Context, ownerID string, id uuid.UUID) (bool, error)
	DeleteCustomItem(ctx context.Context, ownerID string, id uuid.UUID) (bool, error)
	DeleteAll(ctx context.Context, ownerID string) error
}

type repository struct {
	repo.Base
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) ListItems(ctx context.Context, ownerID string) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.DB(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) ListCustomItems(ctx context.Context, ownerID string) ([]models.CustomItem, error) {
	var items []models.CustomItem
	err := r.DB(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error
	return items, err
}

// UpsertItem inserts the line or, for an existing (owner, product, size), replaces
// its quantity, price and display fields.
func (r *repository) UpsertItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	err := r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}, {Name: "product_id"}, {Name: "size"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "image_url", "unit_price", "quantity", "updated_at"}),
		}).
		Create(item).Error
	if err != nil {
		return nil, err
	}

	var stored models.CartItem
	err = r.DB(ctx).
		Where("owner_id = ? AND product_id = ? AND size = ?", item.OwnerID, item.ProductID, item.Size).
		First(&stored).Error
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// SaveCustomItem updates the owner's item with the same id, creating it otherwise.
func (r *repository) SaveCustomItem(ctx context.Context, item *models.CustomItem) (*models.CustomItem, error) {
	if item.ID == uuid.Nil {
		if err := r.DB(ctx).Create(item).Error; err != nil {
			return nil, err
		}
		return item, nil
	}

	res := r.DB(ctx).
		Model(&models.CustomItem{}).
		Where("id = ? AND owner_id = ?", item.ID, item.OwnerID).
		Select("kind", "name", "configuration", "unit_price", "quantity", "updated_at").
		Updates(item)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if err := r.DB(ctx).Create(item).Error; err != nil {
			return nil, err
		}
		return item, nil
	}

	var stored models.CustomItem
	if err := r.DB(ctx).Where("id = ?", item.ID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *repository) DeleteItem(ctx context.Context, ownerID string, id uuid.UUID) (bool, error) {
	res := r.DB(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&models.CartItem{})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) DeleteCustomItem(ctx context.Context, ownerID string, id uuid.UUID) (bool, error) {
	res := r.DB(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&models.CustomItem{})
	return res.RowsAffected > 0, res.Error
}

// DeleteAll removes both collections of the owner. Callers run it inside a transaction.
func (r *repository) DeleteAll(ctx context.Context, ownerID string) error {
	if err := r.DB(ctx).Where("owner_id = ?", ownerID).Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	return r.DB(ctx).Where("owner_id = ?", ownerID).Delete(&models.CustomItem{}).Error
}
