package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CartItem is a standard catalog line in a cart owner's cart.
type CartItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:text;primaryKey"`
	OwnerID   string          `gorm:"column:owner_id;not null;uniqueIndex:idx_cart_items_owner_product_size"`
	ProductID string          `gorm:"column:product_id;not null;uniqueIndex:idx_cart_items_owner_product_size"`
	Size      string          `gorm:"column:size;not null;default:'';uniqueIndex:idx_cart_items_owner_product_size"`
	Name      string          `gorm:"column:name;not null"`
	ImageURL  *string         `gorm:"column:image_url"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartItem) TableName() string { return "cart_items" }

func (i *CartItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
