package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/nordstil-checkout/pkg/enums"
)

// CustomItem is a configurator-built line (e.g. a custom jacket), priced on its own.
type CustomItem struct {
	ID            uuid.UUID            `gorm:"column:id;type:text;primaryKey"`
	OwnerID       string               `gorm:"column:owner_id;not null;index"`
	Kind          enums.CustomItemKind `gorm:"column:kind;not null"`
	Name          string               `gorm:"column:name;not null"`
	Configuration map[string]any       `gorm:"column:configuration;type:text;serializer:json"`
	UnitPrice     decimal.Decimal      `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity      int                  `gorm:"column:quantity;not null"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (CustomItem) TableName() string { return "custom_items" }

func (i *CustomItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
