package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/nordstil-checkout/pkg/enums"
)

// Reconciliation records a payment that succeeded while the order could not be recorded.
type Reconciliation struct {
	ID              uuid.UUID           `gorm:"column:id;type:text;primaryKey"`
	SessionID       uuid.UUID           `gorm:"column:session_id;type:text;not null;index"`
	PaymentIntentID string              `gorm:"column:payment_intent_id;not null;uniqueIndex"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;not null"`
	AmountCents     int64               `gorm:"column:amount_cents;not null"`
	Currency        string              `gorm:"column:currency;not null"`
	CustomerEmail   string              `gorm:"column:customer_email;not null"`
	Draft           map[string]any      `gorm:"column:draft;type:text;serializer:json"`
	FailureReason   string              `gorm:"column:failure_reason;not null"`
	ResolutionNote  *string             `gorm:"column:resolution_note"`
	ResolvedAt      *time.Time          `gorm:"column:resolved_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (Reconciliation) TableName() string { return "reconciliations" }

func (r *Reconciliation) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
