package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/staynest/staynest-backend/pkg/enums"
)

// Payment is one attempt to pay for a reservation. A reservation can
// accumulate several payments over time (retries after failures), but at most
// one may be pending at once.
type Payment struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReservationID  uuid.UUID           `gorm:"column:reservation_id;type:uuid;not null;index"`
	Amount         decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Type           enums.PaymentType   `gorm:"column:type;type:text;not null"`
	Mode           enums.PaymentMode   `gorm:"column:mode;type:text;not null;default:'card'"`
	Status         enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Description    string              `gorm:"column:description"`
	ExpiresAt      time.Time           `gorm:"column:expires_at;not null"`
	PaidAt         *time.Time          `gorm:"column:paid_at"`
	FailedAt       *time.Time          `gorm:"column:failed_at"`
	RefundedAt     *time.Time          `gorm:"column:refunded_at"`
	TransactionRef *string             `gorm:"column:transaction_ref"`
	ExternalRef    *string             `gorm:"column:external_ref"`
	RefundRef      *string             `gorm:"column:refund_ref"`
	RefundReason   *string             `gorm:"column:refund_reason"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// IsExpired reports whether the payment window has closed at the given
// instant. ExpiresAt is set once at creation and never moves.
func (p *Payment) IsExpired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
