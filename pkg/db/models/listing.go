package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Listing is the bookable property surface this service depends on. Catalog
// management lives in another service; reservations only need the host link
// and the nightly price.
type Listing struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	HostID       uuid.UUID       `gorm:"column:host_id;type:uuid;not null;index"`
	Name         string          `gorm:"column:name;not null"`
	NightlyPrice decimal.Decimal `gorm:"column:nightly_price;type:numeric(12,2);not null"`
	MaxGuests    int             `gorm:"column:max_guests;not null;default:2"`
	Active       bool            `gorm:"column:active;not null;default:true"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
