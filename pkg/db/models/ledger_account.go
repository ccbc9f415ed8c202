package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/staynest/staynest-backend/pkg/enums"
)

// LedgerAccount is a named payable/receivable endpoint referenced by
// transaction instructions. Balances are always derived from executed
// instructions, never stored here.
type LedgerAccount struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerType enums.AccountOwnerType `gorm:"column:owner_type;type:text;not null"`
	OwnerID   *uuid.UUID             `gorm:"column:owner_id;type:uuid;index"`
	Label     string                 `gorm:"column:label"`
	IsDefault bool                   `gorm:"column:is_default;not null;default:false"`
	Active    bool                   `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
