package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/staynest/staynest-backend/pkg/enums"
)

// User is the single identity record shared by travelers, hosts, and admins.
// Role-specific data lives on role-tagged rows (ledger accounts, listings),
// not on subclasses.
type User struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Role      enums.UserRole `gorm:"column:role;type:text;not null"`
	FullName  string         `gorm:"column:full_name;not null"`
	Email     string         `gorm:"column:email;not null;uniqueIndex"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
