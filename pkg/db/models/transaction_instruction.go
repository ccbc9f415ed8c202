package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/staynest/staynest-backend/pkg/enums"
)

// TransactionInstruction is one immutable money-movement order between two
// ledger accounts. Batches of instructions are written atomically per event
// (payment split, cancellation refund); only status and executed_at change
// afterwards, when an external settlement reports back.
type TransactionInstruction struct {
	ID                   uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReservationID        *uuid.UUID              `gorm:"column:reservation_id;type:uuid;index"`
	PaymentID            *uuid.UUID              `gorm:"column:payment_id;type:uuid;index"`
	Type                 enums.InstructionType   `gorm:"column:type;type:text;not null"`
	Status               enums.InstructionStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	SourceAccountID      uuid.UUID               `gorm:"column:source_account_id;type:uuid;not null;index"`
	DestinationAccountID uuid.UUID               `gorm:"column:destination_account_id;type:uuid;not null;index"`
	Amount               decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null"`
	Reference            string                  `gorm:"column:reference"`
	CreatedAt            time.Time               `gorm:"column:created_at;autoCreateTime"`
	ExecutedAt           *time.Time              `gorm:"column:executed_at"`
}
