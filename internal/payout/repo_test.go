package payout

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/staynest/staynest-backend/pkg/db/models"
	"github.com/staynest/staynest-backend/pkg/enums"
)

func setupPayoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A unique database per test; a shared name would leak rows between
	// tests through the common page cache.
	dsn := "file:payout-" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	instructions := `
CREATE TABLE IF NOT EXISTS transaction_instructions (
  id TEXT PRIMARY KEY,
  reservation_id TEXT,
  payment_id TEXT,
  type TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  source_account_id TEXT NOT NULL,
  destination_account_id TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  reference TEXT,
  created_at DATETIME,
  executed_at DATETIME
);`
	require.NoError(t, db.Exec(instructions).Error)
	return db
}

func createInstruction(t *testing.T, db *gorm.DB, reservationID, source, destination uuid.UUID, kind enums.InstructionType, status enums.InstructionStatus, amount string) *models.TransactionInstruction {
	t.Helper()

	instruction := &models.TransactionInstruction{
		ID:                   uuid.New(),
		ReservationID:        &reservationID,
		Type:                 kind,
		Status:               status,
		SourceAccountID:      source,
		DestinationAccountID: destination,
		Amount:               decimal.RequireFromString(amount),
	}
	require.NoError(t, db.Create(instruction).Error)
	return instruction
}

func TestRepositoryExecutedTotals(t *testing.T) {
	db := setupPayoutTestDB(t)
	repo := NewRepository(db)

	reservation := uuid.New()
	account := uuid.New()
	other := uuid.New()

	createInstruction(t, db, reservation, other, account, enums.InstructionTypeHostPayout, enums.InstructionStatusExecuted, "240.00")
	createInstruction(t, db, reservation, account, other, enums.InstructionTypeRefundFromHost, enums.InstructionStatusExecuted, "40.00")
	createInstruction(t, db, reservation, other, account, enums.InstructionTypeHostPayout, enums.InstructionStatusPending, "999.00")

	incoming, outgoing, err := repo.ExecutedTotals(context.Background(), []uuid.UUID{account})
	require.NoError(t, err)
	assert.True(t, incoming.Equal(decimal.RequireFromString("240.00")), "incoming = %s", incoming)
	assert.True(t, outgoing.Equal(decimal.RequireFromString("40.00")), "outgoing = %s", outgoing)

	incoming, outgoing, err = repo.ExecutedTotals(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, incoming.IsZero())
	assert.True(t, outgoing.IsZero())
}

func TestRepositoryExistsQueries(t *testing.T) {
	db := setupPayoutTestDB(t)
	repo := NewRepository(db)

	reservation := uuid.New()
	payment := uuid.New()
	source := uuid.New()
	destination := uuid.New()

	instruction := createInstruction(t, db, reservation, source, destination, enums.InstructionTypeHostPayout, enums.InstructionStatusPending, "80.00")
	instruction.PaymentID = &payment
	require.NoError(t, db.Save(instruction).Error)

	split, err := repo.ExistsSplitForPayment(context.Background(), payment)
	require.NoError(t, err)
	assert.True(t, split)

	split, err = repo.ExistsSplitForPayment(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, split)

	refund, err := repo.ExistsRefundForReservation(context.Background(), reservation)
	require.NoError(t, err)
	assert.False(t, refund)

	createInstruction(t, db, reservation, source, destination, enums.InstructionTypeRefundFromHost, enums.InstructionStatusPending, "40.00")
	refund, err = repo.ExistsRefundForReservation(context.Background(), reservation)
	require.NoError(t, err)
	assert.True(t, refund)
}
