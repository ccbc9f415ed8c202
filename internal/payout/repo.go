package payout

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/staynest/staynest-backend/pkg/db/models"
	"github.com/staynest/staynest-backend/pkg/enums"
)

// Repository persists transaction instructions and answers the derived
// balance queries. It also reads the reservation, listing, and payment rows
// the engine needs; those stay owned by their own packages for writes, except
// the refund path which flips payment status here inside its own transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateInstructions(ctx context.Context, instructions []*models.TransactionInstruction) error
	FindInstruction(ctx context.Context, id uuid.UUID) (*models.TransactionInstruction, error)
	SaveInstruction(ctx context.Context, instruction *models.TransactionInstruction) error
	ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.TransactionInstruction, error)
	ExistsSplitForPayment(ctx context.Context, paymentID uuid.UUID) (bool, error)
	ExistsRefundForReservation(ctx context.Context, reservationID uuid.UUID) (bool, error)
	ExecutedTotals(ctx context.Context, accountIDs []uuid.UUID) (incoming, outgoing decimal.Decimal, err error)
	FindReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	FindListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	FindPaidPayments(ctx context.Context, reservationID uuid.UUID) ([]models.Payment, error)
	SavePayment(ctx context.Context, payment *models.Payment) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payout repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateInstructions(ctx context.Context, instructions []*models.TransactionInstruction) error {
	if len(instructions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(instructions).Error
}

func (r *repository) FindInstruction(ctx context.Context, id uuid.UUID) (*models.TransactionInstruction, error) {
	var instruction models.TransactionInstruction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&instruction).Error; err != nil {
		return nil, err
	}
	return &instruction, nil
}

func (r *repository) SaveInstruction(ctx context.Context, instruction *models.TransactionInstruction) error {
	return r.db.WithContext(ctx).Save(instruction).Error
}

func (r *repository) ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.TransactionInstruction, error) {
	var instructions []models.TransactionInstruction
	err := r.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		Order("created_at ASC").
		Find(&instructions).Error
	if err != nil {
		return nil, err
	}
	return instructions, nil
}

func (r *repository) ExistsSplitForPayment(ctx context.Context, paymentID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.TransactionInstruction{}).
		Where("payment_id = ?", paymentID).
		Where("type IN ?", []enums.InstructionType{
			enums.InstructionTypeHostPayout,
			enums.InstructionTypePlatformCommission,
		}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ExistsRefundForReservation(ctx context.Context, reservationID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.TransactionInstruction{}).
		Where("reservation_id = ?", reservationID).
		Where("type IN ?", []enums.InstructionType{
			enums.InstructionTypeRefundFromHost,
			enums.InstructionTypeRefundFromPlatform,
		}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ExecutedTotals sums EXECUTED instruction amounts over the given accounts,
// split into inbound (account is destination) and outbound (account is
// source). Pending and cancelled instructions never count.
func (r *repository) ExecutedTotals(ctx context.Context, accountIDs []uuid.UUID) (decimal.Decimal, decimal.Decimal, error) {
	if len(accountIDs) == 0 {
		return decimal.Zero, decimal.Zero, nil
	}

	var inbound, outbound decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&models.TransactionInstruction{}).
		Select("SUM(amount)").
		Where("status = ?", enums.InstructionStatusExecuted).
		Where("destination_account_id IN ?", accountIDs).
		Scan(&inbound).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	err = r.db.WithContext(ctx).
		Model(&models.TransactionInstruction{}).
		Select("SUM(amount)").
		Where("status = ?", enums.InstructionStatusExecuted).
		Where("source_account_id IN ?", accountIDs).
		Scan(&outbound).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	in, out := decimal.Zero, decimal.Zero
	if inbound.Valid {
		in = inbound.Decimal
	}
	if outbound.Valid {
		out = outbound.Decimal
	}
	return in, out, nil
}

func (r *repository) FindReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&reservation).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) FindListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&listing).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *repository) FindPaidPayments(ctx context.Context, reservationID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		Where("status = ?", enums.PaymentStatusPaid).
		Order("created_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) SavePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}
