package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	pkgdb "github.com/staynest/staynest-backend/pkg/db"
	"github.com/staynest/staynest-backend/pkg/db/models"
	"github.com/staynest/staynest-backend/pkg/enums"
	pkgerrors "github.com/staynest/staynest-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SplitGenerator turns a paid payment into ledger instructions. Implemented
// by the payout engine; invoked inside the confirmation transaction so the
// payment flip and its instructions commit together.
type SplitGenerator interface {
	GenerateSplit(ctx context.Context, tx *gorm.DB, payment *models.Payment) ([]models.TransactionInstruction, error)
}

// Service owns the payment state machine.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Payment, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	Confirm(ctx context.Context, input ConfirmInput) (*models.Payment, error)
	Fail(ctx context.Context, id uuid.UUID, reason string) (*models.Payment, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*models.Payment, error)
	Refund(ctx context.Context, input RefundInput) (*models.Payment, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.Payment, error)
}

// CreateInput opens a new payment window against a reservation. Amount is
// optional for full payments, which default to the reservation total.
type CreateInput struct {
	ReservationID uuid.UUID
	Type          enums.PaymentType
	Mode          enums.PaymentMode
	Amount        *decimal.Decimal
	Description   string
}

// ConfirmInput settles a payment. ExternalRef is the processor's id for the
// charge, when one exists.
type ConfirmInput struct {
	PaymentID      uuid.UUID
	TransactionRef string
	ExternalRef    *string
}

// RefundInput flips a paid payment to refunded outside the cancellation
// flow. Cancellation refunds go through the payout engine instead.
type RefundInput struct {
	PaymentID uuid.UUID
	Reason    string
	RefundRef *string
}

type service struct {
	repo         Repository
	tx           txRunner
	splits       SplitGenerator
	expiryWindow time.Duration
	now          func() time.Time
}

// NewService builds a payment service. expiryWindow bounds how long a newly
// created payment stays payable.
func NewService(repo Repository, tx txRunner, splits SplitGenerator, expiryWindow time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if splits == nil {
		return nil, fmt.Errorf("split generator required")
	}
	if expiryWindow <= 0 {
		return nil, fmt.Errorf("expiry window must be positive")
	}
	return &service{
		repo:         repo,
		tx:           tx,
		splits:       splits,
		expiryWindow: expiryWindow,
		now:          time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Payment, error) {
	if input.ReservationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	paymentType := input.Type
	if paymentType == "" {
		paymentType = enums.PaymentTypeFull
	}
	if !paymentType.IsValid() || paymentType == enums.PaymentTypeRefund {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment type")
	}
	mode := input.Mode
	if mode == "" {
		mode = enums.PaymentModeCard
	}
	if !mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment mode")
	}

	var created *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		reservation, err := repo.FindReservation(ctx, input.ReservationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
		}
		if reservation.Status != enums.ReservationStatusConfirmed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only confirmed reservations accept payments").
				WithDetails(map[string]any{"status": reservation.Status})
		}

		open, err := repo.ExistsPendingByReservation(ctx, input.ReservationID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open payments")
		}
		if open {
			return pkgerrors.New(pkgerrors.CodeDuplicatePayment, "reservation already has an open payment")
		}

		amount := reservation.TotalAmount
		if input.Amount != nil {
			amount = *input.Amount
		}
		if amount.LessThanOrEqual(decimal.Zero) {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
		}
		if amount.GreaterThan(reservation.TotalAmount) {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment amount exceeds reservation total")
		}

		payment := &models.Payment{
			ReservationID: input.ReservationID,
			Amount:        amount,
			Type:          paymentType,
			Mode:          mode,
			Status:        enums.PaymentStatusPending,
			Description:   input.Description,
			ExpiresAt:     s.now().UTC().Add(s.expiryWindow),
		}
		if err := repo.Create(ctx, payment); err != nil {
			// Partial unique index backstop for two writers racing past the
			// ExistsPendingByReservation check.
			if pkgdb.IsUniqueViolation(err, "uq_payments_pending_window") {
				return pkgerrors.Wrap(pkgerrors.CodeDuplicatePayment, err, "reservation already has an open payment")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}
		created = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) MarkProcessing(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return s.transition(ctx, id, func(payment *models.Payment) error {
		if payment.Status != enums.PaymentStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending payments can start processing").
				WithDetails(map[string]any{"status": payment.Status})
		}
		payment.Status = enums.PaymentStatusProcessing
		return nil
	})
}

func (s *service) Confirm(ctx context.Context, input ConfirmInput) (*models.Payment, error) {
	var result *models.Payment
	var expiredErr error
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := s.load(ctx, repo, input.PaymentID)
		if err != nil {
			return err
		}

		if payment.Status != enums.PaymentStatusPending && payment.Status != enums.PaymentStatusProcessing {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not open for confirmation").
				WithDetails(map[string]any{"status": payment.Status})
		}

		now := s.now().UTC()
		if payment.IsExpired(now) {
			// Close the window in place rather than wait for the sweep. The
			// closure must return nil so this write commits; the expired
			// error is surfaced after the transaction.
			payment.Status = enums.PaymentStatusExpired
			payment.UpdatedAt = now
			if err := repo.Save(ctx, payment); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payment")
			}
			expiredErr = pkgerrors.New(pkgerrors.CodePaymentExpired, "payment window has expired")
			return nil
		}

		payment.Status = enums.PaymentStatusPaid
		payment.PaidAt = &now
		payment.UpdatedAt = now
		if input.TransactionRef != "" {
			ref := input.TransactionRef
			payment.TransactionRef = &ref
		}
		payment.ExternalRef = input.ExternalRef

		if err := repo.Save(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payment")
		}

		if _, err := s.splits.GenerateSplit(ctx, tx, payment); err != nil {
			return err
		}

		result = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expiredErr != nil {
		return nil, expiredErr
	}
	return result, nil
}

func (s *service) Fail(ctx context.Context, id uuid.UUID, reason string) (*models.Payment, error) {
	return s.transition(ctx, id, func(payment *models.Payment) error {
		if payment.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment has already settled").
				WithDetails(map[string]any{"status": payment.Status})
		}
		now := s.now().UTC()
		payment.Status = enums.PaymentStatusFailed
		payment.FailedAt = &now
		if reason != "" {
			if payment.Description != "" {
				payment.Description += "; "
			}
			payment.Description += reason
		}
		return nil
	})
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*models.Payment, error) {
	return s.transition(ctx, id, func(payment *models.Payment) error {
		if payment.Status != enums.PaymentStatusPending && payment.Status != enums.PaymentStatusProcessing {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only open payments can be cancelled").
				WithDetails(map[string]any{"status": payment.Status})
		}
		payment.Status = enums.PaymentStatusCancelled
		if reason != "" {
			if payment.Description != "" {
				payment.Description += "; "
			}
			payment.Description += reason
		}
		return nil
	})
}

func (s *service) Refund(ctx context.Context, input RefundInput) (*models.Payment, error) {
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund reason required")
	}
	return s.transition(ctx, input.PaymentID, func(payment *models.Payment) error {
		if payment.Status != enums.PaymentStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only paid payments can be refunded").
				WithDetails(map[string]any{"status": payment.Status})
		}
		now := s.now().UTC()
		reason := input.Reason
		payment.Status = enums.PaymentStatusRefunded
		payment.RefundedAt = &now
		payment.RefundReason = &reason
		payment.RefundRef = input.RefundRef
		return nil
	})
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

func (s *service) ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.Payment, error) {
	if reservationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	payments, err := s.repo.ListByReservation(ctx, reservationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return payments, nil
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.Payment, error) {
	payment, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

func (s *service) transition(ctx context.Context, id uuid.UUID, mutate func(*models.Payment) error) (*models.Payment, error) {
	var result *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}
		if err := mutate(payment); err != nil {
			return err
		}
		payment.UpdatedAt = s.now().UTC()
		if err := repo.Save(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payment")
		}
		result = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
