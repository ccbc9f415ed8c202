package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/staynest/staynest-backend/internal/payments"
	"github.com/staynest/staynest-backend/internal/reservations"
	"github.com/staynest/staynest-backend/pkg/db/models"
	"github.com/staynest/staynest-backend/pkg/enums"
	pkgerrors "github.com/staynest/staynest-backend/pkg/errors"
	"github.com/staynest/staynest-backend/pkg/logger"
)

const paymentExpiryReason = "payment not completed in time"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stalePaymentReader interface {
	FindStaleBefore(ctx context.Context, cutoff time.Time) ([]models.Payment, error)
	FindReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
}

type transactionalPaymentRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	Save(ctx context.Context, payment *models.Payment) error
}

type paymentRepoFactory func(tx *gorm.DB) transactionalPaymentRepo

func defaultPaymentRepo(tx *gorm.DB) transactionalPaymentRepo {
	return payments.NewRepository(tx)
}

type reservationCanceller interface {
	Cancel(ctx context.Context, input reservations.CancelInput) (*models.Reservation, error)
}

// PaymentExpiryJobParams configure the payment expiry sweep.
type PaymentExpiryJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	StaleReader stalePaymentReader
	Canceller   reservationCanceller
	Interval    time.Duration
	RepoFactory paymentRepoFactory
}

// NewPaymentExpiryJob builds the sweep that closes overdue payment windows
// and cancels the reservations left holding them.
func NewPaymentExpiryJob(params PaymentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.StaleReader == nil {
		return nil, fmt.Errorf("stale payment reader required")
	}
	if params.Canceller == nil {
		return nil, fmt.Errorf("reservation canceller required")
	}
	if params.Interval <= 0 {
		params.Interval = 30 * time.Minute
	}
	repoFactory := params.RepoFactory
	if repoFactory == nil {
		repoFactory = defaultPaymentRepo
	}
	return &paymentExpiryJob{
		logg:        params.Logger,
		db:          params.DB,
		staleReader: params.StaleReader,
		canceller:   params.Canceller,
		interval:    params.Interval,
		repoFactory: repoFactory,
		now:         time.Now,
	}, nil
}

type paymentExpiryJob struct {
	logg        *logger.Logger
	db          txRunner
	staleReader stalePaymentReader
	canceller   reservationCanceller
	interval    time.Duration
	repoFactory paymentRepoFactory
	now         func() time.Time
}

func (j *paymentExpiryJob) Name() string { return "payment-expiry" }

func (j *paymentExpiryJob) Interval() time.Duration { return j.interval }

func (j *paymentExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	stale, err := j.staleReader.FindStaleBefore(ctx, now)
	if err != nil {
		return fmt.Errorf("query stale payments: %w", err)
	}

	var errs []error
	expired := 0
	for _, payment := range stale {
		ok, err := j.expirePayment(ctx, payment, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("expire payment %s: %w", payment.ID, err))
			continue
		}
		if !ok {
			continue
		}
		expired++
		if err := j.cancelReservation(ctx, payment.ReservationID); err != nil {
			errs = append(errs, fmt.Errorf("cancel reservation %s: %w", payment.ReservationID, err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"scanned": len(stale), "expired": expired})
	j.logg.Info(logCtx, "payment expiry sweep complete")
	return multierr.Combine(errs...)
}

// expirePayment re-reads under the transaction so a concurrent confirmation
// wins over the sweep.
func (j *paymentExpiryJob) expirePayment(ctx context.Context, payment models.Payment, now time.Time) (bool, error) {
	expired := false
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repoFactory(tx)
		current, err := repo.FindByID(ctx, payment.ID)
		if err != nil {
			return err
		}
		if current.Status != enums.PaymentStatusPending && current.Status != enums.PaymentStatusProcessing {
			return nil
		}
		if !current.IsExpired(now) {
			return nil
		}
		current.Status = enums.PaymentStatusExpired
		current.UpdatedAt = now
		if err := repo.Save(ctx, current); err != nil {
			return err
		}
		expired = true
		return nil
	})
	return expired, err
}

// cancelReservation only tears down CONFIRMED reservations; pending ones are
// handled by the rollover sweep, and terminal ones are left alone.
func (j *paymentExpiryJob) cancelReservation(ctx context.Context, reservationID uuid.UUID) error {
	reservation, err := j.staleReader.FindReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	if reservation.Status != enums.ReservationStatusConfirmed {
		return nil
	}
	_, err = j.canceller.Cancel(ctx, reservations.CancelInput{
		ReservationID: reservationID,
		Reason:        paymentExpiryReason,
		Force:         true,
	})
	if pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		// Someone else moved it first; the sweep has nothing to do.
		return nil
	}
	return err
}
