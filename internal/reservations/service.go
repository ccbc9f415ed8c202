package reservations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/staynest/staynest-backend/pkg/db/models"
	"github.com/staynest/staynest-backend/pkg/enums"
	pkgerrors "github.com/staynest/staynest-backend/pkg/errors"
	"github.com/staynest/staynest-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Refunder generates refund instructions when a reservation with paid money
// is cancelled. Implemented by the payout engine.
type Refunder interface {
	RefundOnCancellation(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) ([]models.TransactionInstruction, error)
}

// Service owns the reservation state machine.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Reservation, error)
	Confirm(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Reservation, error)
	Start(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	Complete(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	BookedPeriods(ctx context.Context, listingID uuid.UUID) ([]Period, error)
	ListByTraveler(ctx context.Context, travelerID uuid.UUID, params pagination.Params) ([]models.Reservation, error)
}

// CreateInput carries a booking request. The nightly price comes from the
// listing, not the caller.
type CreateInput struct {
	ListingID   uuid.UUID
	TravelerID  uuid.UUID
	Arrival     time.Time
	Departure   time.Time
	Guests      int
	PaymentMode enums.PaymentMode
	CleaningFee *decimal.Decimal
	ServiceFee  *decimal.Decimal
	CityFee     *decimal.Decimal
}

// CancelInput carries a cancellation. Force is reserved for administrators
// and the reconciliation scheduler; self-service cancellation requires the
// arrival date to still be in the future.
type CancelInput struct {
	ReservationID uuid.UUID
	Reason        string
	Force         bool
}

// Period is one already-booked date range of a listing.
type Period struct {
	Arrival   time.Time `json:"arrival"`
	Departure time.Time `json:"departure"`
}

type service struct {
	repo     Repository
	tx       txRunner
	refunder Refunder
	now      func() time.Time
}

// NewService builds a reservation service with the required dependencies.
func NewService(repo Repository, tx txRunner, refunder Refunder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reservations repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if refunder == nil {
		return nil, fmt.Errorf("refunder required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		refunder: refunder,
		now:      time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Reservation, error) {
	if input.ListingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}
	if input.TravelerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "traveler id required")
	}
	if !input.Departure.After(input.Arrival) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidDateRange, "departure must be after arrival")
	}
	if input.Guests <= 0 {
		input.Guests = 1
	}
	mode := input.PaymentMode
	if mode == "" {
		mode = enums.PaymentModeCard
	}
	if !mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment mode")
	}

	var created *models.Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		listing, err := repo.FindListing(ctx, input.ListingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
		}
		if !listing.Active {
			return pkgerrors.New(pkgerrors.CodeConflict, "listing is not accepting bookings")
		}
		if input.Guests > listing.MaxGuests {
			return pkgerrors.New(pkgerrors.CodeValidation, "guest count exceeds listing capacity").
				WithDetails(map[string]any{"max_guests": listing.MaxGuests})
		}

		overlapping, err := repo.FindOverlapping(ctx, input.ListingID, input.Arrival, input.Departure)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check availability")
		}
		if len(overlapping) > 0 {
			return pkgerrors.New(pkgerrors.CodeBookingConflict, "dates overlap an existing reservation").
				WithDetails(map[string]any{"conflicts": len(overlapping)})
		}

		reservation := &models.Reservation{
			ListingID:     input.ListingID,
			TravelerID:    input.TravelerID,
			ArrivalDate:   input.Arrival,
			DepartureDate: input.Departure,
			Guests:        input.Guests,
			NightlyPrice:  listing.NightlyPrice,
			CleaningFee:   input.CleaningFee,
			ServiceFee:    input.ServiceFee,
			CityFee:       input.CityFee,
			Status:        enums.ReservationStatusPending,
			PaymentMode:   mode,
		}
		reservation.Recompute()

		if err := repo.Create(ctx, reservation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation")
		}
		created = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Confirm(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	return s.transition(ctx, id, func(reservation *models.Reservation) error {
		if reservation.Status != enums.ReservationStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending reservations can be confirmed").
				WithDetails(map[string]any{"status": reservation.Status})
		}
		now := s.now().UTC()
		reservation.Status = enums.ReservationStatusConfirmed
		reservation.ConfirmedAt = &now
		return nil
	})
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Reservation, error) {
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason required")
	}

	var result *models.Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reservation, err := repo.FindByID(ctx, input.ReservationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
		}

		switch reservation.Status {
		case enums.ReservationStatusCancelled:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation is already cancelled")
		case enums.ReservationStatusCompleted:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "completed reservations cannot be cancelled")
		}

		now := s.now().UTC()
		if !input.Force && !now.Before(reservation.ArrivalDate) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "stay has already started; contact support to cancel")
		}

		// Refund instructions must land in the same transaction as the
		// cancellation itself.
		if _, err := s.refunder.RefundOnCancellation(ctx, tx, reservation); err != nil {
			return err
		}

		reason := input.Reason
		reservation.Status = enums.ReservationStatusCancelled
		reservation.CancellationReason = &reason
		reservation.CancelledAt = &now
		reservation.UpdatedAt = now
		reservation.Recompute()

		if err := repo.Save(ctx, reservation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save reservation")
		}
		result = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Start(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	return s.transition(ctx, id, func(reservation *models.Reservation) error {
		if reservation.Status != enums.ReservationStatusConfirmed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only confirmed reservations can start").
				WithDetails(map[string]any{"status": reservation.Status})
		}
		reservation.Status = enums.ReservationStatusInProgress
		return nil
	})
}

func (s *service) Complete(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	return s.transition(ctx, id, func(reservation *models.Reservation) error {
		if reservation.Status != enums.ReservationStatusInProgress {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only in-progress reservations can complete").
				WithDetails(map[string]any{"status": reservation.Status})
		}
		reservation.Status = enums.ReservationStatusCompleted
		return nil
	})
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	return reservation, nil
}

func (s *service) BookedPeriods(ctx context.Context, listingID uuid.UUID) ([]Period, error) {
	if listingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}
	reservations, err := s.repo.ListBookedPeriods(ctx, listingID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list booked periods")
	}
	periods := make([]Period, 0, len(reservations))
	for _, reservation := range reservations {
		periods = append(periods, Period{
			Arrival:   reservation.ArrivalDate,
			Departure: reservation.DepartureDate,
		})
	}
	return periods, nil
}

func (s *service) ListByTraveler(ctx context.Context, travelerID uuid.UUID, params pagination.Params) ([]models.Reservation, error) {
	if travelerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "traveler id required")
	}
	reservations, err := s.repo.ListByTraveler(ctx, travelerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reservations")
	}
	return reservations, nil
}

// transition runs one guarded state change inside its own transaction. The
// in-transaction re-read makes the guard authoritative even when the
// scheduler and an API call race on the same row.
func (s *service) transition(ctx context.Context, id uuid.UUID, mutate func(*models.Reservation) error) (*models.Reservation, error) {
	var result *models.Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reservation, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
		}

		if err := mutate(reservation); err != nil {
			return err
		}

		reservation.UpdatedAt = s.now().UTC()
		reservation.Recompute()

		if err := repo.Save(ctx, reservation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save reservation")
		}
		result = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
