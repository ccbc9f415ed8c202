package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/staynest/staynest-backend/internal/reservations"
	"github.com/staynest/staynest-backend/pkg/db/models"
	pkgerrors "github.com/staynest/staynest-backend/pkg/errors"
	"github.com/staynest/staynest-backend/pkg/logger"
)

const staleConfirmationReason = "confirmation window expired"

type reservationReader interface {
	FindPendingArrivedBefore(ctx context.Context, cutoff time.Time) ([]models.Reservation, error)
	FindConfirmedArrivingOn(ctx context.Context, day time.Time) ([]models.Reservation, error)
	FindInProgressDepartedBefore(ctx context.Context, cutoff time.Time) ([]models.Reservation, error)
}

type reservationTransitioner interface {
	Cancel(ctx context.Context, input reservations.CancelInput) (*models.Reservation, error)
	Start(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	Complete(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
}

// RolloverJobParams configure the reservation lifecycle sweep.
type RolloverJobParams struct {
	Logger   *logger.Logger
	Reader   reservationReader
	Service  reservationTransitioner
	Interval time.Duration
}

// NewReservationRolloverJob builds the sweep that walks reservations through
// the calendar: stale holds out, arrivals in, departures closed.
func NewReservationRolloverJob(params RolloverJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("reservation reader required")
	}
	if params.Service == nil {
		return nil, fmt.Errorf("reservation service required")
	}
	if params.Interval <= 0 {
		params.Interval = time.Hour
	}
	return &reservationRolloverJob{
		logg:     params.Logger,
		reader:   params.Reader,
		service:  params.Service,
		interval: params.Interval,
		now:      time.Now,
	}, nil
}

type reservationRolloverJob struct {
	logg     *logger.Logger
	reader   reservationReader
	service  reservationTransitioner
	interval time.Duration
	now      func() time.Time
}

func (j *reservationRolloverJob) Name() string { return "reservation-rollover" }

func (j *reservationRolloverJob) Interval() time.Duration { return j.interval }

func (j *reservationRolloverJob) Run(ctx context.Context) error {
	var errs []error
	if err := j.cancelStalePending(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := j.startArrivals(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := j.completeDepartures(ctx); err != nil {
		errs = append(errs, err)
	}
	return multierr.Combine(errs...)
}

func (j *reservationRolloverJob) cancelStalePending(ctx context.Context) error {
	today := j.today()
	stale, err := j.reader.FindPendingArrivedBefore(ctx, today)
	if err != nil {
		return fmt.Errorf("query stale pending reservations: %w", err)
	}
	count := 0
	var errs []error
	for _, reservation := range stale {
		_, err := j.service.Cancel(ctx, reservations.CancelInput{
			ReservationID: reservation.ID,
			Reason:        staleConfirmationReason,
			Force:         true,
		})
		if err != nil && !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
			errs = append(errs, fmt.Errorf("cancel reservation %s: %w", reservation.ID, err))
			continue
		}
		if err == nil {
			count++
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
	j.logg.Info(logCtx, "stale pending cancellation pass complete")
	return multierr.Combine(errs...)
}

func (j *reservationRolloverJob) startArrivals(ctx context.Context) error {
	today := j.today()
	arriving, err := j.reader.FindConfirmedArrivingOn(ctx, today)
	if err != nil {
		return fmt.Errorf("query arriving reservations: %w", err)
	}
	count := 0
	var errs []error
	for _, reservation := range arriving {
		if _, err := j.service.Start(ctx, reservation.ID); err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
				continue
			}
			errs = append(errs, fmt.Errorf("start reservation %s: %w", reservation.ID, err))
			continue
		}
		count++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
	j.logg.Info(logCtx, "check-in pass complete")
	return multierr.Combine(errs...)
}

func (j *reservationRolloverJob) completeDepartures(ctx context.Context) error {
	today := j.today()
	departed, err := j.reader.FindInProgressDepartedBefore(ctx, today)
	if err != nil {
		return fmt.Errorf("query departed reservations: %w", err)
	}
	count := 0
	var errs []error
	for _, reservation := range departed {
		if _, err := j.service.Complete(ctx, reservation.ID); err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
				continue
			}
			errs = append(errs, fmt.Errorf("complete reservation %s: %w", reservation.ID, err))
			continue
		}
		count++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
	j.logg.Info(logCtx, "check-out pass complete")
	return multierr.Combine(errs...)
}

// today truncates the clock to a UTC calendar date, matching how arrival and
// departure dates are stored.
func (j *reservationRolloverJob) today() time.Time {
	now := j.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
