package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/staynest/staynest-backend/internal/reservations"
	"github.com/staynest/staynest-backend/pkg/db/models"
	"github.com/staynest/staynest-backend/pkg/enums"
	pkgerrors "github.com/staynest/staynest-backend/pkg/errors"
	"github.com/staynest/staynest-backend/pkg/logger"
)

type fakeReservationReader struct {
	stalePending []models.Reservation
	arriving     []models.Reservation
	departed     []models.Reservation
}

func (f *fakeReservationReader) FindPendingArrivedBefore(ctx context.Context, cutoff time.Time) ([]models.Reservation, error) {
	return f.stalePending, nil
}

func (f *fakeReservationReader) FindConfirmedArrivingOn(ctx context.Context, day time.Time) ([]models.Reservation, error) {
	return f.arriving, nil
}

func (f *fakeReservationReader) FindInProgressDepartedBefore(ctx context.Context, cutoff time.Time) ([]models.Reservation, error) {
	return f.departed, nil
}

type fakeTransitioner struct {
	cancels    []reservations.CancelInput
	starts     []uuid.UUID
	completes  []uuid.UUID
	startErr   error
	cancelErr  error
	completErr error
}

func (f *fakeTransitioner) Cancel(ctx context.Context, input reservations.CancelInput) (*models.Reservation, error) {
	f.cancels = append(f.cancels, input)
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	return &models.Reservation{ID: input.ReservationID, Status: enums.ReservationStatusCancelled}, nil
}

func (f *fakeTransitioner) Start(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	f.starts = append(f.starts, id)
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &models.Reservation{ID: id, Status: enums.ReservationStatusInProgress}, nil
}

func (f *fakeTransitioner) Complete(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	f.completes = append(f.completes, id)
	if f.completErr != nil {
		return nil, f.completErr
	}
	return &models.Reservation{ID: id, Status: enums.ReservationStatusCompleted}, nil
}

func newRolloverJobTest(t *testing.T, reader *fakeReservationReader, service *fakeTransitioner, now time.Time) *reservationRolloverJob {
	t.Helper()

	jobIface, err := NewReservationRolloverJob(RolloverJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Reader:  reader,
		Service: service,
	})
	if err != nil {
		t.Fatalf("NewReservationRolloverJob: %v", err)
	}
	job := jobIface.(*reservationRolloverJob)
	job.now = func() time.Time { return now }
	return job
}

func reservationRow(status enums.ReservationStatus) models.Reservation {
	return models.Reservation{ID: uuid.New(), Status: status}
}

func TestRolloverJob_runsAllThreePasses(t *testing.T) {
	now := time.Date(2026, time.June, 10, 9, 30, 0, 0, time.UTC)
	stale := reservationRow(enums.ReservationStatusPending)
	arriving := reservationRow(enums.ReservationStatusConfirmed)
	departed := reservationRow(enums.ReservationStatusInProgress)

	reader := &fakeReservationReader{
		stalePending: []models.Reservation{stale},
		arriving:     []models.Reservation{arriving},
		departed:     []models.Reservation{departed},
	}
	service := &fakeTransitioner{}
	job := newRolloverJobTest(t, reader, service, now)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(service.cancels) != 1 {
		t.Fatalf("cancels = %d, want 1", len(service.cancels))
	}
	cancel := service.cancels[0]
	if cancel.ReservationID != stale.ID || cancel.Reason != staleConfirmationReason || !cancel.Force {
		t.Fatalf("unexpected cancel input %+v", cancel)
	}
	if len(service.starts) != 1 || service.starts[0] != arriving.ID {
		t.Fatalf("starts = %v, want [%s]", service.starts, arriving.ID)
	}
	if len(service.completes) != 1 || service.completes[0] != departed.ID {
		t.Fatalf("completes = %v, want [%s]", service.completes, departed.ID)
	}
}

func TestRolloverJob_skipsStateConflicts(t *testing.T) {
	now := time.Date(2026, time.June, 10, 9, 30, 0, 0, time.UTC)
	reader := &fakeReservationReader{
		arriving: []models.Reservation{reservationRow(enums.ReservationStatusConfirmed)},
	}
	service := &fakeTransitioner{
		startErr: pkgerrors.New(pkgerrors.CodeStateConflict, "already in progress"),
	}
	job := newRolloverJobTest(t, reader, service, now)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run must treat state conflicts as skips: %v", err)
	}
}

func TestRolloverJob_aggregatesFailuresAcrossPasses(t *testing.T) {
	now := time.Date(2026, time.June, 10, 9, 30, 0, 0, time.UTC)
	reader := &fakeReservationReader{
		stalePending: []models.Reservation{reservationRow(enums.ReservationStatusPending)},
		departed:     []models.Reservation{reservationRow(enums.ReservationStatusInProgress)},
	}
	service := &fakeTransitioner{
		cancelErr:  gorm.ErrInvalidDB,
		completErr: gorm.ErrInvalidDB,
	}
	job := newRolloverJobTest(t, reader, service, now)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	// Both passes must have been attempted despite the first failing.
	if len(service.cancels) != 1 || len(service.completes) != 1 {
		t.Fatalf("cancels = %d, completes = %d, want 1 and 1", len(service.cancels), len(service.completes))
	}
}

func TestRolloverJob_emptySweepIsNoop(t *testing.T) {
	now := time.Date(2026, time.June, 10, 9, 30, 0, 0, time.UTC)
	service := &fakeTransitioner{}
	job := newRolloverJobTest(t, &fakeReservationReader{}, service, now)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(service.cancels)+len(service.starts)+len(service.completes) != 0 {
		t.Fatal("empty sweep must not mutate anything")
	}
}
