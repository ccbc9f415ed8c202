package reservations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/staynest/staynest-backend/pkg/db/models"
	"github.com/staynest/staynest-backend/pkg/enums"
	pkgerrors "github.com/staynest/staynest-backend/pkg/errors"
	"github.com/staynest/staynest-backend/pkg/pagination"
)

type stubRepo struct {
	listings     map[uuid.UUID]*models.Listing
	reservations map[uuid.UUID]*models.Reservation
	overlapping  []models.Reservation
	created      []*models.Reservation
	saved        []*models.Reservation
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		listings:     map[uuid.UUID]*models.Listing{},
		reservations: map[uuid.UUID]*models.Reservation{},
	}
}

func (r *stubRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *stubRepo) Create(ctx context.Context, reservation *models.Reservation) error {
	if reservation.ID == uuid.Nil {
		reservation.ID = uuid.New()
	}
	r.reservations[reservation.ID] = reservation
	r.created = append(r.created, reservation)
	return nil
}

func (r *stubRepo) Save(ctx context.Context, reservation *models.Reservation) error {
	r.reservations[reservation.ID] = reservation
	r.saved = append(r.saved, reservation)
	return nil
}

func (r *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	reservation, ok := r.reservations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *reservation
	return &copied, nil
}

func (r *stubRepo) FindListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	listing, ok := r.listings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return listing, nil
}

func (r *stubRepo) FindOverlapping(ctx context.Context, listingID uuid.UUID, arrival, departure time.Time) ([]models.Reservation, error) {
	return r.overlapping, nil
}

func (r *stubRepo) ListBookedPeriods(ctx context.Context, listingID uuid.UUID) ([]models.Reservation, error) {
	var out []models.Reservation
	for _, reservation := range r.reservations {
		if reservation.ListingID != listingID {
			continue
		}
		if reservation.Status == enums.ReservationStatusConfirmed || reservation.Status == enums.ReservationStatusInProgress {
			out = append(out, *reservation)
		}
	}
	return out, nil
}

func (r *stubRepo) ListByTraveler(ctx context.Context, travelerID uuid.UUID, params pagination.Params) ([]models.Reservation, error) {
	return nil, nil
}

func (r *stubRepo) FindPendingArrivedBefore(ctx context.Context, cutoff time.Time) ([]models.Reservation, error) {
	return nil, nil
}

func (r *stubRepo) FindConfirmedArrivingOn(ctx context.Context, day time.Time) ([]models.Reservation, error) {
	return nil, nil
}

func (r *stubRepo) FindInProgressDepartedBefore(ctx context.Context, cutoff time.Time) ([]models.Reservation, error) {
	return nil, nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

type stubRefunder struct {
	calls int
	err   error
}

func (r *stubRefunder) RefundOnCancellation(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) ([]models.TransactionInstruction, error) {
	r.calls++
	return nil, r.err
}

func newTestService(t *testing.T, repo *stubRepo, refunder *stubRefunder, now time.Time) *service {
	t.Helper()
	svc, err := NewService(repo, stubTx{}, refunder)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	impl := svc.(*service)
	impl.now = func() time.Time { return now }
	return impl
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedListing(repo *stubRepo) *models.Listing {
	listing := &models.Listing{
		ID:           uuid.New(),
		HostID:       uuid.New(),
		Name:         "Canal View Loft",
		NightlyPrice: decimal.RequireFromString("120.00"),
		MaxGuests:    4,
		Active:       true,
	}
	repo.listings[listing.ID] = listing
	return listing
}

func TestCreateComputesPricing(t *testing.T) {
	repo := newStubRepo()
	listing := seedListing(repo)
	svc := newTestService(t, repo, &stubRefunder{}, date(2026, time.March, 1))

	cleaning := decimal.RequireFromString("35.00")
	reservation, err := svc.Create(context.Background(), CreateInput{
		ListingID:   listing.ID,
		TravelerID:  uuid.New(),
		Arrival:     date(2026, time.June, 10),
		Departure:   date(2026, time.June, 13),
		Guests:      2,
		CleaningFee: &cleaning,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if reservation.Status != enums.ReservationStatusPending {
		t.Fatalf("status = %s, want pending", reservation.Status)
	}
	if reservation.Nights != 3 {
		t.Fatalf("nights = %d, want 3", reservation.Nights)
	}
	if !reservation.BasePrice.Equal(decimal.RequireFromString("360.00")) {
		t.Fatalf("base price = %s, want 360.00", reservation.BasePrice)
	}
	if !reservation.TotalAmount.Equal(decimal.RequireFromString("395.00")) {
		t.Fatalf("total = %s, want 395.00", reservation.TotalAmount)
	}
	if reservation.PaymentMode != enums.PaymentModeCard {
		t.Fatalf("payment mode = %s, want card default", reservation.PaymentMode)
	}
}

func TestCreateRejectsInvalidDateRange(t *testing.T) {
	repo := newStubRepo()
	listing := seedListing(repo)
	svc := newTestService(t, repo, &stubRefunder{}, date(2026, time.March, 1))

	for name, in := range map[string]CreateInput{
		"departure before arrival": {
			ListingID:  listing.ID,
			TravelerID: uuid.New(),
			Arrival:    date(2026, time.June, 13),
			Departure:  date(2026, time.June, 10),
		},
		"zero nights": {
			ListingID:  listing.ID,
			TravelerID: uuid.New(),
			Arrival:    date(2026, time.June, 10),
			Departure:  date(2026, time.June, 10),
		},
	} {
		if _, err := svc.Create(context.Background(), in); !pkgerrors.HasCode(err, pkgerrors.CodeInvalidDateRange) {
			t.Fatalf("%s: err = %v, want %s", name, err, pkgerrors.CodeInvalidDateRange)
		}
	}
	if len(repo.created) != 0 {
		t.Fatalf("created %d reservations, want none", len(repo.created))
	}
}

func TestCreateRejectsBookingConflict(t *testing.T) {
	repo := newStubRepo()
	listing := seedListing(repo)
	repo.overlapping = []models.Reservation{{ID: uuid.New()}}
	svc := newTestService(t, repo, &stubRefunder{}, date(2026, time.March, 1))

	_, err := svc.Create(context.Background(), CreateInput{
		ListingID:  listing.ID,
		TravelerID: uuid.New(),
		Arrival:    date(2026, time.June, 10),
		Departure:  date(2026, time.June, 13),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeBookingConflict) {
		t.Fatalf("err = %v, want %s", err, pkgerrors.CodeBookingConflict)
	}
}

func TestCreateRejectsOverCapacity(t *testing.T) {
	repo := newStubRepo()
	listing := seedListing(repo)
	svc := newTestService(t, repo, &stubRefunder{}, date(2026, time.March, 1))

	_, err := svc.Create(context.Background(), CreateInput{
		ListingID:  listing.ID,
		TravelerID: uuid.New(),
		Arrival:    date(2026, time.June, 10),
		Departure:  date(2026, time.June, 13),
		Guests:     listing.MaxGuests + 1,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("err = %v, want %s", err, pkgerrors.CodeValidation)
	}
}

func TestConfirmOnlyFromPending(t *testing.T) {
	repo := newStubRepo()
	now := date(2026, time.March, 1)
	svc := newTestService(t, repo, &stubRefunder{}, now)

	reservation := &models.Reservation{
		ID:            uuid.New(),
		ArrivalDate:   date(2026, time.June, 10),
		DepartureDate: date(2026, time.June, 13),
		NightlyPrice:  decimal.RequireFromString("120.00"),
		Status:        enums.ReservationStatusPending,
	}
	repo.reservations[reservation.ID] = reservation

	confirmed, err := svc.Confirm(context.Background(), reservation.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if confirmed.Status != enums.ReservationStatusConfirmed {
		t.Fatalf("status = %s, want confirmed", confirmed.Status)
	}
	if confirmed.ConfirmedAt == nil || !confirmed.ConfirmedAt.Equal(now) {
		t.Fatalf("confirmed_at = %v, want %v", confirmed.ConfirmedAt, now)
	}

	if _, err := svc.Confirm(context.Background(), reservation.ID); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("second confirm err = %v, want %s", err, pkgerrors.CodeStateConflict)
	}
}

func TestLifecycleStartComplete(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, &stubRefunder{}, date(2026, time.June, 10))

	reservation := &models.Reservation{
		ID:            uuid.New(),
		ArrivalDate:   date(2026, time.June, 10),
		DepartureDate: date(2026, time.June, 13),
		NightlyPrice:  decimal.RequireFromString("120.00"),
		Status:        enums.ReservationStatusPending,
	}
	repo.reservations[reservation.ID] = reservation

	if _, err := svc.Start(context.Background(), reservation.ID); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("start from pending err = %v, want %s", err, pkgerrors.CodeStateConflict)
	}

	if _, err := svc.Confirm(context.Background(), reservation.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	started, err := svc.Start(context.Background(), reservation.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if started.Status != enums.ReservationStatusInProgress {
		t.Fatalf("status = %s, want in_progress", started.Status)
	}

	completed, err := svc.Complete(context.Background(), reservation.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if completed.Status != enums.ReservationStatusCompleted {
		t.Fatalf("status = %s, want completed", completed.Status)
	}

	if _, err := svc.Complete(context.Background(), reservation.ID); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("second complete err = %v, want %s", err, pkgerrors.CodeStateConflict)
	}
}

func TestCancelRecordsReasonAndCallsRefunder(t *testing.T) {
	repo := newStubRepo()
	refunder := &stubRefunder{}
	now := date(2026, time.March, 1)
	svc := newTestService(t, repo, refunder, now)

	reservation := &models.Reservation{
		ID:            uuid.New(),
		ArrivalDate:   date(2026, time.June, 10),
		DepartureDate: date(2026, time.June, 13),
		NightlyPrice:  decimal.RequireFromString("120.00"),
		Status:        enums.ReservationStatusConfirmed,
	}
	repo.reservations[reservation.ID] = reservation

	cancelled, err := svc.Cancel(context.Background(), CancelInput{
		ReservationID: reservation.ID,
		Reason:        "change of plans",
	})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != enums.ReservationStatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}
	if cancelled.CancellationReason == nil || *cancelled.CancellationReason != "change of plans" {
		t.Fatalf("reason = %v, want recorded", cancelled.CancellationReason)
	}
	if cancelled.CancelledAt == nil || !cancelled.CancelledAt.Equal(now) {
		t.Fatalf("cancelled_at = %v, want %v", cancelled.CancelledAt, now)
	}
	if refunder.calls != 1 {
		t.Fatalf("refunder calls = %d, want 1", refunder.calls)
	}
}

func TestCancelRequiresReason(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, &stubRefunder{}, date(2026, time.March, 1))

	_, err := svc.Cancel(context.Background(), CancelInput{ReservationID: uuid.New()})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("err = %v, want %s", err, pkgerrors.CodeValidation)
	}
}

func TestCancelAfterArrivalNeedsForce(t *testing.T) {
	repo := newStubRepo()
	refunder := &stubRefunder{}
	svc := newTestService(t, repo, refunder, date(2026, time.June, 11))

	reservation := &models.Reservation{
		ID:            uuid.New(),
		ArrivalDate:   date(2026, time.June, 10),
		DepartureDate: date(2026, time.June, 13),
		NightlyPrice:  decimal.RequireFromString("120.00"),
		Status:        enums.ReservationStatusInProgress,
	}
	repo.reservations[reservation.ID] = reservation

	_, err := svc.Cancel(context.Background(), CancelInput{
		ReservationID: reservation.ID,
		Reason:        "emergency",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("self-service err = %v, want %s", err, pkgerrors.CodeStateConflict)
	}
	if refunder.calls != 0 {
		t.Fatalf("refunder called on rejected cancel")
	}

	cancelled, err := svc.Cancel(context.Background(), CancelInput{
		ReservationID: reservation.ID,
		Reason:        "emergency",
		Force:         true,
	})
	if err != nil {
		t.Fatalf("forced Cancel: %v", err)
	}
	if cancelled.Status != enums.ReservationStatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}
}

func TestCancelTerminalStatesRejected(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, &stubRefunder{}, date(2026, time.March, 1))

	for _, status := range []enums.ReservationStatus{
		enums.ReservationStatusCancelled,
		enums.ReservationStatusCompleted,
	} {
		reservation := &models.Reservation{
			ID:            uuid.New(),
			ArrivalDate:   date(2026, time.June, 10),
			DepartureDate: date(2026, time.June, 13),
			NightlyPrice:  decimal.RequireFromString("120.00"),
			Status:        status,
		}
		repo.reservations[reservation.ID] = reservation

		_, err := svc.Cancel(context.Background(), CancelInput{
			ReservationID: reservation.ID,
			Reason:        "whatever",
			Force:         true,
		})
		if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
			t.Fatalf("cancel from %s err = %v, want %s", status, err, pkgerrors.CodeStateConflict)
		}
	}
}

func TestBookedPeriods(t *testing.T) {
	repo := newStubRepo()
	listing := seedListing(repo)
	svc := newTestService(t, repo, &stubRefunder{}, date(2026, time.March, 1))

	repo.reservations[uuid.New()] = &models.Reservation{
		ID:            uuid.New(),
		ListingID:     listing.ID,
		ArrivalDate:   date(2026, time.June, 10),
		DepartureDate: date(2026, time.June, 13),
		Status:        enums.ReservationStatusConfirmed,
	}
	repo.reservations[uuid.New()] = &models.Reservation{
		ID:            uuid.New(),
		ListingID:     listing.ID,
		ArrivalDate:   date(2026, time.July, 1),
		DepartureDate: date(2026, time.July, 5),
		Status:        enums.ReservationStatusCancelled,
	}

	periods, err := svc.BookedPeriods(context.Background(), listing.ID)
	if err != nil {
		t.Fatalf("BookedPeriods: %v", err)
	}
	if len(periods) != 1 {
		t.Fatalf("periods = %d, want 1", len(periods))
	}
	if !periods[0].Arrival.Equal(date(2026, time.June, 10)) {
		t.Fatalf("arrival = %v, want 2026-06-10", periods[0].Arrival)
	}
}

func TestGetNotFound(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, &stubRefunder{}, date(2026, time.March, 1))

	if _, err := svc.Get(context.Background(), uuid.New()); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("err = %v, want %s", err, pkgerrors.CodeNotFound)
	}
}
