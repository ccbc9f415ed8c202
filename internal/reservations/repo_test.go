package reservations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/staynest/staynest-backend/pkg/db/models"
	"github.com/staynest/staynest-backend/pkg/enums"
	"github.com/staynest/staynest-backend/pkg/pagination"
)

func setupReservationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A unique database per test; a shared name would leak rows between
	// tests through the common page cache.
	dsn := "file:reservations-" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	listings := `
CREATE TABLE IF NOT EXISTS listings (
  id TEXT PRIMARY KEY,
  host_id TEXT NOT NULL,
  name TEXT NOT NULL,
  nightly_price NUMERIC NOT NULL,
  max_guests INTEGER NOT NULL DEFAULT 2,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	reservations := `
CREATE TABLE IF NOT EXISTS reservations (
  id TEXT PRIMARY KEY,
  listing_id TEXT NOT NULL,
  traveler_id TEXT NOT NULL,
  arrival_date DATETIME NOT NULL,
  departure_date DATETIME NOT NULL,
  guests INTEGER NOT NULL DEFAULT 1,
  nights INTEGER NOT NULL,
  nightly_price NUMERIC NOT NULL,
  base_price NUMERIC NOT NULL,
  cleaning_fee NUMERIC,
  service_fee NUMERIC,
  city_fee NUMERIC,
  total_amount NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_mode TEXT NOT NULL DEFAULT 'card',
  cancellation_reason TEXT,
  confirmed_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(listings).Error)
	require.NoError(t, db.Exec(reservations).Error)
	return db
}

func newListing(t *testing.T, db *gorm.DB, name string) *models.Listing {
	t.Helper()

	listing := &models.Listing{
		ID:           uuid.New(),
		HostID:       uuid.New(),
		Name:         name,
		NightlyPrice: decimal.RequireFromString("100.00"),
		MaxGuests:    4,
		Active:       true,
	}
	require.NoError(t, db.Create(listing).Error)
	return listing
}

func createReservation(t *testing.T, db *gorm.DB, listing *models.Listing, traveler uuid.UUID, arrival, departure time.Time, status enums.ReservationStatus, created time.Time) *models.Reservation {
	t.Helper()

	reservation := &models.Reservation{
		ID:            uuid.New(),
		ListingID:     listing.ID,
		TravelerID:    traveler,
		ArrivalDate:   arrival,
		DepartureDate: departure,
		Guests:        2,
		NightlyPrice:  listing.NightlyPrice,
		Status:        status,
		PaymentMode:   enums.PaymentModeCard,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	reservation.Recompute()
	require.NoError(t, db.Create(reservation).Error)
	return reservation
}

func TestRepositoryFindOverlapping(t *testing.T) {
	db := setupReservationsTestDB(t)
	repo := NewRepository(db)

	listing := newListing(t, db, "Overlap House")
	traveler := uuid.New()
	now := time.Now().UTC()

	booked := createReservation(t, db, listing, traveler,
		date(2026, time.June, 10), date(2026, time.June, 15),
		enums.ReservationStatusConfirmed, now)
	createReservation(t, db, listing, traveler,
		date(2026, time.June, 10), date(2026, time.June, 15),
		enums.ReservationStatusCancelled, now)

	overlapping, err := repo.FindOverlapping(context.Background(), listing.ID,
		date(2026, time.June, 12), date(2026, time.June, 20))
	require.NoError(t, err)
	require.Len(t, overlapping, 1)
	assert.Equal(t, booked.ID, overlapping[0].ID)

	// Back-to-back stays share a boundary date without conflicting.
	overlapping, err = repo.FindOverlapping(context.Background(), listing.ID,
		date(2026, time.June, 15), date(2026, time.June, 18))
	require.NoError(t, err)
	assert.Empty(t, overlapping)

	overlapping, err = repo.FindOverlapping(context.Background(), listing.ID,
		date(2026, time.June, 1), date(2026, time.June, 10))
	require.NoError(t, err)
	assert.Empty(t, overlapping)

	// A range that swallows the booking entirely still conflicts.
	overlapping, err = repo.FindOverlapping(context.Background(), listing.ID,
		date(2026, time.June, 1), date(2026, time.June, 30))
	require.NoError(t, err)
	require.Len(t, overlapping, 1)
}

func TestRepositoryListBookedPeriods(t *testing.T) {
	db := setupReservationsTestDB(t)
	repo := NewRepository(db)

	listing := newListing(t, db, "Period House")
	traveler := uuid.New()
	now := time.Now().UTC()

	createReservation(t, db, listing, traveler,
		date(2026, time.July, 10), date(2026, time.July, 12),
		enums.ReservationStatusInProgress, now)
	createReservation(t, db, listing, traveler,
		date(2026, time.June, 1), date(2026, time.June, 5),
		enums.ReservationStatusConfirmed, now)
	createReservation(t, db, listing, traveler,
		date(2026, time.June, 20), date(2026, time.June, 22),
		enums.ReservationStatusPending, now)
	createReservation(t, db, listing, traveler,
		date(2026, time.August, 1), date(2026, time.August, 3),
		enums.ReservationStatusCancelled, now)

	periods, err := repo.ListBookedPeriods(context.Background(), listing.ID)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.True(t, periods[0].ArrivalDate.Before(periods[1].ArrivalDate))
}

func TestRepositoryListByTraveler_cursor(t *testing.T) {
	db := setupReservationsTestDB(t)
	repo := NewRepository(db)

	listing := newListing(t, db, "Cursor House")
	traveler := uuid.New()
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	oldest := createReservation(t, db, listing, traveler,
		date(2026, time.June, 1), date(2026, time.June, 3),
		enums.ReservationStatusCompleted, base.Add(-2*time.Hour))
	middle := createReservation(t, db, listing, traveler,
		date(2026, time.July, 1), date(2026, time.July, 3),
		enums.ReservationStatusConfirmed, base.Add(-time.Hour))
	newest := createReservation(t, db, listing, traveler,
		date(2026, time.August, 1), date(2026, time.August, 3),
		enums.ReservationStatusPending, base)

	list, err := repo.ListByTraveler(context.Background(), traveler, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, newest.ID, list[0].ID)
	assert.Equal(t, oldest.ID, list[2].ID)

	cursor := pagination.Cursor{CreatedAt: newest.CreatedAt, ID: newest.ID}.Encode()
	list, err = repo.ListByTraveler(context.Background(), traveler, pagination.Params{Limit: 10, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, middle.ID, list[0].ID)
	assert.Equal(t, oldest.ID, list[1].ID)
}

func TestRepositorySchedulerQueries(t *testing.T) {
	db := setupReservationsTestDB(t)
	repo := NewRepository(db)

	listing := newListing(t, db, "Scheduler House")
	traveler := uuid.New()
	now := time.Now().UTC()
	today := date(2026, time.June, 10)

	stalePending := createReservation(t, db, listing, traveler,
		date(2026, time.June, 8), date(2026, time.June, 12),
		enums.ReservationStatusPending, now)
	arriving := createReservation(t, db, listing, traveler,
		today, date(2026, time.June, 14),
		enums.ReservationStatusConfirmed, now)
	departed := createReservation(t, db, listing, traveler,
		date(2026, time.June, 1), date(2026, time.June, 5),
		enums.ReservationStatusInProgress, now)
	createReservation(t, db, listing, traveler,
		date(2026, time.June, 20), date(2026, time.June, 25),
		enums.ReservationStatusPending, now)

	pending, err := repo.FindPendingArrivedBefore(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, stalePending.ID, pending[0].ID)

	confirmed, err := repo.FindConfirmedArrivingOn(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, arriving.ID, confirmed[0].ID)

	inProgress, err := repo.FindInProgressDepartedBefore(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, inProgress, 1)
	assert.Equal(t, departed.ID, inProgress[0].ID)
}
