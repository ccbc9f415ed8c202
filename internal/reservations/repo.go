package reservations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/staynest/staynest-backend/pkg/db/models"
	"github.com/staynest/staynest-backend/pkg/enums"
	"github.com/staynest/staynest-backend/pkg/pagination"
)

// Repository manages persistence for reservations and the listing rows they
// reference. Listings are read-only collaborator data here.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, reservation *models.Reservation) error
	Save(ctx context.Context, reservation *models.Reservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	FindListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	FindOverlapping(ctx context.Context, listingID uuid.UUID, arrival, departure time.Time) ([]models.Reservation, error)
	ListBookedPeriods(ctx context.Context, listingID uuid.UUID) ([]models.Reservation, error)
	ListByTraveler(ctx context.Context, travelerID uuid.UUID, params pagination.Params) ([]models.Reservation, error)
	FindPendingArrivedBefore(ctx context.Context, cutoff time.Time) ([]models.Reservation, error)
	FindConfirmedArrivingOn(ctx context.Context, day time.Time) ([]models.Reservation, error)
	FindInProgressDepartedBefore(ctx context.Context, cutoff time.Time) ([]models.Reservation, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a reservations repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) Save(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Save(reservation).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
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

// FindOverlapping returns non-cancelled reservations on the listing whose
// [arrival, departure) interval intersects the given one.
func (r *repository) FindOverlapping(ctx context.Context, listingID uuid.UUID, arrival, departure time.Time) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Where("status <> ?", enums.ReservationStatusCancelled).
		Where("arrival_date < ? AND departure_date > ?", departure, arrival).
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *repository) ListBookedPeriods(ctx context.Context, listingID uuid.UUID) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Where("status IN ?", []enums.ReservationStatus{
			enums.ReservationStatusConfirmed,
			enums.ReservationStatusInProgress,
		}).
		Order("arrival_date ASC").
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *repository) ListByTraveler(ctx context.Context, travelerID uuid.UUID, params pagination.Params) ([]models.Reservation, error) {
	query := r.db.WithContext(ctx).
		Where("traveler_id = ?", travelerID).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var reservations []models.Reservation
	if err := query.Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *repository) FindPendingArrivedBefore(ctx context.Context, cutoff time.Time) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.ReservationStatusPending).
		Where("arrival_date < ?", cutoff).
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *repository) FindConfirmedArrivingOn(ctx context.Context, day time.Time) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.ReservationStatusConfirmed).
		Where("arrival_date <= ?", day).
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *repository) FindInProgressDepartedBefore(ctx context.Context, cutoff time.Time) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.ReservationStatusInProgress).
		Where("departure_date < ?", cutoff).
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}
