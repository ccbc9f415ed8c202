package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/staynest/staynest-backend/pkg/db/models"
	"github.com/staynest/staynest-backend/pkg/enums"
)

// Repository manages payment rows. Reservations are read here only to
// validate and price a new payment.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	Save(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	ExistsPendingByReservation(ctx context.Context, reservationID uuid.UUID) (bool, error)
	ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.Payment, error)
	FindStaleBefore(ctx context.Context, cutoff time.Time) ([]models.Payment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) Save(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&reservation).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) ExistsPendingByReservation(ctx context.Context, reservationID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("reservation_id = ?", reservationID).
		Where("status = ?", enums.PaymentStatusPending).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		Order("created_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// FindStaleBefore returns open payments whose expiry window closed before the
// cutoff. Feeds the expiry sweep.
func (r *repository) FindStaleBefore(ctx context.Context, cutoff time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("status IN ?", []enums.PaymentStatus{
			enums.PaymentStatusPending,
			enums.PaymentStatusProcessing,
		}).
		Where("expires_at < ?", cutoff).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
