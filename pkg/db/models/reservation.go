package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/staynest/staynest-backend/pkg/enums"
)

// Reservation is one booking of a listing for a half-open date range
// [arrival, departure). Rows are never deleted; cancelled reservations stay
// for audit.
type Reservation struct {
	ID                 uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ListingID          uuid.UUID               `gorm:"column:listing_id;type:uuid;not null;index"`
	TravelerID         uuid.UUID               `gorm:"column:traveler_id;type:uuid;not null;index"`
	ArrivalDate        time.Time               `gorm:"column:arrival_date;type:date;not null"`
	DepartureDate      time.Time               `gorm:"column:departure_date;type:date;not null"`
	Guests             int                     `gorm:"column:guests;not null;default:1"`
	Nights             int                     `gorm:"column:nights;not null"`
	NightlyPrice       decimal.Decimal         `gorm:"column:nightly_price;type:numeric(12,2);not null"`
	BasePrice          decimal.Decimal         `gorm:"column:base_price;type:numeric(12,2);not null"`
	CleaningFee        *decimal.Decimal        `gorm:"column:cleaning_fee;type:numeric(12,2)"`
	ServiceFee         *decimal.Decimal        `gorm:"column:service_fee;type:numeric(12,2)"`
	CityFee            *decimal.Decimal        `gorm:"column:city_fee;type:numeric(12,2)"`
	TotalAmount        decimal.Decimal         `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Status             enums.ReservationStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentMode        enums.PaymentMode       `gorm:"column:payment_mode;type:text;not null;default:'card'"`
	CancellationReason *string                 `gorm:"column:cancellation_reason"`
	ConfirmedAt        *time.Time              `gorm:"column:confirmed_at"`
	CancelledAt        *time.Time              `gorm:"column:cancelled_at"`
	CreatedAt          time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// Recompute refreshes the derived pricing fields from the current dates,
// nightly price, and fees. Services call it on every mutation, not just on
// create, so drifted rows heal on their next write.
func (r *Reservation) Recompute() {
	r.Nights = daysBetween(r.ArrivalDate, r.DepartureDate)
	r.BasePrice = r.NightlyPrice.Mul(decimal.NewFromInt(int64(r.Nights)))
	total := r.BasePrice
	for _, fee := range []*decimal.Decimal{r.CleaningFee, r.ServiceFee, r.CityFee} {
		if fee != nil {
			total = total.Add(*fee)
		}
	}
	r.TotalAmount = total
}

// ConflictsWith reports whether [arrival, departure) overlaps the other
// half-open interval. Back-to-back stays (departure == other arrival) do not
// conflict.
func (r *Reservation) ConflictsWith(otherArrival, otherDeparture time.Time) bool {
	return !(!r.DepartureDate.After(otherArrival) || !otherDeparture.After(r.ArrivalDate))
}

func daysBetween(from, to time.Time) int {
	fromDay := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	toDay := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(toDay.Sub(fromDay) / (24 * time.Hour))
}
