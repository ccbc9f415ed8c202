package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/staynest/staynest-backend/api/responses"
	"github.com/staynest/staynest-backend/api/validators"
	"github.com/staynest/staynest-backend/internal/reservations"
	"github.com/staynest/staynest-backend/pkg/db/models"
	"github.com/staynest/staynest-backend/pkg/enums"
	pkgerrors "github.com/staynest/staynest-backend/pkg/errors"
	"github.com/staynest/staynest-backend/pkg/logger"
	"github.com/staynest/staynest-backend/pkg/pagination"
)

const dateLayout = "2006-01-02"

type createReservationRequest struct {
	ListingID   string  `json:"listingId" validate:"required,uuid"`
	TravelerID  string  `json:"travelerId" validate:"required,uuid"`
	Arrival     string  `json:"arrival" validate:"required,datetime=2006-01-02"`
	Departure   string  `json:"departure" validate:"required,datetime=2006-01-02"`
	Guests      int     `json:"guests" validate:"required,min=1"`
	PaymentMode string  `json:"paymentMode" validate:"omitempty"`
	CleaningFee *string `json:"cleaningFee"`
	ServiceFee  *string `json:"serviceFee"`
	CityFee     *string `json:"cityFee"`
}

type cancelReservationRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// CreateReservation books a listing for a date range. Pricing is derived
// from the listing, never from the request.
func CreateReservation(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createReservationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := buildCreateInput(req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservation, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, reservation)
	}
}

func buildCreateInput(req createReservationRequest) (reservations.CreateInput, error) {
	listingID, _ := uuid.Parse(req.ListingID)
	travelerID, _ := uuid.Parse(req.TravelerID)

	arrival, err := time.Parse(dateLayout, req.Arrival)
	if err != nil {
		return reservations.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid arrival date")
	}
	departure, err := time.Parse(dateLayout, req.Departure)
	if err != nil {
		return reservations.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid departure date")
	}

	input := reservations.CreateInput{
		ListingID:  listingID,
		TravelerID: travelerID,
		Arrival:    arrival,
		Departure:  departure,
		Guests:     req.Guests,
	}

	if req.PaymentMode != "" {
		mode, err := enums.ParsePaymentMode(req.PaymentMode)
		if err != nil {
			return reservations.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment mode")
		}
		input.PaymentMode = mode
	}

	for _, fee := range []struct {
		raw  *string
		dest **decimal.Decimal
		name string
	}{
		{req.CleaningFee, &input.CleaningFee, "cleaningFee"},
		{req.ServiceFee, &input.ServiceFee, "serviceFee"},
		{req.CityFee, &input.CityFee, "cityFee"},
	} {
		if fee.raw == nil {
			continue
		}
		value, err := decimal.NewFromString(*fee.raw)
		if err != nil {
			return reservations.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+fee.name).
				WithDetails(map[string]any{"field": fee.name})
		}
		if value.IsNegative() {
			return reservations.CreateInput{}, pkgerrors.New(pkgerrors.CodeValidation, fee.name+" cannot be negative")
		}
		*fee.dest = &value
	}

	return input, nil
}

func ReservationDetail(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservation, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reservation)
	}
}

func ConfirmReservation(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return reservationTransition(svc.Confirm, logg)
}

func StartReservation(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return reservationTransition(svc.Start, logg)
}

func CompleteReservation(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return reservationTransition(svc.Complete, logg)
}

// CancelReservation is the self-service path: the arrival date must still be
// in the future. Forced cancellation is reserved for the scheduler.
func CancelReservation(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cancelReservationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservation, err := svc.Cancel(r.Context(), reservations.CancelInput{
			ReservationID: id,
			Reason:        req.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reservation)
	}
}

// ListingBookedPeriods exposes the availability calendar of a listing as
// half-open date ranges.
func ListingBookedPeriods(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listingID, err := parseUUIDParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		periods, err := svc.BookedPeriods(r.Context(), listingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, periods)
	}
}

// ListReservations pages a traveler's reservations newest first.
func ListReservations(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawTraveler := strings.TrimSpace(r.URL.Query().Get("travelerId"))
		if rawTraveler == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "travelerId is required"))
			return
		}
		travelerID, err := uuid.Parse(rawTraveler)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid travelerId"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListByTraveler(r.Context(), travelerID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func reservationTransition(
	transition func(ctx context.Context, id uuid.UUID) (*models.Reservation, error),
	logg *logger.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservation, err := transition(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reservation)
	}
}
