package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/staynest/staynest-backend/api/responses"
	"github.com/staynest/staynest-backend/api/validators"
	"github.com/staynest/staynest-backend/internal/payments"
	"github.com/staynest/staynest-backend/pkg/enums"
	pkgerrors "github.com/staynest/staynest-backend/pkg/errors"
	"github.com/staynest/staynest-backend/pkg/logger"
)

type createPaymentRequest struct {
	ReservationID string  `json:"reservationId" validate:"required,uuid"`
	Type          string  `json:"type" validate:"omitempty"`
	Mode          string  `json:"mode" validate:"omitempty"`
	Amount        *string `json:"amount"`
	Description   string  `json:"description" validate:"omitempty,max=500"`
}

type confirmPaymentRequest struct {
	TransactionRef string  `json:"transactionRef" validate:"required,min=1,max=255"`
	ExternalRef    *string `json:"externalRef" validate:"omitempty,max=255"`
}

type failPaymentRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

type cancelPaymentRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

type refundPaymentRequest struct {
	Reason    string  `json:"reason" validate:"required,min=3,max=500"`
	RefundRef *string `json:"refundRef" validate:"omitempty,max=255"`
}

// CreatePayment opens a payment window against a confirmed reservation.
func CreatePayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservationID, err := uuid.Parse(req.ReservationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reservationId"))
			return
		}

		input := payments.CreateInput{
			ReservationID: reservationID,
			Description:   req.Description,
		}

		if req.Type != "" {
			paymentType, err := enums.ParsePaymentType(req.Type)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment type"))
				return
			}
			input.Type = paymentType
		}
		if req.Mode != "" {
			mode, err := enums.ParsePaymentMode(req.Mode)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment mode"))
				return
			}
			input.Mode = mode
		}
		if req.Amount != nil {
			amount, err := decimal.NewFromString(*req.Amount)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
				return
			}
			input.Amount = &amount
		}

		payment, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payment)
	}
}

func PaymentDetail(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

// ProcessPayment flags that the processor has picked up the charge.
func ProcessPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.MarkProcessing(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

// ConfirmPayment settles a payment and generates its ledger split in the
// same transaction.
func ConfirmPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req confirmPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.Confirm(r.Context(), payments.ConfirmInput{
			PaymentID:      id,
			TransactionRef: req.TransactionRef,
			ExternalRef:    req.ExternalRef,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

func FailPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req failPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.Fail(r.Context(), id, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

func CancelPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cancelPaymentRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		payment, err := svc.Cancel(r.Context(), id, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

// RefundPayment flips a single paid payment outside the cancellation flow.
func RefundPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req refundPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.Refund(r.Context(), payments.RefundInput{
			PaymentID: id,
			Reason:    req.Reason,
			RefundRef: req.RefundRef,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

// ReservationPayments lists every payment attempt recorded against a
// reservation, newest first.
func ReservationPayments(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reservationID, err := parseUUIDParam(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListByReservation(r.Context(), reservationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
