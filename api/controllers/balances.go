package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/staynest/staynest-backend/api/responses"
	"github.com/staynest/staynest-backend/internal/payout"
	"github.com/staynest/staynest-backend/pkg/enums"
	pkgerrors "github.com/staynest/staynest-backend/pkg/errors"
	"github.com/staynest/staynest-backend/pkg/logger"
)

// PlatformBalance returns the commission position of the platform account.
func PlatformBalance(svc payout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		balance, err := svc.Balance(r.Context(), enums.AccountOwnerPlatform, uuid.Nil)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}

// OwnerBalance derives a traveler's or host's position across their active
// ledger accounts.
func OwnerBalance(svc payout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawOwnerType := strings.TrimSpace(chi.URLParam(r, "ownerType"))
		ownerType, err := enums.ParseAccountOwnerType(rawOwnerType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid owner type"))
			return
		}
		if ownerType == enums.AccountOwnerPlatform {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "use the platform balance endpoint"))
			return
		}

		ownerID, err := parseUUIDParam(r, "ownerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Balance(r.Context(), ownerType, ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}

// ReservationInstructions lists the ledger instructions generated for a
// reservation's payments and refunds.
func ReservationInstructions(svc payout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reservationID, err := parseUUIDParam(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		instructions, err := svc.ListByReservation(r.Context(), reservationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, instructions)
	}
}
