package controllers

import (
	"context"
	"net/http"

	"github.com/staynest/staynest-backend/api/responses"
	"github.com/staynest/staynest-backend/internal/payout"
	pkgerrors "github.com/staynest/staynest-backend/pkg/errors"
	"github.com/staynest/staynest-backend/pkg/logger"
)

// Reconciler runs every scheduler pass a single time. Implemented by the
// cron service.
type Reconciler interface {
	RunOnce(ctx context.Context) error
}

// AdminReconcile triggers a synchronous reconciliation sweep: expire stale
// payments, roll reservations forward, cancel what never confirmed.
func AdminReconcile(reconciler Reconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reconciler == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciler unavailable"))
			return
		}

		if err := reconciler.RunOnce(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconciliation sweep"))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "reconciled"})
	}
}

// AdminExecuteInstruction marks a pending ledger instruction as executed,
// the money-moved acknowledgement from the operations side.
func AdminExecuteInstruction(svc payout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "instructionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		instruction, err := svc.MarkInstructionExecuted(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, instruction)
	}
}
