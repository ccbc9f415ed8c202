package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/staynest/staynest-backend/api/controllers"
	"github.com/staynest/staynest-backend/api/middleware"
	"github.com/staynest/staynest-backend/internal/payments"
	"github.com/staynest/staynest-backend/internal/payout"
	"github.com/staynest/staynest-backend/internal/reservations"
	"github.com/staynest/staynest-backend/pkg/config"
	"github.com/staynest/staynest-backend/pkg/db"
	"github.com/staynest/staynest-backend/pkg/logger"
	"github.com/staynest/staynest-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	reservationsSvc reservations.Service,
	paymentsSvc payments.Service,
	payoutSvc payout.Service,
	reconciler controllers.Reconciler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Get("/healthz", controllers.Healthz(cfg, logg, dbP, redisP))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/reservations", func(r chi.Router) {
			r.Post("/", controllers.CreateReservation(reservationsSvc, logg))
			r.Get("/", controllers.ListReservations(reservationsSvc, logg))
			r.Route("/{reservationId}", func(r chi.Router) {
				r.Get("/", controllers.ReservationDetail(reservationsSvc, logg))
				r.Post("/confirm", controllers.ConfirmReservation(reservationsSvc, logg))
				r.Post("/cancel", controllers.CancelReservation(reservationsSvc, logg))
				r.Post("/start", controllers.StartReservation(reservationsSvc, logg))
				r.Post("/complete", controllers.CompleteReservation(reservationsSvc, logg))
				r.Get("/payments", controllers.ReservationPayments(paymentsSvc, logg))
				r.Get("/instructions", controllers.ReservationInstructions(payoutSvc, logg))
			})
		})

		r.Get("/listings/{listingId}/booked-periods", controllers.ListingBookedPeriods(reservationsSvc, logg))

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", controllers.CreatePayment(paymentsSvc, logg))
			r.Route("/{paymentId}", func(r chi.Router) {
				r.Get("/", controllers.PaymentDetail(paymentsSvc, logg))
				r.Post("/process", controllers.ProcessPayment(paymentsSvc, logg))
				r.Post("/confirm", controllers.ConfirmPayment(paymentsSvc, logg))
				r.Post("/fail", controllers.FailPayment(paymentsSvc, logg))
				r.Post("/cancel", controllers.CancelPayment(paymentsSvc, logg))
				r.Post("/refund", controllers.RefundPayment(paymentsSvc, logg))
			})
		})

		r.Route("/balances", func(r chi.Router) {
			r.Get("/platform", controllers.PlatformBalance(payoutSvc, logg))
			r.Get("/{ownerType}/{ownerId}", controllers.OwnerBalance(payoutSvc, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/reconcile", controllers.AdminReconcile(reconciler, logg))
			r.Post("/instructions/{instructionId}/execute", controllers.AdminExecuteInstruction(payoutSvc, logg))
		})
	})

	return r
}
