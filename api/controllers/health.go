package controllers

import (
	"context"
	"net/http"

	"github.com/staynest/staynest-backend/api/responses"
	"github.com/staynest/staynest-backend/pkg/config"
	pkgerrors "github.com/staynest/staynest-backend/pkg/errors"
	"github.com/staynest/staynest-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Healthz reports liveness plus the state of the backing stores.
func Healthz(cfg *config.Config, logg *logger.Logger, db, cache pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-StayNest-Env", cfg.App.Env)

		checks := map[string]string{}
		healthy := true

		for name, p := range map[string]pinger{"database": db, "redis": cache} {
			if p == nil {
				checks[name] = "skipped"
				continue
			}
			if err := p.Ping(r.Context()); err != nil {
				checks[name] = "down"
				healthy = false
				if logg != nil {
					ctx := logg.WithField(r.Context(), "dependency", name)
					logg.Error(ctx, "health check failed", err)
				}
				continue
			}
			checks[name] = "up"
		}

		if !healthy {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(checks))
			return
		}

		responses.WriteSuccess(w, map[string]any{"status": "ok", "checks": checks})
	}
}
