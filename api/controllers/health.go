package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/coupontracker-backend/api/responses"
	"github.com/angelmondragon/coupontracker-backend/internal/issuers"
	"github.com/angelmondragon/coupontracker-backend/pkg/config"
	"github.com/angelmondragon/coupontracker-backend/pkg/logger"
)

const readyProbeTimeout = 2 * time.Second

// Pinger is any dependency that can answer a liveness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IssuerHealthReporter returns the issuer store's self-report.
type IssuerHealthReporter interface {
	Health(ctx context.Context) issuers.Health
}

// ReadyDeps are the dependencies checked by the readiness probe. Redis may be nil.
type ReadyDeps struct {
	Catalog Pinger
	Issuers IssuerHealthReporter
	Redis   Pinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CT-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady fails only when the catalog is unreachable. A degraded issuer store or a
// missing cache is reported but does not fail the probe.
func HealthReady(cfg *config.Config, deps ReadyDeps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CT-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readyProbeTimeout)
		defer cancel()

		status := http.StatusOK
		checks := map[string]any{}

		if deps.Catalog == nil {
			checks["catalog"] = "unconfigured"
			status = http.StatusServiceUnavailable
		} else if err := deps.Catalog.Ping(ctx); err != nil {
			if logg != nil {
				logg.Error(ctx, "health.catalog_unreachable", err)
			}
			checks["catalog"] = "error"
			status = http.StatusServiceUnavailable
		} else {
			checks["catalog"] = "ok"
		}

		if deps.Issuers != nil {
			checks["issuers"] = deps.Issuers.Health(ctx)
		}

		switch {
		case deps.Redis == nil:
			checks["redis"] = "disabled"
		case deps.Redis.Ping(ctx) != nil:
			checks["redis"] = "error"
		default:
			checks["redis"] = "ok"
		}

		overall := "ready"
		if status != http.StatusOK {
			overall = "not_ready"
		}
		responses.WriteSuccessStatus(w, status, map[string]any{"status": overall, "checks": checks})
	}
}
