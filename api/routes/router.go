package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/coupontracker-backend/api/controllers"
	"github.com/angelmondragon/coupontracker-backend/api/middleware"
	"github.com/angelmondragon/coupontracker-backend/internal/auth"
	"github.com/angelmondragon/coupontracker-backend/internal/coupons"
	"github.com/angelmondragon/coupontracker-backend/internal/issuers"
	"github.com/angelmondragon/coupontracker-backend/pkg/config"
	"github.com/angelmondragon/coupontracker-backend/pkg/logger"
	"github.com/angelmondragon/coupontracker-backend/pkg/metrics"
)

// Deps carries everything the router hands to controllers. RateLimiter and
// Redis must be left as untyped nil when the cache is disabled.
type Deps struct {
	Ready       controllers.ReadyDeps
	Coupons     coupons.Service
	Scratch     *coupons.ScratchStore
	Issuers     issuers.Service
	Auth        auth.Service
	RateLimiter middleware.RateLimiterStore
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"issuer_login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.Ready, logg))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/coupons", controllers.CouponsList(deps.Coupons, logg))
		r.Get("/coupon-names", controllers.CouponNames(deps.Coupons, logg))
		r.Get("/stores", controllers.StoreNames(deps.Coupons, logg))
		r.Get("/statistics", controllers.CouponStatistics(deps.Coupons, logg))

		r.Route("/teams/{teamId}", func(r chi.Router) {
			r.Get("/coupons", controllers.CouponsList(deps.Coupons, logg))
			r.Get("/coupon-names", controllers.CouponNames(deps.Coupons, logg))
			r.Get("/stores", controllers.StoreNames(deps.Coupons, logg))
			r.Get("/statistics", controllers.CouponStatistics(deps.Coupons, logg))
		})

		r.Post("/coupons", controllers.ScratchCreate(deps.Scratch, logg))
		r.Route("/coupons/{couponId}", func(r chi.Router) {
			r.Put("/", controllers.ScratchUpdate(deps.Scratch, logg))
			r.Delete("/", controllers.ScratchDelete(deps.Scratch, logg))
			r.Patch("/use", controllers.ScratchUse(deps.Scratch, logg))
			r.Patch("/assign-issuer", controllers.CouponAssignIssuer(deps.Coupons, logg))
			r.Patch("/registered-by", controllers.CouponRegisteredBy(deps.Coupons, logg))
		})

		r.Route("/issuers", func(r chi.Router) {
			r.Get("/", controllers.IssuersList(deps.Issuers, logg))
			r.Post("/", controllers.IssuerCreate(deps.Issuers, logg))
			r.Get("/health", controllers.IssuerStoreHealth(deps.Issuers, logg))
			r.Route("/{email}", func(r chi.Router) {
				r.Get("/", controllers.IssuerGet(deps.Issuers, logg))
				r.Put("/", controllers.IssuerUpdate(deps.Issuers, logg))
				r.Delete("/", controllers.IssuerDelete(deps.Issuers, logg))
				r.Get("/coupons", controllers.IssuerAssignedCoupons(deps.Issuers, logg))
				r.Delete("/coupons/{couponId}", controllers.IssuerUnassign(deps.Issuers, logg))
			})
		})

		r.Route("/issuer", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, deps.RateLimiter, logg)).Post("/login", controllers.IssuerLogin(deps.Auth, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.IssuerAuth(cfg.JWT, logg))
				r.Get("/profile", controllers.IssuerProfile(deps.Auth, logg))
				r.Get("/coupons", controllers.IssuerOwnCoupons(deps.Coupons, logg))
			})
		})
	})

	return r
}
