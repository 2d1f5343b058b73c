package controllers

import (
	"net/http"

	"github.com/angelmondragon/coupontracker-backend/api/middleware"
	"github.com/angelmondragon/coupontracker-backend/api/responses"
	"github.com/angelmondragon/coupontracker-backend/api/validators"
	"github.com/angelmondragon/coupontracker-backend/internal/auth"
	"github.com/angelmondragon/coupontracker-backend/internal/coupons"
	pkgerrors "github.com/angelmondragon/coupontracker-backend/pkg/errors"
	"github.com/angelmondragon/coupontracker-backend/pkg/logger"
)

// IssuerLogin exchanges an issuer's name and email for a bearer token.
func IssuerLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("X-CT-Token", result.AccessToken)
		responses.WriteSuccess(w, result)
	}
}

func IssuerProfile(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		email := middleware.IssuerEmailFromContext(r.Context())
		if email == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing issuer identity"))
			return
		}

		profile, err := svc.Profile(r.Context(), email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

// IssuerOwnCoupons lists the coupons assigned to the authenticated issuer.
func IssuerOwnCoupons(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}
		email := middleware.IssuerEmailFromContext(r.Context())
		if email == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing issuer identity"))
			return
		}

		params, err := listParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.TeamID = ""
		params.IssuerEmails = []string{email}

		page, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
