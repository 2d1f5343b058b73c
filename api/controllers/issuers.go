package controllers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/coupontracker-backend/api/responses"
	"github.com/angelmondragon/coupontracker-backend/api/validators"
	"github.com/angelmondragon/coupontracker-backend/internal/issuers"
	pkgerrors "github.com/angelmondragon/coupontracker-backend/pkg/errors"
	"github.com/angelmondragon/coupontracker-backend/pkg/logger"
)

type issuerRequest struct {
	Name  string  `json:"name" validate:"required,max=100"`
	Email string  `json:"email" validate:"required,email"`
	Phone *string `json:"phone" validate:"omitempty,max=32"`
}

func issuerUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "issuer service unavailable"))
}

// emailParam reads the {email} segment; chi leaves it percent-encoded.
func emailParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "email")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid issuer email")
	}
	email := issuers.NormalizeEmail(decoded)
	if email == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "issuer email is required")
	}
	return email, nil
}

func IssuersList(svc issuers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			issuerUnavailable(w, r, logg)
			return
		}
		responses.WriteSuccess(w, map[string]any{"issuers": svc.List(r.Context())})
	}
}

func IssuerCreate(svc issuers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			issuerUnavailable(w, r, logg)
			return
		}
		var body issuerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		issuer, err := svc.Create(r.Context(), issuers.CreateInput{
			Name:  validators.SanitizeString(body.Name, 100),
			Email: body.Email,
			Phone: body.Phone,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, issuer)
	}
}

func IssuerGet(svc issuers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			issuerUnavailable(w, r, logg)
			return
		}
		email, err := emailParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		issuer, err := svc.Get(r.Context(), email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, issuer)
	}
}

func IssuerUpdate(svc issuers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			issuerUnavailable(w, r, logg)
			return
		}
		email, err := emailParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body issuerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		issuer, err := svc.Update(r.Context(), email, issuers.UpdateInput{
			Name:  validators.SanitizeString(body.Name, 100),
			Email: body.Email,
			Phone: body.Phone,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, issuer)
	}
}

func IssuerDelete(svc issuers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			issuerUnavailable(w, r, logg)
			return
		}
		email, err := emailParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), email); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"deleted": true, "email": email})
	}
}

func IssuerAssignedCoupons(svc issuers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			issuerUnavailable(w, r, logg)
			return
		}
		email, err := emailParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ids, err := svc.AssignedCoupons(r.Context(), email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"email": email, "coupon_ids": ids})
	}
}

func IssuerUnassign(svc issuers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			issuerUnavailable(w, r, logg)
			return
		}
		email, err := emailParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		couponID, err := validators.ParsePathInt64(strings.TrimSpace(chi.URLParam(r, "couponId")), "couponId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Unassign(r.Context(), email, couponID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"email": email, "coupon_id": couponID, "unassigned": true})
	}
}

// IssuerStoreHealth reports the store's own view. A degraded store still answers 200.
func IssuerStoreHealth(svc issuers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			issuerUnavailable(w, r, logg)
			return
		}
		health := svc.Health(r.Context())
		if health.Status == issuers.HealthError {
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, health)
			return
		}
		responses.WriteSuccess(w, health)
	}
}
