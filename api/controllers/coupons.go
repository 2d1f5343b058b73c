package controllers

import (
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/coupontracker-backend/api/responses"
	"github.com/angelmondragon/coupontracker-backend/api/validators"
	"github.com/angelmondragon/coupontracker-backend/internal/coupons"
	pkgerrors "github.com/angelmondragon/coupontracker-backend/pkg/errors"
	"github.com/angelmondragon/coupontracker-backend/pkg/logger"
	"github.com/angelmondragon/coupontracker-backend/pkg/pagination"
)

// teamID prefers the {teamId} path segment over the team_id query value.
func teamID(r *http.Request) string {
	if id := strings.TrimSpace(chi.URLParam(r, "teamId")); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("team_id"))
}

func filterParams(r *http.Request) coupons.ListParams {
	query := r.URL.Query()
	return coupons.ListParams{
		TeamID:       teamID(r),
		Search:       validators.SanitizeString(query.Get("search"), 200),
		CouponNames:  validators.ParseCSVList(r, "coupon_names"),
		StoreNames:   validators.ParseCSVList(r, "store_names"),
		IssuerEmails: validators.ParseCSVList(r, "issuer"),
	}
}

func listParams(r *http.Request) (coupons.ListParams, error) {
	params := filterParams(r)
	page, err := validators.ParseQueryInt(r, "page", pagination.FirstPage, pagination.FirstPage, math.MaxInt32)
	if err != nil {
		return params, err
	}
	size, err := validators.ParseQueryInt(r, "size", pagination.DefaultSize, 1, pagination.MaxSize)
	if err != nil {
		return params, err
	}
	params.Page = page
	params.PageSize = size
	return params, nil
}

func withTeam(r *http.Request, logg *logger.Logger) *http.Request {
	if logg == nil {
		return r
	}
	if id := teamID(r); id != "" {
		return r.WithContext(logg.WithTeam(r.Context(), id))
	}
	return r
}

// CouponsList returns one page of catalog coupons with reconciled issuers.
func CouponsList(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}
		r = withTeam(r, logg)

		params, err := listParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func CouponNames(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}
		r = withTeam(r, logg)

		names, err := svc.CouponNames(r.Context(), teamID(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"coupon_names": names})
	}
}

func StoreNames(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}
		r = withTeam(r, logg)

		stores, err := svc.StoreNames(r.Context(), teamID(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"stores": stores})
	}
}

// CouponStatistics aggregates the full filtered set. Pagination parameters are ignored.
func CouponStatistics(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}
		r = withTeam(r, logg)

		stats, err := svc.Statistics(r.Context(), filterParams(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

type assignIssuerRequest struct {
	IssuerEmail string `json:"issuer_email" validate:"required,email"`
	IssuerName  string `json:"issuer_name" validate:"omitempty,max=100"`
}

func CouponAssignIssuer(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		couponID, err := validators.ParsePathInt64(chi.URLParam(r, "couponId"), "couponId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body assignIssuerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.AssignIssuer(r.Context(), couponID, body.IssuerEmail, validators.SanitizeString(body.IssuerName, 100))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type registeredByRequest struct {
	RegisteredBy string `json:"registered_by" validate:"required"`
}

func CouponRegisteredBy(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		couponID, err := validators.ParsePathInt64(chi.URLParam(r, "couponId"), "couponId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body registeredByRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetRegisteredBy(r.Context(), couponID, body.RegisteredBy); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"coupon_id": couponID, "registered_by": strings.TrimSpace(body.RegisteredBy)})
	}
}
