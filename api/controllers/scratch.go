package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/coupontracker-backend/api/responses"
	"github.com/angelmondragon/coupontracker-backend/api/validators"
	"github.com/angelmondragon/coupontracker-backend/internal/coupons"
	pkgerrors "github.com/angelmondragon/coupontracker-backend/pkg/errors"
	"github.com/angelmondragon/coupontracker-backend/pkg/logger"
)

type scratchCouponRequest struct {
	Name           string `json:"name" validate:"required,max=200"`
	Discount       string `json:"discount" validate:"required"`
	ExpirationDate string `json:"expiration_date" validate:"required"`
	Store          string `json:"store" validate:"required"`
	Status         string `json:"status" validate:"required"`
	Code           string `json:"code"`
	StandardPrice  string `json:"standard_price"`
	RegisteredBy   string `json:"registered_by"`
	AdditionalInfo string `json:"additional_info"`
	PaymentStatus  string `json:"payment_status" validate:"omitempty,oneof=paid unpaid"`
}

func (req scratchCouponRequest) toCoupon() coupons.ScratchCoupon {
	c := coupons.ScratchCoupon{
		Name:           validators.SanitizeString(req.Name, 200),
		Discount:       req.Discount,
		ExpirationDate: req.ExpirationDate,
		Store:          req.Store,
		Status:         req.Status,
		Code:           req.Code,
		StandardPrice:  req.StandardPrice,
		RegisteredBy:   req.RegisteredBy,
		AdditionalInfo: req.AdditionalInfo,
		PaymentStatus:  req.PaymentStatus,
	}
	if c.PaymentStatus == "" {
		c.PaymentStatus = coupons.PaymentUnpaid
	}
	return c
}

func scratchUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scratch store unavailable"))
}

func ScratchCreate(store *coupons.ScratchStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			scratchUnavailable(w, r, logg)
			return
		}
		var body scratchCouponRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		created := store.Create(body.toCoupon())
		if logg != nil {
			logg.Info(logg.WithField(r.Context(), "coupon_id", created.ID), "scratch.coupon_created")
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

func ScratchUpdate(store *coupons.ScratchStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			scratchUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParsePathInt64(chi.URLParam(r, "couponId"), "couponId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body scratchCouponRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := store.Update(id, body.toCoupon())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

func ScratchDelete(store *coupons.ScratchStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			scratchUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParsePathInt64(chi.URLParam(r, "couponId"), "couponId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		removed, err := store.Delete(id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"deleted": true, "id": removed.ID})
	}
}

func ScratchUse(store *coupons.ScratchStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			scratchUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParsePathInt64(chi.URLParam(r, "couponId"), "couponId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		used, err := store.Use(id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, used)
	}
}
