package coupons

import (
	"github.com/shopspring/decimal"
)

const (
	StatusAvailable = "available"
	StatusExpired   = "expired"

	PaymentPaid   = "paid"
	PaymentUnpaid = "unpaid"

	UntitledCoupon = "untitled coupon"
	NoDiscountInfo = "no discount info"
	NoExpiry       = "-"
	UnknownStore   = "unknown"
	Unregistered   = "unregistered"
)

// Coupon is the normalized catalog view returned to clients.
type Coupon struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Discount       string          `json:"discount"`
	ExpirationDate string          `json:"expiration_date"`
	Store          string          `json:"store"`
	Status         string          `json:"status"`
	Code           string          `json:"code"`
	StandardPrice  decimal.Decimal `json:"standard_price"`
	RegisteredBy   string          `json:"registered_by"`
	PaymentStatus  string          `json:"payment_status"`
	Issuer         string          `json:"issuer"`

	// registrant identifies the catalog user behind RegisteredBy.
	registrant string
}

// ListParams is the filter set for coupon listings and statistics.
type ListParams struct {
	TeamID       string
	Search       string
	CouponNames  []string
	StoreNames   []string
	IssuerEmails []string
	Page         int
	PageSize     int
}

// Page is one window of a filtered listing.
type Page struct {
	Coupons    []Coupon `json:"coupons"`
	Total      int64    `json:"total"`
	Page       int      `json:"page"`
	Size       int      `json:"size"`
	TotalPages int      `json:"total_pages"`
}

// CouponStats counts one coupon name within a store.
type CouponStats struct {
	CouponName            string  `json:"coupon_name"`
	IssuedCount           int     `json:"issued_count"`
	RegisteredCount       int     `json:"registered_count"`
	PaymentCompletedCount int     `json:"payment_completed_count"`
	RegistrationRate      float64 `json:"registration_rate"`
	PaymentRate           float64 `json:"payment_rate"`
}

// Rollup sums coupon groups.
type Rollup struct {
	TotalIssued             int     `json:"total_issued"`
	TotalRegistered         int     `json:"total_registered"`
	TotalPaymentCompleted   int     `json:"total_payment_completed"`
	OverallRegistrationRate float64 `json:"overall_registration_rate"`
	OverallPaymentRate      float64 `json:"overall_payment_rate"`
}

type StoreStats struct {
	Store   string        `json:"store"`
	Coupons []CouponStats `json:"coupons"`
	Rollup
}

// Statistics is the aggregate over a filtered coupon set.
type Statistics struct {
	Stores []StoreStats `json:"statistics"`
	Totals Rollup       `json:"totals"`
}

// AssignResult reports the issuer a coupon now belongs to.
type AssignResult struct {
	CouponID    int64  `json:"coupon_id"`
	IssuerEmail string `json:"issuer_email"`
	IssuerName  string `json:"issuer_name"`
}

// CouponCounts summarizes the coupons held by one issuer.
type CouponCounts struct {
	Total   int `json:"total_coupons"`
	Active  int `json:"active_coupons"`
	Expired int `json:"expired_coupons"`
}
