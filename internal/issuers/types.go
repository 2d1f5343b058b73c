package issuers

import (
	"strings"
	"time"
)

const (
	KindPersistent = "persistent"
	KindMemory     = "memory"

	HealthOK       = "ok"
	HealthDegraded = "degraded"
	HealthError    = "error"
)

// Issuer is an employee that coupons can be assigned to. Email is the key.
type Issuer struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     *string   `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IssuerSummary adds the number of assigned coupons to an issuer.
type IssuerSummary struct {
	Issuer
	CouponCount int64 `json:"coupon_count"`
}

// Assignment links one coupon id to its current issuer.
type Assignment struct {
	CouponID    int64     `json:"coupon_id"`
	IssuerEmail string    `json:"issuer_email"`
	AssignedAt  time.Time `json:"assigned_at"`
}

// IssuerInput carries the fields accepted when saving an issuer.
type IssuerInput struct {
	Name  string
	Email string
	Phone *string
}

// Health is the store's self-report.
type Health struct {
	Status          string `json:"status"`
	Backend         string `json:"backend"`
	Degraded        bool   `json:"degraded"`
	IssuerCount     int64  `json:"issuer_count"`
	AssignmentCount int64  `json:"assignment_count"`
	Error           string `json:"error,omitempty"`
}

// NormalizeEmail trims and lower-cases an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizePhone(phone *string) *string {
	if phone == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*phone)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

type clock func() time.Time

func utcNow() time.Time {
	return time.Now().UTC()
}
