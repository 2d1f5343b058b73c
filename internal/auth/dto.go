package auth

import (
	"time"

	"github.com/angelmondragon/coupontracker-backend/internal/coupons"
)

// LoginRequest identifies an issuer by the name and email saved for them.
type LoginRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// LoginResponse carries the bearer token for a logged-in issuer.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	IssuerName  string    `json:"issuer_name"`
	IssuerEmail string    `json:"issuer_email"`
}

// Profile is the issuer's own view of their account.
type Profile struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone"`
	coupons.CouponCounts
}
