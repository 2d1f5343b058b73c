package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// IssuerTokenPayload captures the data available when minting an issuer JWT.
type IssuerTokenPayload struct {
	Email string
	Name  string
	JTI   string
}

// IssuerClaims represents the typed JWT handed to a logged-in issuer.
type IssuerClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}
