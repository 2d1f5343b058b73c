package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/coupontracker-backend/api/responses"
	pkgAuth "github.com/angelmondragon/coupontracker-backend/pkg/auth"
	"github.com/angelmondragon/coupontracker-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/coupontracker-backend/pkg/errors"
	"github.com/angelmondragon/coupontracker-backend/pkg/logger"
)

// IssuerAuth validates an issuer bearer token and seeds the request context with the issuer.
func IssuerAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseIssuerToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if claims.Email == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "token has no issuer"))
				return
			}

			ctx := WithIssuer(r.Context(), claims.Email, claims.Name)
			if logg != nil {
				ctx = logg.WithIssuerEmail(ctx, claims.Email)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
