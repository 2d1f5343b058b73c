package middleware

import "context"

type contextKey string

const (
	ctxIssuerEmail contextKey = "issuer_email"
	ctxIssuerName  contextKey = "issuer_name"
)

func IssuerEmailFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxIssuerEmail).(string); ok {
		return v
	}
	return ""
}

func IssuerNameFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxIssuerName).(string); ok {
		return v
	}
	return ""
}

// WithIssuer injects the authenticated issuer into the context.
func WithIssuer(ctx context.Context, email, name string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxIssuerEmail, email)
	return context.WithValue(ctx, ctxIssuerName, name)
}
