package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/coupontracker-backend/internal/coupons"
	"github.com/angelmondragon/coupontracker-backend/internal/issuers"
	pkgAuth "github.com/angelmondragon/coupontracker-backend/pkg/auth"
	"github.com/angelmondragon/coupontracker-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/coupontracker-backend/pkg/errors"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "coupontracker", ExpirationMinutes: 30}

type stubDirectory struct {
	issuers map[string]*issuers.Issuer
	err     error
}

func (s stubDirectory) FindIssuer(_ context.Context, email string) (*issuers.Issuer, error) {
	if s.err != nil {
		return nil, s.err
	}
	if iss, ok := s.issuers[email]; ok {
		return iss, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "issuer not found")
}

type stubCounter struct {
	counts coupons.CouponCounts
	err    error
}

func (s stubCounter) IssuerCouponCounts(context.Context, string) (*coupons.CouponCounts, error) {
	if s.err != nil {
		return nil, s.err
	}
	c := s.counts
	return &c, nil
}

func buildTestService(t *testing.T, dir stubDirectory, counter stubCounter) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Issuers: dir, Coupons: counter, JWTConfig: testJWT})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func kim() stubDirectory {
	phone := "010-1234-5678"
	return stubDirectory{issuers: map[string]*issuers.Issuer{
		"kim@example.com": {Email: "kim@example.com", Name: "Kim", Phone: &phone},
	}}
}

func TestServiceLoginMintsIssuerToken(t *testing.T) {
	svc := buildTestService(t, kim(), stubCounter{})

	resp, err := svc.Login(context.Background(), LoginRequest{Name: " Kim ", Email: "KIM@example.com"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.TokenType != "bearer" {
		t.Fatalf("expected bearer token type, got %q", resp.TokenType)
	}
	if resp.IssuerName != "Kim" || resp.IssuerEmail != "kim@example.com" {
		t.Fatalf("unexpected issuer in response: %+v", resp)
	}

	claims, err := pkgAuth.ParseIssuerToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Email != "kim@example.com" {
		t.Fatalf("expected email claim, got %q", claims.Email)
	}
	if claims.ID == "" {
		t.Fatal("expected jti claim")
	}
	if !resp.ExpiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %s", resp.ExpiresAt)
	}
}

func TestServiceLoginRejectsMismatches(t *testing.T) {
	svc := buildTestService(t, kim(), stubCounter{})

	cases := map[string]LoginRequest{
		"wrong name":    {Name: "Lee", Email: "kim@example.com"},
		"unknown email": {Name: "Kim", Email: "nobody@example.com"},
		"blank":         {},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), req)
			if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
				t.Fatalf("expected unauthorized, got %v", err)
			}
		})
	}
}

func TestServiceLoginSurfacesStoreFailures(t *testing.T) {
	dir := stubDirectory{err: pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("down"), "load issuer")}
	svc := buildTestService(t, dir, stubCounter{})

	_, err := svc.Login(context.Background(), LoginRequest{Name: "Kim", Email: "kim@example.com"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestServiceProfile(t *testing.T) {
	svc := buildTestService(t, kim(), stubCounter{counts: coupons.CouponCounts{Total: 3, Active: 2, Expired: 1}})

	profile, err := svc.Profile(context.Background(), "kim@example.com")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.Total != 3 || profile.Active != 2 || profile.Expired != 1 {
		t.Fatalf("unexpected counts: %+v", profile.CouponCounts)
	}
	if profile.Phone == nil || *profile.Phone != "010-1234-5678" {
		t.Fatalf("expected phone, got %v", profile.Phone)
	}

	if _, err := svc.Profile(context.Background(), "gone@example.com"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{Coupons: stubCounter{}}); err == nil {
		t.Fatal("expected error without issuer directory")
	}
	if _, err := NewService(ServiceParams{Issuers: kim()}); err == nil {
		t.Fatal("expected error without coupon counter")
	}
}
