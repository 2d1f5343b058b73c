package auth

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/coupontracker-backend/internal/coupons"
	"github.com/angelmondragon/coupontracker-backend/internal/issuers"
	pkgAuth "github.com/angelmondragon/coupontracker-backend/pkg/auth"
	"github.com/angelmondragon/coupontracker-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/coupontracker-backend/pkg/errors"
	"github.com/google/uuid"
)

const (
	invalidCredentialsMessage = "invalid credentials"
	tokenTypeBearer           = "bearer"
)

// Service defines the behavior needed by the issuer auth controllers.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Profile(ctx context.Context, email string) (*Profile, error)
}

type issuerDirectory interface {
	FindIssuer(ctx context.Context, email string) (*issuers.Issuer, error)
}

type couponCounter interface {
	IssuerCouponCounts(ctx context.Context, email string) (*coupons.CouponCounts, error)
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Issuers   issuerDirectory
	Coupons   couponCounter
	JWTConfig config.JWTConfig
	Now       func() time.Time
}

type service struct {
	issuers issuerDirectory
	coupons couponCounter
	jwtCfg  config.JWTConfig
	now     func() time.Time
}

// NewService constructs the issuer auth service.
func NewService(params ServiceParams) (Service, error) {
	if params.Issuers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "issuer directory is required")
	}
	if params.Coupons == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon service is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		issuers: params.Issuers,
		coupons: params.Coupons,
		jwtCfg:  params.JWTConfig,
		now:     now,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email := issuers.NormalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if email == "" || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	issuer, err := s.issuers.FindIssuer(ctx, email)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, err
	}
	if strings.TrimSpace(issuer.Name) != name {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	token, expiresAt, err := pkgAuth.MintIssuerToken(s.jwtCfg, s.now(), pkgAuth.IssuerTokenPayload{
		Email: issuer.Email,
		Name:  issuer.Name,
		JTI:   uuid.NewString(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	return &LoginResponse{
		AccessToken: token,
		TokenType:   tokenTypeBearer,
		ExpiresAt:   expiresAt,
		IssuerName:  issuer.Name,
		IssuerEmail: issuer.Email,
	}, nil
}

func (s *service) Profile(ctx context.Context, email string) (*Profile, error) {
	issuer, err := s.issuers.FindIssuer(ctx, issuers.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	counts, err := s.coupons.IssuerCouponCounts(ctx, issuer.Email)
	if err != nil {
		return nil, err
	}
	return &Profile{
		Name:         issuer.Name,
		Email:        issuer.Email,
		Phone:        issuer.Phone,
		CouponCounts: *counts,
	}, nil
}
