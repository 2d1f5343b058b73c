package issuers

import (
	"context"
	"errors"
)

// errIssuerMissing is returned by backends when a keyed issuer lookup finds nothing.
var errIssuerMissing = errors.New("issuer not found")

// Backend is the storage behind Store. One implementation is picked at startup.
type Backend interface {
	Kind() string
	UpsertIssuer(ctx context.Context, in IssuerInput) error
	// AssignCoupon saves the issuer then points couponID at it, returning the previous holder.
	AssignCoupon(ctx context.Context, in IssuerInput, couponID int64) (string, error)
	UnassignCoupon(ctx context.Context, email string, couponID int64) (bool, error)
	AssignedCouponIDs(ctx context.Context, email string) ([]int64, error)
	AllAssignedCouponIDs(ctx context.Context) ([]int64, error)
	CouponIssuerMap(ctx context.Context, ids []int64) (map[int64]string, error)
	ListIssuers(ctx context.Context, placeholder int64) ([]IssuerSummary, error)
	GetIssuer(ctx context.Context, email string) (*Issuer, error)
	UpdateIssuer(ctx context.Context, email, name string, phone *string) (bool, error)
	MoveAssignments(ctx context.Context, from, to string) (int64, error)
	DeleteIssuer(ctx context.Context, email string) (bool, error)
	Counts(ctx context.Context) (issuers int64, assignments int64, err error)
	Ping(ctx context.Context) error
	Close() error
}
