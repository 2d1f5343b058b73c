package issuers

import (
	"context"
	"strings"

	pkgerrors "github.com/angelmondragon/coupontracker-backend/pkg/errors"
)

// CreateInput is the payload for creating an issuer.
type CreateInput struct {
	Name  string
	Email string
	Phone *string
}

// UpdateInput replaces an issuer's fields. A different Email renames the issuer.
type UpdateInput struct {
	Name  string
	Email string
	Phone *string
}

// Service exposes issuer administration with hard failures for mutations.
type Service interface {
	List(ctx context.Context) []IssuerSummary
	Get(ctx context.Context, email string) (*Issuer, error)
	Create(ctx context.Context, input CreateInput) (*Issuer, error)
	Update(ctx context.Context, email string, input UpdateInput) (*Issuer, error)
	Delete(ctx context.Context, email string) error
	AssignedCoupons(ctx context.Context, email string) ([]int64, error)
	Unassign(ctx context.Context, email string, couponID int64) error
	Health(ctx context.Context) Health
}

type service struct {
	store *Store
}

// NewService builds the issuer admin service.
func NewService(store *Store) (Service, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "issuer store is required")
	}
	return &service{store: store}, nil
}

func (s *service) List(ctx context.Context) []IssuerSummary {
	return s.store.ListIssuers(ctx)
}

func (s *service) Get(ctx context.Context, email string) (*Issuer, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	return s.store.FindIssuer(ctx, email)
}

func (s *service) Create(ctx context.Context, input CreateInput) (*Issuer, error) {
	name := strings.TrimSpace(input.Name)
	email := NormalizeEmail(input.Email)
	if err := validateIdentity(name, email); err != nil {
		return nil, err
	}

	if err := s.ensureAbsent(ctx, email); err != nil {
		return nil, err
	}
	if !s.store.UpsertIssuer(ctx, name, email, input.Phone) {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "failed to save issuer")
	}
	return s.store.FindIssuer(ctx, email)
}

func (s *service) Update(ctx context.Context, email string, input UpdateInput) (*Issuer, error) {
	current, err := s.Get(ctx, email)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	newEmail := NormalizeEmail(input.Email)
	if newEmail == "" {
		newEmail = current.Email
	}
	if err := validateIdentity(name, newEmail); err != nil {
		return nil, err
	}

	if newEmail == current.Email {
		if !s.store.UpdateIssuer(ctx, current.Email, name, input.Phone) {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "failed to update issuer")
		}
		return s.store.FindIssuer(ctx, current.Email)
	}

	// Email is the key: create the new issuer, move assignments, then drop the old one.
	if err := s.ensureAbsent(ctx, newEmail); err != nil {
		return nil, err
	}
	if !s.store.UpsertIssuer(ctx, name, newEmail, input.Phone) {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "failed to save renamed issuer")
	}
	if _, err := s.store.MoveAssignments(ctx, current.Email, newEmail); err != nil {
		return nil, err
	}
	if !s.store.DeleteIssuer(ctx, current.Email) {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "failed to remove previous issuer")
	}
	return s.store.FindIssuer(ctx, newEmail)
}

func (s *service) Delete(ctx context.Context, email string) error {
	current, err := s.Get(ctx, email)
	if err != nil {
		return err
	}
	if !s.store.DeleteIssuer(ctx, current.Email) {
		return pkgerrors.New(pkgerrors.CodeDependency, "failed to delete issuer")
	}
	return nil
}

func (s *service) AssignedCoupons(ctx context.Context, email string) ([]int64, error) {
	current, err := s.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.store.AssignedCouponIDs(ctx, current.Email), nil
}

func (s *service) Unassign(ctx context.Context, email string, couponID int64) error {
	if couponID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon id must be positive")
	}
	current, err := s.Get(ctx, email)
	if err != nil {
		return err
	}
	if !s.store.UnassignCoupon(ctx, current.Email, couponID) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
	}
	return nil
}

func (s *service) Health(ctx context.Context) Health {
	return s.store.Health(ctx)
}

func (s *service) ensureAbsent(ctx context.Context, email string) error {
	_, err := s.store.FindIssuer(ctx, email)
	switch {
	case err == nil:
		return pkgerrors.New(pkgerrors.CodeConflict, "issuer already exists").
			WithDetails(map[string]any{"email": email})
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		return nil
	default:
		return err
	}
}

func validateIdentity(name, email string) error {
	details := map[string]any{}
	if name == "" {
		details["name"] = "is required"
	}
	if !ValidEmail(email) {
		details["email"] = "must be a valid email"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid issuer").WithDetails(details)
	}
	return nil
}
