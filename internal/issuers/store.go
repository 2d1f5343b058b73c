package issuers

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/angelmondragon/coupontracker-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/coupontracker-backend/pkg/errors"
	"github.com/angelmondragon/coupontracker-backend/pkg/logger"
	"github.com/angelmondragon/coupontracker-backend/pkg/metrics"
)

const (
	resultOK       = "ok"
	resultDeadline = "deadline_exceeded"
	resultDown     = "unavailable"
	resultConflict = "conflict"
	resultError    = "error"

	defaultOpTimeout = 3 * time.Second
)

// StoreOptions configures the Store wrapper around a backend.
type StoreOptions struct {
	OpTimeout           time.Duration
	PlaceholderCouponID int64
	Degraded            bool
	Logger              *logger.Logger
	Metrics             *metrics.IssuerStoreMetrics
}

// Store is the issuer store component. Its methods never return errors to
// callers on the catalog path: failures are logged, counted and reported as
// false or empty results.
type Store struct {
	backend     Backend
	timeout     time.Duration
	placeholder int64
	degraded    bool
	logg        *logger.Logger
	metrics     *metrics.IssuerStoreMetrics
}

func NewStore(backend Backend, opts StoreOptions) *Store {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = defaultOpTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	opts.Metrics.SetDegraded(opts.Degraded)
	return &Store{
		backend:     backend,
		timeout:     opts.OpTimeout,
		placeholder: opts.PlaceholderCouponID,
		degraded:    opts.Degraded,
		logg:        opts.Logger,
		metrics:     opts.Metrics,
	}
}

// Kind names the active backend.
func (s *Store) Kind() string { return s.backend.Kind() }

// Degraded reports whether the store fell back to process memory.
func (s *Store) Degraded() bool { return s.degraded }

// Close releases the backend connection.
func (s *Store) Close() error { return s.backend.Close() }

func (s *Store) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := fn(callCtx)
	result := classify(err)
	s.metrics.Observe(op, s.backend.Kind(), result, time.Since(start))

	if err != nil && !errors.Is(err, errIssuerMissing) {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"op":      op,
			"backend": s.backend.Kind(),
			"outcome": result,
		})
		s.logg.Error(logCtx, "issuers.op_failed", err)
	}
	return err
}

func classify(err error) string {
	if err == nil || errors.Is(err, errIssuerMissing) {
		return resultOK
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return resultDeadline
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "database is locked") {
		return resultDown
	}
	if db.IsUniqueViolation(err, "") {
		return resultConflict
	}
	return resultError
}

// storeError converts a backend failure into a typed error for callers that need one.
func storeError(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errIssuerMissing):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "issuer not found")
	default:
		return pkgerrors.WrapStore(err, message)
	}
}

// ValidEmail is a shape check on a normalized email.
func ValidEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " ,")
}

// UpsertIssuer creates or updates an issuer by email. An existing non-empty
// name is kept; phone only changes when a new value is given.
func (s *Store) UpsertIssuer(ctx context.Context, name, email string, phone *string) bool {
	in := IssuerInput{Name: strings.TrimSpace(name), Email: NormalizeEmail(email), Phone: normalizePhone(phone)}
	if !ValidEmail(in.Email) {
		return false
	}
	err := s.run(ctx, "upsert_issuer", func(ctx context.Context) error {
		return s.backend.UpsertIssuer(ctx, in)
	})
	return err == nil
}

// AssignCoupon saves the issuer and makes it the only holder of couponID.
func (s *Store) AssignCoupon(ctx context.Context, issuerName string, couponID int64, email string, phone *string) bool {
	in := IssuerInput{Name: strings.TrimSpace(issuerName), Email: NormalizeEmail(email), Phone: normalizePhone(phone)}
	if !ValidEmail(in.Email) {
		return false
	}
	var previous string
	err := s.run(ctx, "assign_coupon", func(ctx context.Context) error {
		var err error
		previous, err = s.backend.AssignCoupon(ctx, in, couponID)
		return err
	})
	if err != nil {
		return false
	}
	if previous != "" && previous != in.Email {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"coupon_id":       couponID,
			"previous_issuer": previous,
			"issuer_email":    in.Email,
		})
		s.logg.Info(logCtx, "issuers.coupon_reassigned")
	}
	return true
}

// UnassignCoupon is true iff an assignment of couponID to email existed and was removed.
func (s *Store) UnassignCoupon(ctx context.Context, email string, couponID int64) bool {
	var removed bool
	err := s.run(ctx, "unassign_coupon", func(ctx context.Context) error {
		var err error
		removed, err = s.backend.UnassignCoupon(ctx, NormalizeEmail(email), couponID)
		return err
	})
	return err == nil && removed
}

// AssignedCouponIDs lists the issuer's coupons, newest assignment first.
func (s *Store) AssignedCouponIDs(ctx context.Context, email string) []int64 {
	var ids []int64
	err := s.run(ctx, "assigned_coupon_ids", func(ctx context.Context) error {
		var err error
		ids, err = s.backend.AssignedCouponIDs(ctx, NormalizeEmail(email))
		return err
	})
	if err != nil || ids == nil {
		return []int64{}
	}
	return ids
}

// AssignedCouponIDsForEmails unions the assignments of several issuers,
// keeping first-seen order and dropping duplicates.
func (s *Store) AssignedCouponIDsForEmails(ctx context.Context, emails []string) []int64 {
	seenEmail := make(map[string]struct{}, len(emails))
	seenID := make(map[int64]struct{})
	out := []int64{}
	for _, raw := range emails {
		email := NormalizeEmail(raw)
		if email == "" {
			continue
		}
		if _, dup := seenEmail[email]; dup {
			continue
		}
		seenEmail[email] = struct{}{}
		for _, id := range s.AssignedCouponIDs(ctx, email) {
			if _, dup := seenID[id]; dup {
				continue
			}
			seenID[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// AllAssignedCouponIDs lists every coupon id that currently has an issuer.
func (s *Store) AllAssignedCouponIDs(ctx context.Context) []int64 {
	var ids []int64
	err := s.run(ctx, "all_assigned_coupon_ids", func(ctx context.Context) error {
		var err error
		ids, err = s.backend.AllAssignedCouponIDs(ctx)
		return err
	})
	if err != nil || ids == nil {
		return []int64{}
	}
	return ids
}

// CouponIssuerMap resolves issuer emails for exactly the given coupon ids.
// Unassigned ids are absent from the result.
func (s *Store) CouponIssuerMap(ctx context.Context, ids []int64) map[int64]string {
	if len(ids) == 0 {
		return map[int64]string{}
	}
	var out map[int64]string
	err := s.run(ctx, "coupon_issuer_map", func(ctx context.Context) error {
		var err error
		out, err = s.backend.CouponIssuerMap(ctx, ids)
		return err
	})
	if err != nil || out == nil {
		return map[int64]string{}
	}
	return out
}

// ListIssuers returns every issuer with its coupon count, newest first.
func (s *Store) ListIssuers(ctx context.Context) []IssuerSummary {
	out, err := s.FetchIssuers(ctx)
	if err != nil {
		return []IssuerSummary{}
	}
	return out
}

// FetchIssuers is ListIssuers for callers that must not mistake a failing
// store for an empty one.
func (s *Store) FetchIssuers(ctx context.Context) ([]IssuerSummary, error) {
	var out []IssuerSummary
	err := s.run(ctx, "list_issuers", func(ctx context.Context) error {
		var err error
		out, err = s.backend.ListIssuers(ctx, s.placeholder)
		return err
	})
	if err != nil {
		return nil, storeError(err, "list issuers")
	}
	if out == nil {
		out = []IssuerSummary{}
	}
	return out, nil
}

// FetchAssignments returns every coupon id with its issuer email.
func (s *Store) FetchAssignments(ctx context.Context) (map[int64]string, error) {
	out := map[int64]string{}
	err := s.run(ctx, "all_assignments", func(ctx context.Context) error {
		ids, err := s.backend.AllAssignedCouponIDs(ctx)
		if err != nil || len(ids) == 0 {
			return err
		}
		holders, err := s.backend.CouponIssuerMap(ctx, ids)
		if err != nil {
			return err
		}
		out = holders
		return nil
	})
	if err != nil {
		return nil, storeError(err, "list assignments")
	}
	if out == nil {
		out = map[int64]string{}
	}
	return out, nil
}

// GetIssuer is false when the issuer is missing or the lookup failed.
func (s *Store) GetIssuer(ctx context.Context, email string) (*Issuer, bool) {
	issuer, err := s.FindIssuer(ctx, email)
	return issuer, err == nil
}

// FindIssuer is the error-returning lookup used by admin flows that must
// tell a missing issuer apart from a failing store.
func (s *Store) FindIssuer(ctx context.Context, email string) (*Issuer, error) {
	var issuer *Issuer
	err := s.run(ctx, "get_issuer", func(ctx context.Context) error {
		var err error
		issuer, err = s.backend.GetIssuer(ctx, NormalizeEmail(email))
		return err
	})
	if err != nil {
		return nil, storeError(err, "load issuer")
	}
	return issuer, nil
}

// UpdateIssuer overwrites name and phone of an existing issuer.
func (s *Store) UpdateIssuer(ctx context.Context, email, name string, phone *string) bool {
	var updated bool
	err := s.run(ctx, "update_issuer", func(ctx context.Context) error {
		var err error
		updated, err = s.backend.UpdateIssuer(ctx, NormalizeEmail(email), strings.TrimSpace(name), normalizePhone(phone))
		return err
	})
	return err == nil && updated
}

// MoveAssignments repoints every coupon held by from to the existing issuer to.
func (s *Store) MoveAssignments(ctx context.Context, from, to string) (int64, error) {
	var moved int64
	err := s.run(ctx, "move_assignments", func(ctx context.Context) error {
		var err error
		moved, err = s.backend.MoveAssignments(ctx, NormalizeEmail(from), NormalizeEmail(to))
		return err
	})
	if err != nil {
		return 0, storeError(err, "move assignments")
	}
	return moved, nil
}

// DeleteIssuer removes the issuer's assignments and then the issuer.
func (s *Store) DeleteIssuer(ctx context.Context, email string) bool {
	var deleted bool
	err := s.run(ctx, "delete_issuer", func(ctx context.Context) error {
		var err error
		deleted, err = s.backend.DeleteIssuer(ctx, NormalizeEmail(email))
		return err
	})
	return err == nil && deleted
}

// Health pings the backend and reports row counts.
func (s *Store) Health(ctx context.Context) Health {
	h := Health{Backend: s.backend.Kind(), Degraded: s.degraded}
	err := s.run(ctx, "health", func(ctx context.Context) error {
		if err := s.backend.Ping(ctx); err != nil {
			return err
		}
		var err error
		h.IssuerCount, h.AssignmentCount, err = s.backend.Counts(ctx)
		return err
	})
	switch {
	case err != nil:
		h.Status = HealthError
		h.Error = err.Error()
	case s.degraded:
		h.Status = HealthDegraded
	default:
		h.Status = HealthOK
	}
	return h
}
