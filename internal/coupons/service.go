package coupons

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/coupontracker-backend/internal/catalog"
	"github.com/angelmondragon/coupontracker-backend/internal/issuers"
	"github.com/angelmondragon/coupontracker-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/coupontracker-backend/pkg/errors"
	"github.com/angelmondragon/coupontracker-backend/pkg/logger"
	"github.com/angelmondragon/coupontracker-backend/pkg/pagination"
)

// Catalog is the read side of the legacy coupon database plus its one administrative write.
type Catalog interface {
	Count(ctx context.Context, f catalog.Filter) (int64, error)
	List(ctx context.Context, f catalog.Filter, page catalog.Page) ([]catalog.Row, error)
	DistinctTitles(ctx context.Context, titlePattern string) ([]string, error)
	DistinctStores(ctx context.Context, titlePattern string) ([]string, error)
	SetRegisteredBy(ctx context.Context, couponID int64, userName string) (int64, error)
	CouponExists(ctx context.Context, couponID int64) (bool, error)
}

// IssuerStore is the subset of the issuer store used by coupon queries.
type IssuerStore interface {
	AssignedCouponIDs(ctx context.Context, email string) []int64
	AssignedCouponIDsForEmails(ctx context.Context, emails []string) []int64
	CouponIssuerMap(ctx context.Context, ids []int64) map[int64]string
	AssignCoupon(ctx context.Context, issuerName string, couponID int64, email string, phone *string) bool
	GetIssuer(ctx context.Context, email string) (*issuers.Issuer, bool)
}

// LookupCache stores distinct title and store lists between requests.
type LookupCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	LookupKey(kind, scope string) string
}

// Service answers coupon listings, lookups, statistics and administrative writes.
type Service interface {
	List(ctx context.Context, params ListParams) (*Page, error)
	CouponNames(ctx context.Context, teamID string) ([]string, error)
	StoreNames(ctx context.Context, teamID string) ([]string, error)
	Statistics(ctx context.Context, params ListParams) (*Statistics, error)
	AssignIssuer(ctx context.Context, couponID int64, email, name string) (*AssignResult, error)
	SetRegisteredBy(ctx context.Context, couponID int64, userName string) error
	IssuerCouponCounts(ctx context.Context, email string) (*CouponCounts, error)
}

// ServiceParams wires the coupon service.
type ServiceParams struct {
	Catalog  Catalog
	Issuers  IssuerStore
	Teams    config.TeamsConfig
	Cache    LookupCache
	CacheTTL time.Duration
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	catalog  Catalog
	issuers  IssuerStore
	teams    config.TeamsConfig
	cache    LookupCache
	cacheTTL time.Duration
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the coupon service.
func NewService(params ServiceParams) (Service, error) {
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "catalog repository is required")
	}
	if params.Issuers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "issuer store is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		catalog:  params.Catalog,
		issuers:  params.Issuers,
		teams:    params.Teams,
		cache:    params.Cache,
		cacheTTL: params.CacheTTL,
		logg:     logg,
		now:      now,
	}, nil
}

func (s *service) teamPattern(teamID string) (string, error) {
	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return "", nil
	}
	pattern, ok := s.teams.Pattern(teamID)
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown team").
			WithDetails(map[string]any{"team_id": teamID, "known": s.teams.IDs()})
	}
	return pattern, nil
}

// filter builds the catalog predicate. The bool is false when an issuer
// filter resolved to no coupons and the catalog must not be queried.
func (s *service) filter(ctx context.Context, params ListParams) (catalog.Filter, bool, error) {
	pattern, err := s.teamPattern(params.TeamID)
	if err != nil {
		return catalog.Filter{}, false, err
	}
	f := catalog.Filter{
		TitlePattern: pattern,
		Search:       params.Search,
		CouponNames:  params.CouponNames,
		StoreNames:   params.StoreNames,
	}

	emails := make([]string, 0, len(params.IssuerEmails))
	for _, e := range params.IssuerEmails {
		if e = issuers.NormalizeEmail(e); e != "" {
			emails = append(emails, e)
		}
	}
	if len(emails) == 0 {
		return f, true, nil
	}
	f.RestrictIDs = true
	f.IDs = s.issuers.AssignedCouponIDsForEmails(ctx, emails)
	return f, len(f.IDs) > 0, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*Page, error) {
	p := pagination.Params{Page: params.Page, Size: params.PageSize}
	if err := p.Validate(); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}

	f, query, err := s.filter(ctx, params)
	if err != nil {
		return nil, err
	}
	page := &Page{Coupons: []Coupon{}, Page: p.Page, Size: p.Size}
	if !query {
		return page, nil
	}

	total, err := s.catalog.Count(ctx, f)
	if err != nil {
		return nil, pkgerrors.WrapStore(err, "count coupons")
	}
	page.Total = total
	page.TotalPages = pagination.TotalPages(total, p.Size)

	var rows []catalog.Row
	if f.RestrictIDs {
		rows, err = s.catalog.List(ctx, f, catalog.Page{})
		if err == nil {
			rows = pagination.Slice(rows, p)
		}
	} else {
		rows, err = s.catalog.List(ctx, f, catalog.Page{Limit: p.Size, Offset: p.Offset()})
	}
	if err != nil {
		return nil, pkgerrors.WrapStore(err, "list coupons")
	}

	page.Coupons = s.normalizeAll(rows)
	reconcile(ctx, s.issuers, page.Coupons)
	return page, nil
}

func (s *service) normalizeAll(rows []catalog.Row) []Coupon {
	today := dateOf(s.now())
	out := make([]Coupon, 0, len(rows))
	for _, row := range rows {
		out = append(out, normalize(row, today))
	}
	return out
}

func (s *service) CouponNames(ctx context.Context, teamID string) ([]string, error) {
	pattern, err := s.teamPattern(teamID)
	if err != nil {
		return nil, err
	}
	return s.lookup(ctx, "coupon_names", teamID, func(ctx context.Context) ([]string, error) {
		return s.catalog.DistinctTitles(ctx, pattern)
	})
}

func (s *service) StoreNames(ctx context.Context, teamID string) ([]string, error) {
	pattern, err := s.teamPattern(teamID)
	if err != nil {
		return nil, err
	}
	return s.lookup(ctx, "stores", teamID, func(ctx context.Context) ([]string, error) {
		return s.catalog.DistinctStores(ctx, pattern)
	})
}

// lookup serves distinct lists through the cache when one is configured.
// Cache errors fall through to the catalog.
func (s *service) lookup(ctx context.Context, kind, teamID string, load func(ctx context.Context) ([]string, error)) ([]string, error) {
	scope := strings.TrimSpace(teamID)
	if scope == "" {
		scope = "all"
	}
	var key string
	if s.cache != nil && s.cacheTTL > 0 {
		key = s.cache.LookupKey(kind, scope)
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var cached []string
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return cached, nil
			}
		}
	}

	values, err := load(ctx)
	if err != nil {
		return nil, pkgerrors.WrapStore(err, "load "+strings.ReplaceAll(kind, "_", " "))
	}
	if key != "" {
		if payload, err := json.Marshal(values); err == nil {
			if err := s.cache.Set(ctx, key, string(payload), s.cacheTTL); err != nil {
				s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"key": key, "error": err.Error()}), "coupons.lookup_cache_write_failed")
			}
		}
	}
	return values, nil
}

func (s *service) Statistics(ctx context.Context, params ListParams) (*Statistics, error) {
	f, query, err := s.filter(ctx, params)
	if err != nil {
		return nil, err
	}
	if !query {
		stats := Aggregate(nil)
		return &stats, nil
	}
	rows, err := s.catalog.List(ctx, f, catalog.Page{})
	if err != nil {
		return nil, pkgerrors.WrapStore(err, "load coupons for statistics")
	}
	stats := Aggregate(s.normalizeAll(rows))
	return &stats, nil
}

func (s *service) AssignIssuer(ctx context.Context, couponID int64, email, name string) (*AssignResult, error) {
	email = issuers.NormalizeEmail(email)
	if !issuers.ValidEmail(email) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "issuer_email is invalid").
			WithDetails(map[string]any{"issuer_email": "must be a valid email"})
	}
	if couponID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon id must be positive")
	}

	exists, err := s.catalog.CouponExists(ctx, couponID)
	if err != nil {
		return nil, pkgerrors.WrapStore(err, "load coupon")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = issuers.DefaultIssuerName(ctx, s.issuers, email)
	}

	if !s.issuers.AssignCoupon(ctx, name, couponID, email, nil) {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "failed to assign issuer")
	}
	if current, ok := s.issuers.GetIssuer(ctx, email); ok && current.Name != "" {
		name = current.Name
	}
	s.logg.Info(s.logg.WithIssuerEmail(s.logg.WithField(ctx, "coupon_id", couponID), email), "coupons.issuer_assigned")
	return &AssignResult{CouponID: couponID, IssuerEmail: email, IssuerName: name}, nil
}

func (s *service) SetRegisteredBy(ctx context.Context, couponID int64, userName string) error {
	userName = strings.TrimSpace(userName)
	if userName == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "registered_by is required").
			WithDetails(map[string]any{"registered_by": "is required"})
	}
	userID, err := s.catalog.SetRegisteredBy(ctx, couponID, userName)
	switch {
	case errors.Is(err, catalog.ErrUserNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "catalog user not found")
	case errors.Is(err, catalog.ErrUserAmbiguous):
		return pkgerrors.New(pkgerrors.CodeConflict, "more than one catalog user has that name").
			WithDetails(map[string]any{"registered_by": userName})
	case errors.Is(err, catalog.ErrCouponNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	case err != nil:
		return pkgerrors.WrapStore(err, "set registered by")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"coupon_id": couponID, "user_id": userID}), "coupons.registered_by_updated")
	return nil
}

// IssuerCouponCounts counts distinct catalog coupons held by the issuer.
func (s *service) IssuerCouponCounts(ctx context.Context, email string) (*CouponCounts, error) {
	ids := s.issuers.AssignedCouponIDs(ctx, issuers.NormalizeEmail(email))
	counts := &CouponCounts{}
	if len(ids) == 0 {
		return counts, nil
	}
	rows, err := s.catalog.List(ctx, catalog.Filter{IDs: ids, RestrictIDs: true}, catalog.Page{})
	if err != nil {
		return nil, pkgerrors.WrapStore(err, "load issuer coupons")
	}
	seen := make(map[int64]struct{}, len(rows))
	for _, c := range s.normalizeAll(rows) {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		counts.Total++
		if c.Status == StatusExpired {
			counts.Expired++
		} else {
			counts.Active++
		}
	}
	return counts, nil
}
