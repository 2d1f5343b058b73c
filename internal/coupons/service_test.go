package coupons_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/coupontracker-backend/internal/catalog"
	"github.com/angelmondragon/coupontracker-backend/internal/catalog/catalogtest"
	"github.com/angelmondragon/coupontracker-backend/internal/coupons"
	"github.com/angelmondragon/coupontracker-backend/internal/issuers"
	"github.com/angelmondragon/coupontracker-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/coupontracker-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

var teams = config.TeamsConfig{Rules: map[string]string{"teambefit": "%팀버핏%", "other": "Other"}}

type harness struct {
	fx      *catalogtest.Fixture
	repo    *catalog.Repository
	issuers *issuers.Store
	svc     coupons.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fx := catalogtest.New(t)
	repo := catalog.NewRepository(fx.Client(), catalog.Options{QueryTimeout: time.Second})
	store := issuers.NewStore(issuers.NewMemoryBackend(), issuers.StoreOptions{Degraded: true})
	svc, err := coupons.NewService(coupons.ServiceParams{Catalog: repo, Issuers: store, Teams: teams, Now: fixedNow})
	require.NoError(t, err)
	return &harness{fx: fx, repo: repo, issuers: store, svc: svc}
}

// seedTeam inserts n team coupons at one store with ids 1..n.
func (h *harness) seedTeam(n int) {
	h.fx.Place(1, "Gangnam")
	for i := 1; i <= n; i++ {
		h.fx.Coupon(catalogtest.Coupon{ID: int64(i), Code: fmt.Sprintf("T-%d", i), Title: catalogtest.Title("팀버핏 체험"), Rate: 10, PlaceID: 1})
	}
}

func ids(items []coupons.Coupon) []int64 {
	out := make([]int64, 0, len(items))
	for _, c := range items {
		out = append(out, c.ID)
	}
	return out
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := coupons.NewService(coupons.ServiceParams{})
	require.Error(t, err)
}

func TestListPageBeyondFilteredSet(t *testing.T) {
	h := newHarness(t)
	h.seedTeam(25)
	h.fx.Coupon(catalogtest.Coupon{ID: 100, Title: catalogtest.Title("Other brand")})

	page, err := h.svc.List(context.Background(), coupons.ListParams{TeamID: "teambefit", Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(25), page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, []int64{5, 4, 3, 2, 1}, ids(page.Coupons))

	page, err = h.svc.List(context.Background(), coupons.ListParams{TeamID: "teambefit", Page: 9, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Coupons)
	assert.Equal(t, int64(25), page.Total)
	assert.Equal(t, 3, page.TotalPages)
}

func TestPagesPartitionTheTotal(t *testing.T) {
	h := newHarness(t)
	h.seedTeam(23)
	for i := int64(1); i <= 23; i += 3 {
		require.True(t, h.issuers.AssignCoupon(context.Background(), "A", i, "a@x.com", nil))
	}

	for _, params := range []coupons.ListParams{
		{PageSize: 4},
		{PageSize: 7, Search: "t-1"},
		{PageSize: 3, IssuerEmails: []string{"a@x.com"}},
		{PageSize: 1000, TeamID: "teambefit"},
	} {
		params.Page = 1
		first, err := h.svc.List(context.Background(), params)
		require.NoError(t, err)

		seen := map[int64]bool{}
		sum := 0
		for p := 1; p <= first.TotalPages; p++ {
			params.Page = p
			page, err := h.svc.List(context.Background(), params)
			require.NoError(t, err)
			sum += len(page.Coupons)
			for _, c := range page.Coupons {
				assert.False(t, seen[c.ID], "coupon %d repeated", c.ID)
				seen[c.ID] = true
			}
		}
		assert.Equal(t, first.Total, int64(sum))
		assert.Equal(t, int(first.Total+int64(params.PageSize)-1)/params.PageSize, first.TotalPages)
	}
}

func TestIssuerFilterWithoutAssignmentsShortCircuits(t *testing.T) {
	h := newHarness(t)
	svc, err := coupons.NewService(coupons.ServiceParams{Catalog: failingCatalog{}, Issuers: h.issuers, Teams: teams})
	require.NoError(t, err)

	page, err := svc.List(context.Background(), coupons.ListParams{IssuerEmails: []string{"nobody@x.com"}, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Coupons)
	assert.Zero(t, page.Total)
	assert.Zero(t, page.TotalPages)

	stats, err := svc.Statistics(context.Background(), coupons.ListParams{IssuerEmails: []string{"nobody@x.com"}})
	require.NoError(t, err)
	assert.Empty(t, stats.Stores)
}

func TestIssuerFilterAndReconciliation(t *testing.T) {
	h := newHarness(t)
	h.seedTeam(6)
	ctx := context.Background()
	require.True(t, h.issuers.AssignCoupon(ctx, "A", 2, "a@x.com", nil))
	require.True(t, h.issuers.AssignCoupon(ctx, "B", 5, "b@x.com", nil))
	require.True(t, h.issuers.AssignCoupon(ctx, "B", 6, "b@x.com", nil))

	page, err := h.svc.List(ctx, coupons.ListParams{IssuerEmails: []string{"B@X.com"}, Page: 1, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, []int64{6}, ids(page.Coupons))
	assert.Equal(t, "b@x.com", page.Coupons[0].Issuer)

	page, err = h.svc.List(ctx, coupons.ListParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	byID := map[int64]string{}
	for _, c := range page.Coupons {
		byID[c.ID] = c.Issuer
	}
	assert.Equal(t, "a@x.com", byID[2])
	assert.Equal(t, "b@x.com", byID[5])
	assert.Equal(t, "", byID[1])
}

func TestListValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, params := range []coupons.ListParams{
		{Page: 0, PageSize: 10},
		{Page: 1, PageSize: 0},
		{Page: 1, PageSize: 1001},
		{Page: 1, PageSize: 10, TeamID: "missing"},
	} {
		_, err := h.svc.List(ctx, params)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%+v", params)
	}
}

func TestCatalogFailuresAreDependencyErrors(t *testing.T) {
	h := newHarness(t)
	svc, err := coupons.NewService(coupons.ServiceParams{Catalog: failingCatalog{}, Issuers: h.issuers, Teams: teams})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.List(ctx, coupons.ListParams{Page: 1, PageSize: 10})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	_, err = svc.Statistics(ctx, coupons.ListParams{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	_, err = svc.CouponNames(ctx, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	timeoutSvc, err := coupons.NewService(coupons.ServiceParams{Catalog: failingCatalog{err: context.DeadlineExceeded}, Issuers: h.issuers})
	require.NoError(t, err)
	_, err = timeoutSvc.List(ctx, coupons.ListParams{Page: 1, PageSize: 10})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeTimeout))
}

func TestStatisticsFromCatalog(t *testing.T) {
	h := newHarness(t)
	h.fx.Place(1, "S")
	h.fx.User(1, "u1")
	h.fx.User(2, "u2")
	h.fx.User(3, "u3")
	for i := int64(1); i <= 5; i++ {
		h.fx.Coupon(catalogtest.Coupon{ID: i, Title: catalogtest.Title("X"), PlaceID: 1})
	}
	h.fx.Usage(1, 1, true)
	h.fx.Usage(2, 2, true)
	h.fx.Usage(3, 3, false)

	stats, err := h.svc.Statistics(context.Background(), coupons.ListParams{})
	require.NoError(t, err)
	require.Len(t, stats.Stores, 1)
	x := stats.Stores[0].Coupons[0]
	assert.Equal(t, "S", stats.Stores[0].Store)
	assert.Equal(t, "X", x.CouponName)
	assert.Equal(t, 5, x.IssuedCount)
	assert.Equal(t, 60.0, x.RegistrationRate)
	assert.Equal(t, 40.0, x.PaymentRate)
}

func TestUnreachableIssuerStoreKeepsListingsWorking(t *testing.T) {
	fx := catalogtest.New(t)
	fx.Place(1, "Gangnam")
	fx.Coupon(catalogtest.Coupon{ID: 1, Title: catalogtest.Title("팀버핏 A"), PlaceID: 1})
	fx.Coupon(catalogtest.Coupon{ID: 2, Title: catalogtest.Title("팀버핏 B"), PlaceID: 1})
	repo := catalog.NewRepository(fx.Client(), catalog.Options{})

	store := issuers.Open(context.Background(), config.IssuerDBConfig{Driver: "postgres", DSN: "postgres://127.0.0.1:1/none?connect_timeout=1", OpTimeout: time.Second}, nil, nil)
	require.True(t, store.Degraded())
	svc, err := coupons.NewService(coupons.ServiceParams{Catalog: repo, Issuers: store, Teams: teams, Now: fixedNow})
	require.NoError(t, err)
	ctx := context.Background()

	page, err := svc.List(ctx, coupons.ListParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Coupons, 2)
	for _, c := range page.Coupons {
		assert.Equal(t, "", c.Issuer)
	}

	res, err := svc.AssignIssuer(ctx, 2, "a@x.com", "A")
	require.NoError(t, err)
	assert.Equal(t, "A", res.IssuerName)
	assert.Equal(t, []int64{2}, store.AssignedCouponIDs(ctx, "a@x.com"))

	page, err = svc.List(ctx, coupons.ListParams{IssuerEmails: []string{"a@x.com"}, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Coupons, 1)
	assert.Equal(t, "a@x.com", page.Coupons[0].Issuer)
}

func TestIssuerFailuresBlankTheIssuerField(t *testing.T) {
	h := newHarness(t)
	h.seedTeam(2)
	svc, err := coupons.NewService(coupons.ServiceParams{Catalog: h.repo, Issuers: brokenIssuers{}, Teams: teams})
	require.NoError(t, err)

	page, err := svc.List(context.Background(), coupons.ListParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Coupons, 2)
	for _, c := range page.Coupons {
		assert.Equal(t, "", c.Issuer)
	}

	_, err = svc.AssignIssuer(context.Background(), 1, "a@x.com", "A")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestAssignIssuer(t *testing.T) {
	h := newHarness(t)
	h.seedTeam(2)
	ctx := context.Background()

	res, err := h.svc.AssignIssuer(ctx, 1, "Kim@X.com", "")
	require.NoError(t, err)
	assert.Equal(t, "kim@x.com", res.IssuerEmail)
	assert.Equal(t, "kim", res.IssuerName)

	require.True(t, h.issuers.UpsertIssuer(ctx, "Lee", "lee@x.com", nil))
	res, err = h.svc.AssignIssuer(ctx, 1, "lee@x.com", "")
	require.NoError(t, err)
	assert.Equal(t, "Lee", res.IssuerName)
	assert.Empty(t, h.issuers.AssignedCouponIDs(ctx, "kim@x.com"))

	_, err = h.svc.AssignIssuer(ctx, 999, "lee@x.com", "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = h.svc.AssignIssuer(ctx, 1, "not-an-email", "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSetRegisteredByMapsCatalogErrors(t *testing.T) {
	h := newHarness(t)
	h.seedTeam(1)
	h.fx.User(1, "Kim")
	h.fx.User(2, "Park")
	h.fx.User(3, "Park")
	ctx := context.Background()

	require.NoError(t, h.svc.SetRegisteredBy(ctx, 1, " Kim "))
	page, err := h.svc.List(ctx, coupons.ListParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, "Kim", page.Coupons[0].RegisteredBy)

	assert.True(t, pkgerrors.IsCode(h.svc.SetRegisteredBy(ctx, 1, ""), pkgerrors.CodeValidation))
	assert.True(t, pkgerrors.IsCode(h.svc.SetRegisteredBy(ctx, 1, "Nobody"), pkgerrors.CodeNotFound))
	assert.True(t, pkgerrors.IsCode(h.svc.SetRegisteredBy(ctx, 1, "Park"), pkgerrors.CodeConflict))
	assert.True(t, pkgerrors.IsCode(h.svc.SetRegisteredBy(ctx, 77, "Kim"), pkgerrors.CodeNotFound))
}

func TestIssuerCouponCounts(t *testing.T) {
	h := newHarness(t)
	h.fx.Coupon(catalogtest.Coupon{ID: 1, Title: catalogtest.Title("a"), Expires: catalogtest.Date(2030, 1, 1)})
	h.fx.Coupon(catalogtest.Coupon{ID: 2, Title: catalogtest.Title("b"), Expires: catalogtest.Date(2024, 1, 1)})
	h.fx.Coupon(catalogtest.Coupon{ID: 3, Title: catalogtest.Title("c")})
	h.fx.Usage(3, 0, false)
	h.fx.Usage(3, 0, true)
	ctx := context.Background()
	for _, id := range []int64{1, 2, 3} {
		require.True(t, h.issuers.AssignCoupon(ctx, "A", id, "a@x.com", nil))
	}

	counts, err := h.svc.IssuerCouponCounts(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, coupons.CouponCounts{Total: 3, Active: 2, Expired: 1}, *counts)

	counts, err = h.svc.IssuerCouponCounts(ctx, "none@x.com")
	require.NoError(t, err)
	assert.Zero(t, counts.Total)
}

func TestLookupsUseCache(t *testing.T) {
	h := newHarness(t)
	h.seedTeam(1)
	h.fx.Coupon(catalogtest.Coupon{ID: 50, Title: catalogtest.Title("Other thing"), PlaceID: 1})
	cache := newMapCache()
	svc, err := coupons.NewService(coupons.ServiceParams{Catalog: h.repo, Issuers: h.issuers, Teams: teams, Cache: cache, CacheTTL: time.Minute})
	require.NoError(t, err)
	ctx := context.Background()

	names, err := svc.CouponNames(ctx, "teambefit")
	require.NoError(t, err)
	assert.Equal(t, []string{"팀버핏 체험"}, names)
	assert.Contains(t, cache.values, "lookup:coupon_names:teambefit")

	cache.values["lookup:coupon_names:teambefit"] = `["cached"]`
	names, err = svc.CouponNames(ctx, "teambefit")
	require.NoError(t, err)
	assert.Equal(t, []string{"cached"}, names)

	stores, err := svc.StoreNames(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, []string{"Gangnam"}, stores)

	_, err = svc.StoreNames(ctx, "missing")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

type failingCatalog struct {
	err error
}

func (f failingCatalog) fail() error {
	if f.err != nil {
		return f.err
	}
	return errors.New("connection refused")
}

func (f failingCatalog) Count(context.Context, catalog.Filter) (int64, error) { return 0, f.fail() }
func (f failingCatalog) List(context.Context, catalog.Filter, catalog.Page) ([]catalog.Row, error) {
	return nil, f.fail()
}
func (f failingCatalog) DistinctTitles(context.Context, string) ([]string, error) { return nil, f.fail() }
func (f failingCatalog) DistinctStores(context.Context, string) ([]string, error) { return nil, f.fail() }
func (f failingCatalog) SetRegisteredBy(context.Context, int64, string) (int64, error) {
	return 0, f.fail()
}
func (f failingCatalog) CouponExists(context.Context, int64) (bool, error) { return false, f.fail() }

type brokenIssuers struct{}

func (brokenIssuers) AssignedCouponIDs(context.Context, string) []int64 { return nil }
func (brokenIssuers) AssignedCouponIDsForEmails(context.Context, []string) []int64 { return nil }
func (brokenIssuers) CouponIssuerMap(context.Context, []int64) map[int64]string { return map[int64]string{} }
func (brokenIssuers) AssignCoupon(context.Context, string, int64, string, *string) bool { return false }
func (brokenIssuers) GetIssuer(context.Context, string) (*issuers.Issuer, bool) { return nil, false }

type mapCache struct {
	values map[string]string
}

func newMapCache() *mapCache {
	return &mapCache{values: map[string]string{}}
}

func (c *mapCache) Get(_ context.Context, key string) (string, error) {
	v, ok := c.values[key]
	if !ok {
		return "", errors.New("miss")
	}
	return v, nil
}

func (c *mapCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	c.values[key] = fmt.Sprint(value)
	return nil
}

func (c *mapCache) LookupKey(kind, scope string) string {
	return "lookup:" + kind + ":" + scope
}
