package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/angelmondragon/coupontracker-backend/internal/coupons"
	pkgerrors "github.com/angelmondragon/coupontracker-backend/pkg/errors"
)

type stubCouponService struct {
	lastParams   coupons.ListParams
	lastTeam     string
	lastCouponID int64
	lastEmail    string
	lastName     string
	page         *coupons.Page
	stats        *coupons.Statistics
	names        []string
	assign       *coupons.AssignResult
	err          error
}

func (s *stubCouponService) List(_ context.Context, params coupons.ListParams) (*coupons.Page, error) {
	s.lastParams = params
	if s.err != nil {
		return nil, s.err
	}
	if s.page == nil {
		return &coupons.Page{Coupons: []coupons.Coupon{}, Page: params.Page, Size: params.PageSize}, nil
	}
	return s.page, nil
}

func (s *stubCouponService) CouponNames(_ context.Context, teamID string) ([]string, error) {
	s.lastTeam = teamID
	return s.names, s.err
}

func (s *stubCouponService) StoreNames(_ context.Context, teamID string) ([]string, error) {
	s.lastTeam = teamID
	return s.names, s.err
}

func (s *stubCouponService) Statistics(_ context.Context, params coupons.ListParams) (*coupons.Statistics, error) {
	s.lastParams = params
	if s.err != nil {
		return nil, s.err
	}
	if s.stats == nil {
		return &coupons.Statistics{Stores: []coupons.StoreStats{}}, nil
	}
	return s.stats, nil
}

func (s *stubCouponService) AssignIssuer(_ context.Context, couponID int64, email, name string) (*coupons.AssignResult, error) {
	s.lastCouponID = couponID
	s.lastEmail = email
	s.lastName = name
	return s.assign, s.err
}

func (s *stubCouponService) SetRegisteredBy(_ context.Context, couponID int64, userName string) error {
	s.lastCouponID = couponID
	s.lastName = userName
	return s.err
}

func (s *stubCouponService) IssuerCouponCounts(_ context.Context, email string) (*coupons.CouponCounts, error) {
	s.lastEmail = email
	return &coupons.CouponCounts{}, s.err
}

func TestCouponsListParsesFilters(t *testing.T) {
	svc := &stubCouponService{}
	handler := CouponsList(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/coupons?search=%20pizza%20&coupon_names=A,B,&store_names=S1&issuer=kim@example.com&page=3&size=25&team_id=teamverse", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	want := coupons.ListParams{
		TeamID:       "teamverse",
		Search:       "pizza",
		CouponNames:  []string{"A", "B"},
		StoreNames:   []string{"S1"},
		IssuerEmails: []string{"kim@example.com"},
		Page:         3,
		PageSize:     25,
	}
	if !reflect.DeepEqual(svc.lastParams, want) {
		t.Fatalf("unexpected params: %+v", svc.lastParams)
	}
}

func TestCouponsListDefaults(t *testing.T) {
	svc := &stubCouponService{}
	handler := CouponsList(svc, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/coupons", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lastParams.Page != 1 || svc.lastParams.PageSize != 100 {
		t.Fatalf("expected page 1 size 100 got %d/%d", svc.lastParams.Page, svc.lastParams.PageSize)
	}
	if svc.lastParams.TeamID != "" {
		t.Fatalf("expected no team got %q", svc.lastParams.TeamID)
	}
}

func TestCouponsListRejectsOversizedPage(t *testing.T) {
	svc := &stubCouponService{}
	handler := CouponsList(svc, nil)

	for _, query := range []string{"size=1001", "size=0", "page=0", "page=abc"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/coupons?"+query, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", query, rec.Code)
		}
		if env := decodeError(t, rec); env.Error.Code != string(pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation code got %s", query, env.Error.Code)
		}
	}
}

func TestCouponsListTeamPathWinsOverQuery(t *testing.T) {
	svc := &stubCouponService{}
	handler := CouponsList(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/teams/teamfit/coupons?team_id=teamverse", nil)
	req = withRouteParam(req, "teamId", "teamfit")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if svc.lastParams.TeamID != "teamfit" {
		t.Fatalf("expected teamfit got %q", svc.lastParams.TeamID)
	}
}

func TestCouponsListServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{pkgerrors.New(pkgerrors.CodeValidation, "unknown team"), http.StatusBadRequest},
		{pkgerrors.New(pkgerrors.CodeDependency, "catalog unavailable"), http.StatusServiceUnavailable},
		{pkgerrors.New(pkgerrors.CodeTimeout, "catalog query timed out"), http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		handler := CouponsList(&stubCouponService{err: tc.err}, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/coupons", nil))
		if rec.Code != tc.status {
			t.Fatalf("%v: expected %d got %d", tc.err, tc.status, rec.Code)
		}
	}
}

func TestCouponsListNilService(t *testing.T) {
	rec := httptest.NewRecorder()
	CouponsList(nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/coupons", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}

func TestCouponNamesUsesTeam(t *testing.T) {
	svc := &stubCouponService{names: []string{"A", "B"}}
	req := withRouteParam(httptest.NewRequest(http.MethodGet, "/api/teams/teamfit/coupon-names", nil), "teamId", "teamfit")
	rec := httptest.NewRecorder()
	CouponNames(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lastTeam != "teamfit" {
		t.Fatalf("expected teamfit got %q", svc.lastTeam)
	}
	var envelope struct {
		Data struct {
			CouponNames []string `json:"coupon_names"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.CouponNames) != 2 {
		t.Fatalf("expected 2 names got %v", envelope.Data.CouponNames)
	}
}

func TestStoreNamesResponseKey(t *testing.T) {
	svc := &stubCouponService{names: []string{"Store"}}
	rec := httptest.NewRecorder()
	StoreNames(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stores?team_id=teamverse", nil))

	if svc.lastTeam != "teamverse" {
		t.Fatalf("expected teamverse got %q", svc.lastTeam)
	}
	var envelope struct {
		Data struct {
			Stores []string `json:"stores"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Stores) != 1 {
		t.Fatalf("expected 1 store got %v", envelope.Data.Stores)
	}
}

func TestCouponStatisticsIgnoresPaging(t *testing.T) {
	svc := &stubCouponService{}
	rec := httptest.NewRecorder()
	CouponStatistics(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/statistics?page=0&size=5000&store_names=S1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lastParams.Page != 0 || svc.lastParams.PageSize != 0 {
		t.Fatalf("expected paging to be ignored got %+v", svc.lastParams)
	}
	if len(svc.lastParams.StoreNames) != 1 {
		t.Fatalf("expected store filter got %+v", svc.lastParams)
	}
}

func TestCouponAssignIssuer(t *testing.T) {
	svc := &stubCouponService{assign: &coupons.AssignResult{CouponID: 7, IssuerEmail: "kim@example.com"}}
	req := httptest.NewRequest(http.MethodPatch, "/api/coupons/7/assign-issuer", bytes.NewBufferString(`{"issuer_email":"kim@example.com","issuer_name":" Kim "}`))
	req.Header.Set("Content-Type", "application/json")
	req = withRouteParam(req, "couponId", "7")
	rec := httptest.NewRecorder()

	CouponAssignIssuer(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastCouponID != 7 || svc.lastEmail != "kim@example.com" || svc.lastName != "Kim" {
		t.Fatalf("unexpected call: %d %q %q", svc.lastCouponID, svc.lastEmail, svc.lastName)
	}
}

func TestCouponAssignIssuerValidation(t *testing.T) {
	svc := &stubCouponService{}
	cases := map[string]struct {
		id   string
		body string
	}{
		"bad id":        {id: "abc", body: `{"issuer_email":"kim@example.com"}`},
		"bad email":     {id: "7", body: `{"issuer_email":"not-an-email"}`},
		"missing email": {id: "7", body: `{}`},
	}
	for name, tc := range cases {
		req := httptest.NewRequest(http.MethodPatch, "/api/coupons/x/assign-issuer", bytes.NewBufferString(tc.body))
		req = withRouteParam(req, "couponId", tc.id)
		rec := httptest.NewRecorder()
		CouponAssignIssuer(svc, nil).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", name, rec.Code)
		}
	}
}

func TestCouponAssignIssuerStoreFailure(t *testing.T) {
	svc := &stubCouponService{err: pkgerrors.New(pkgerrors.CodeDependency, "issuer store unavailable")}
	req := httptest.NewRequest(http.MethodPatch, "/api/coupons/7/assign-issuer", bytes.NewBufferString(`{"issuer_email":"kim@example.com"}`))
	req = withRouteParam(req, "couponId", "7")
	rec := httptest.NewRecorder()
	CouponAssignIssuer(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
}

func TestCouponRegisteredBy(t *testing.T) {
	svc := &stubCouponService{}
	req := httptest.NewRequest(http.MethodPatch, "/api/coupons/3/registered-by", bytes.NewBufferString(`{"registered_by":"lee"}`))
	req = withRouteParam(req, "couponId", "3")
	rec := httptest.NewRecorder()
	CouponRegisteredBy(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.lastCouponID != 3 || svc.lastName != "lee" {
		t.Fatalf("unexpected call: %d %q", svc.lastCouponID, svc.lastName)
	}

	svc.err = pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	req = httptest.NewRequest(http.MethodPatch, "/api/coupons/3/registered-by", bytes.NewBufferString(`{"registered_by":"ghost"}`))
	req = withRouteParam(req, "couponId", "3")
	rec = httptest.NewRecorder()
	CouponRegisteredBy(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}
