package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/leadrelay/leadrelay-backend/internal/leads"
	"github.com/leadrelay/leadrelay-backend/pkg/enums"
	pkgerrors "github.com/leadrelay/leadrelay-backend/pkg/errors"
)

type testLeadsService struct {
	listFn       func(ctx context.Context, filters leads.ListFilters, cursor string, limit int) (leads.Page, error)
	getFn        func(ctx context.Context, id uuid.UUID) (*leads.Detail, error)
	updateFn     func(ctx context.Context, id uuid.UUID, status enums.LeadStatus) error
	bulkUpdateFn func(ctx context.Context, ids []uuid.UUID, status enums.LeadStatus) (int64, error)
	statsFn      func(ctx context.Context) (leads.Stats, error)
}

func (s *testLeadsService) List(ctx context.Context, filters leads.ListFilters, cursor string, limit int) (leads.Page, error) {
	if s.listFn != nil {
		return s.listFn(ctx, filters, cursor, limit)
	}
	return leads.Page{}, nil
}

func (s *testLeadsService) Get(ctx context.Context, id uuid.UUID) (*leads.Detail, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return &leads.Detail{}, nil
}

func (s *testLeadsService) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.LeadStatus) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, id, status)
	}
	return nil
}

func (s *testLeadsService) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status enums.LeadStatus) (int64, error) {
	if s.bulkUpdateFn != nil {
		return s.bulkUpdateFn(ctx, ids, status)
	}
	return 0, nil
}

func (s *testLeadsService) Stats(ctx context.Context) (leads.Stats, error) {
	if s.statsFn != nil {
		return s.statsFn(ctx)
	}
	return leads.Stats{}, nil
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestLeadListAppliesFilters(t *testing.T) {
	var captured leads.ListFilters
	capturedLimit := 0
	svc := &testLeadsService{
		listFn: func(_ context.Context, filters leads.ListFilters, _ string, limit int) (leads.Page, error) {
			captured = filters
			capturedLimit = limit
			return leads.Page{Total: 0}, nil
		},
	}

	pageID := uuid.New()
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/leads?status=delivered&page_id="+pageID.String()+"&form_id=form_1&limit=10", nil)
	resp := httptest.NewRecorder()
	LeadList(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if captured.Status == nil || *captured.Status != enums.LeadStatusDelivered {
		t.Fatalf("status filter not applied: %+v", captured)
	}
	if captured.PageID == nil || *captured.PageID != pageID {
		t.Fatalf("page filter not applied: %+v", captured)
	}
	if captured.FormID != "form_1" {
		t.Fatalf("form filter not applied: %+v", captured)
	}
	if capturedLimit != 10 {
		t.Fatalf("expected limit 10, got %d", capturedLimit)
	}
}

func TestLeadListRejectsBogusStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/leads?status=BOGUS", nil)
	resp := httptest.NewRecorder()
	LeadList(&testLeadsService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestLeadDetailNotFound(t *testing.T) {
	svc := &testLeadsService{
		getFn: func(context.Context, uuid.UUID) (*leads.Detail, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "lead not found")
		},
	}
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/leads/"+uuid.NewString(), nil),
		"leadId", uuid.NewString())
	resp := httptest.NewRecorder()
	LeadDetail(svc, testLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestLeadUpdateStatus(t *testing.T) {
	leadID := uuid.New()
	var gotStatus enums.LeadStatus
	svc := &testLeadsService{
		updateFn: func(_ context.Context, id uuid.UUID, status enums.LeadStatus) error {
			if id != leadID {
				t.Fatalf("unexpected lead id %s", id)
			}
			gotStatus = status
			return nil
		},
	}

	body := strings.NewReader(`{"status":"archived"}`)
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/api/v1/leads/"+leadID.String()+"/status", body),
		"leadId", leadID.String())
	resp := httptest.NewRecorder()
	LeadUpdateStatus(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if gotStatus != enums.LeadStatusArchived {
		t.Fatalf("expected ARCHIVED, got %s", gotStatus)
	}
}

func TestLeadBulkUpdateStatus(t *testing.T) {
	first := uuid.New()
	second := uuid.New()
	svc := &testLeadsService{
		bulkUpdateFn: func(_ context.Context, ids []uuid.UUID, status enums.LeadStatus) (int64, error) {
			if len(ids) != 2 {
				t.Fatalf("expected 2 ids, got %d", len(ids))
			}
			if status != enums.LeadStatusArchived {
				t.Fatalf("unexpected status %s", status)
			}
			return 2, nil
		},
	}

	body := strings.NewReader(`{"ids":["` + first.String() + `","` + second.String() + `"],"status":"archived"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/leads/bulk-status", body)
	resp := httptest.NewRecorder()
	LeadBulkUpdateStatus(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data map[string]int64 `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data["updated"] != 2 {
		t.Fatalf("expected 2 updated, got %d", envelope.Data["updated"])
	}
}

func TestLeadStats(t *testing.T) {
	svc := &testLeadsService{
		statsFn: func(context.Context) (leads.Stats, error) {
			return leads.Stats{
				Total:    3,
				ByStatus: map[enums.LeadStatus]int64{enums.LeadStatusNew: 1, enums.LeadStatusDelivered: 2},
				Last24h:  2,
			}, nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/leads/stats", nil)
	resp := httptest.NewRecorder()
	LeadStats(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data leads.Stats `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Total != 3 || envelope.Data.Last24h != 2 {
		t.Fatalf("unexpected stats %+v", envelope.Data)
	}
}
