package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/leadrelay/leadrelay-backend/api/responses"
	"github.com/leadrelay/leadrelay-backend/api/validators"
	"github.com/leadrelay/leadrelay-backend/internal/leads"
	"github.com/leadrelay/leadrelay-backend/pkg/enums"
	pkgerrors "github.com/leadrelay/leadrelay-backend/pkg/errors"
	"github.com/leadrelay/leadrelay-backend/pkg/logger"
	"github.com/leadrelay/leadrelay-backend/pkg/pagination"
)

// LeadList returns a filtered, cursor-paginated listing.
func LeadList(svc leads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filters, err := leadFiltersFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), filters, r.URL.Query().Get("cursor"), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// LeadDetail returns one lead with its full delivery history.
func LeadDetail(svc leads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "leadId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

type leadStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// LeadUpdateStatus moves one lead to a new status.
func LeadUpdateStatus(svc leads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "leadId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload leadStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.UpdateStatus(r.Context(), id, enums.LeadStatus(strings.ToUpper(payload.Status))); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}

type leadBulkStatusRequest struct {
	IDs    []string `json:"ids" validate:"required,min=1"`
	Status string   `json:"status" validate:"required"`
}

// LeadBulkUpdateStatus moves a batch of leads to a new status.
func LeadBulkUpdateStatus(svc leads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload leadBulkStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ids := make([]uuid.UUID, 0, len(payload.IDs))
		for _, raw := range payload.IDs {
			id, err := uuid.Parse(strings.TrimSpace(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid lead id").WithDetails(map[string]any{"id": raw}))
				return
			}
			ids = append(ids, id)
		}
		updated, err := svc.BulkUpdateStatus(r.Context(), ids, enums.LeadStatus(strings.ToUpper(payload.Status)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"updated": updated})
	}
}

// LeadStats reports aggregate counts over the lead table.
func LeadStats(svc leads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

func leadFiltersFromQuery(r *http.Request) (leads.ListFilters, error) {
	query := r.URL.Query()
	var filters leads.ListFilters

	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status := enums.LeadStatus(strings.ToUpper(raw))
		if !status.IsValid() {
			return leads.ListFilters{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
		}
		filters.Status = &status
	}
	if raw := strings.TrimSpace(query.Get("page_id")); raw != "" {
		pageID, err := uuid.Parse(raw)
		if err != nil {
			return leads.ListFilters{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid page_id filter")
		}
		filters.PageID = &pageID
	}
	filters.FormID = strings.TrimSpace(query.Get("form_id"))
	filters.CampaignID = strings.TrimSpace(query.Get("campaign_id"))
	filters.Search = validators.SanitizeString(query.Get("q"), 200)

	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return leads.ListFilters{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "created_after must be RFC3339")
		}
		filters.CreatedAfter = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_until")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return leads.ListFilters{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "created_until must be RFC3339")
		}
		filters.CreatedUntil = &ts
	}
	return filters, nil
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid identifier").WithDetails(map[string]any{"param": param})
	}
	return id, nil
}
