package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leadrelay/leadrelay-backend/api/responses"
	"github.com/leadrelay/leadrelay-backend/api/validators"
	"github.com/leadrelay/leadrelay-backend/internal/destinations"
	"github.com/leadrelay/leadrelay-backend/pkg/db/models"
	"github.com/leadrelay/leadrelay-backend/pkg/enums"
	pkgerrors "github.com/leadrelay/leadrelay-backend/pkg/errors"
	"github.com/leadrelay/leadrelay-backend/pkg/logger"
	"github.com/leadrelay/leadrelay-backend/pkg/pagination"
	"github.com/leadrelay/leadrelay-backend/pkg/types"
)

type destinationCreateRequest struct {
	AccountID     string         `json:"account_id" validate:"required"`
	Name          string         `json:"name" validate:"required"`
	URL           string         `json:"url" validate:"required"`
	Method        string         `json:"method"`
	Headers       types.FieldMap `json:"headers"`
	AuthType      string         `json:"auth_type"`
	AuthConfig    types.FieldMap `json:"auth_config"`
	SigningSecret string         `json:"signing_secret"`
	RetryCount    *int           `json:"retry_count"`
	TimeoutMS     *int           `json:"timeout_ms"`
}

func (r destinationCreateRequest) toInput() (destinations.CreateInput, error) {
	accountID, err := uuid.Parse(strings.TrimSpace(r.AccountID))
	if err != nil {
		return destinations.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid account_id")
	}
	return destinations.CreateInput{
		AccountID:     accountID,
		Name:          r.Name,
		URL:           r.URL,
		Method:        enums.HTTPMethod(strings.ToUpper(strings.TrimSpace(r.Method))),
		Headers:       r.Headers,
		AuthType:      enums.AuthType(strings.ToUpper(strings.TrimSpace(r.AuthType))),
		AuthConfig:    r.AuthConfig,
		SigningSecret: r.SigningSecret,
		RetryCount:    r.RetryCount,
		TimeoutMS:     r.TimeoutMS,
	}, nil
}

// DestinationCreate registers a new delivery destination.
func DestinationCreate(svc *destinations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload destinationCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		created, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, destinationResponseFromModel(created))
	}
}

type destinationUpdateRequest struct {
	Name       *string         `json:"name"`
	URL        *string         `json:"url"`
	Method     *string         `json:"method"`
	Headers    *types.FieldMap `json:"headers"`
	AuthType   *string         `json:"auth_type"`
	AuthConfig *types.FieldMap `json:"auth_config"`
	RetryCount *int            `json:"retry_count"`
	TimeoutMS  *int            `json:"timeout_ms"`
	IsActive   *bool           `json:"is_active"`
}

func (r destinationUpdateRequest) toInput() destinations.UpdateInput {
	input := destinations.UpdateInput{
		Name:       r.Name,
		URL:        r.URL,
		Headers:    r.Headers,
		AuthConfig: r.AuthConfig,
		RetryCount: r.RetryCount,
		TimeoutMS:  r.TimeoutMS,
		IsActive:   r.IsActive,
	}
	if r.Method != nil {
		method := enums.HTTPMethod(strings.ToUpper(strings.TrimSpace(*r.Method)))
		input.Method = &method
	}
	if r.AuthType != nil {
		authType := enums.AuthType(strings.ToUpper(strings.TrimSpace(*r.AuthType)))
		input.AuthType = &authType
	}
	return input
}

// DestinationUpdate applies a partial mutation.
func DestinationUpdate(svc *destinations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "destinationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload destinationUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.Update(r.Context(), id, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, destinationResponseFromModel(updated))
	}
}

// DestinationDelete removes a destination and its bindings.
func DestinationDelete(svc *destinations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "destinationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// DestinationDetail loads one destination.
func DestinationDetail(svc *destinations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "destinationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dest, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, destinationResponseFromModel(dest))
	}
}

// DestinationList returns a cursor-paginated page of destinations.
func DestinationList(svc *destinations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var accountID *uuid.UUID
		if raw := strings.TrimSpace(r.URL.Query().Get("account_id")); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid account_id filter"))
				return
			}
			accountID = &parsed
		}

		page, err := svc.List(r.Context(), accountID, r.URL.Query().Get("cursor"), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]destinationResponse, 0, len(page.Destinations))
		for i := range page.Destinations {
			item := destinationResponseFromModel(&page.Destinations[i])
			if stats, ok := page.Stats[page.Destinations[i].ID]; ok {
				item.Stats = &stats
			}
			items = append(items, item)
		}
		responses.WriteSuccess(w, map[string]any{
			"destinations": items,
			"next_cursor":  page.NextCursor,
			"total":        page.Total,
		})
	}
}

type destinationBindingsRequest struct {
	PageIDs []string `json:"page_ids" validate:"required"`
}

// DestinationSetBindings replaces the destination's page bindings.
func DestinationSetBindings(svc *destinations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "destinationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload destinationBindingsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pageIDs := make([]uuid.UUID, 0, len(payload.PageIDs))
		for _, raw := range payload.PageIDs {
			pageID, err := uuid.Parse(strings.TrimSpace(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid page id").WithDetails(map[string]any{"id": raw}))
				return
			}
			pageIDs = append(pageIDs, pageID)
		}
		if err := svc.SetBindings(r.Context(), id, pageIDs); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}

// DestinationBindings lists the destination's page bindings.
func DestinationBindings(svc *destinations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "destinationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bindings, err := svc.Bindings(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"bindings": bindings})
	}
}

// DestinationStats aggregates the destination's delivery ledger.
func DestinationStats(svc *destinations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "destinationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stats, err := svc.Stats(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

// DestinationTestDelivery sends a synthetic lead and reports the outcome.
func DestinationTestDelivery(svc *destinations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "destinationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.TestDelivery(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// destinationResponse is the public shape of a destination. The signing
// secret and auth config never leave the service.
type destinationResponse struct {
	ID            uuid.UUID        `json:"id"`
	AccountID     uuid.UUID        `json:"account_id"`
	Name          string           `json:"name"`
	URL           string           `json:"url"`
	Method        enums.HTTPMethod `json:"method"`
	Headers       types.FieldMap   `json:"headers,omitempty"`
	AuthType      enums.AuthType   `json:"auth_type"`
	RetryCount    int              `json:"retry_count"`
	TimeoutMS     int              `json:"timeout_ms"`
	IsActive      bool             `json:"is_active"`
	LastSuccessAt *string          `json:"last_success_at"`
	LastFailureAt *string          `json:"last_failure_at"`
	CreatedAt     string           `json:"created_at"`
	UpdatedAt     string           `json:"updated_at"`

	Stats *destinations.Stats `json:"stats,omitempty"`
}

func destinationResponseFromModel(m *models.Destination) destinationResponse {
	resp := destinationResponse{
		ID:         m.ID,
		AccountID:  m.AccountID,
		Name:       m.Name,
		URL:        m.URL,
		Method:     m.Method,
		Headers:    m.Headers,
		AuthType:   m.AuthType,
		RetryCount: m.RetryCount,
		TimeoutMS:  m.TimeoutMS,
		IsActive:   m.IsActive,
		CreatedAt:  m.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  m.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if m.LastSuccessAt != nil {
		v := m.LastSuccessAt.UTC().Format(time.RFC3339)
		resp.LastSuccessAt = &v
	}
	if m.LastFailureAt != nil {
		v := m.LastFailureAt.UTC().Format(time.RFC3339)
		resp.LastFailureAt = &v
	}
	return resp
}
