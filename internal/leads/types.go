package leads

import (
	"time"

	"github.com/google/uuid"

	"github.com/leadrelay/leadrelay-backend/pkg/db/models"
	"github.com/leadrelay/leadrelay-backend/pkg/enums"
)

// ListFilters narrow the lead listing. Search matches form and campaign
// names case-insensitively.
type ListFilters struct {
	Status       *enums.LeadStatus
	PageID       *uuid.UUID
	FormID       string
	CampaignID   string
	Search       string
	CreatedAfter *time.Time
	CreatedUntil *time.Time
}

// Page is one cursor-paginated slice of leads.
type Page struct {
	Leads      []models.Lead `json:"leads"`
	NextCursor string        `json:"next_cursor,omitempty"`
	Total      int64         `json:"total"`
}

// AttemptView is one ledger row joined with its destination name for the
// lead detail endpoint.
type AttemptView struct {
	ID              uuid.UUID            `json:"id"`
	DestinationID   uuid.UUID            `json:"destination_id"`
	DestinationName string               `json:"destination_name"`
	Status          enums.DeliveryStatus `json:"status"`
	StatusCode      *int                 `json:"status_code"`
	ResponseBody    *string              `json:"response_body"`
	Error           *string              `json:"error"`
	AttemptNumber   int                  `json:"attempt_number"`
	NextRetryAt     *time.Time           `json:"next_retry_at"`
	CreatedAt       time.Time            `json:"created_at"`
	CompletedAt     *time.Time           `json:"completed_at"`
}

// Detail is a lead with its full delivery history.
type Detail struct {
	Lead     models.Lead   `json:"lead"`
	Attempts []AttemptView `json:"attempts"`
}

// Stats aggregates the lead table by status. DeliveryRate is the DELIVERED
// share of all stored leads.
type Stats struct {
	Total        int64                      `json:"total"`
	ByStatus     map[enums.LeadStatus]int64 `json:"by_status"`
	Last24h      int64                      `json:"last_24h"`
	DeliveryRate float64                    `json:"delivery_rate"`
}
