package destinations

import (
	"time"

	"github.com/google/uuid"

	"github.com/leadrelay/leadrelay-backend/pkg/db/models"
	"github.com/leadrelay/leadrelay-backend/pkg/enums"
	"github.com/leadrelay/leadrelay-backend/pkg/types"
)

// CreateInput carries a new destination definition. SigningSecret is
// generated when empty.
type CreateInput struct {
	AccountID     uuid.UUID
	Name          string
	URL           string
	Method        enums.HTTPMethod
	Headers       types.FieldMap
	AuthType      enums.AuthType
	AuthConfig    types.FieldMap
	SigningSecret string
	RetryCount    *int
	TimeoutMS     *int
}

// UpdateInput mutates an existing destination. Nil fields stay untouched.
type UpdateInput struct {
	Name       *string
	URL        *string
	Method     *enums.HTTPMethod
	Headers    *types.FieldMap
	AuthType   *enums.AuthType
	AuthConfig *types.FieldMap
	RetryCount *int
	TimeoutMS  *int
	IsActive   *bool
}

// Page is one cursor-paginated slice of destinations. Stats carries the
// ledger aggregate for each listed destination.
type Page struct {
	Destinations []models.Destination `json:"destinations"`
	Stats        map[uuid.UUID]Stats  `json:"-"`
	NextCursor   string               `json:"next_cursor,omitempty"`
	Total        int64                `json:"total"`
}

// Stats aggregates a destination's ledger rows by status.
type Stats struct {
	Total         int64                          `json:"total"`
	ByStatus      map[enums.DeliveryStatus]int64 `json:"by_status"`
	SuccessRate   float64                        `json:"success_rate"`
	LastSuccessAt *time.Time                     `json:"last_success_at"`
	LastFailureAt *time.Time                     `json:"last_failure_at"`
}

// TestResult reports the outcome of a synchronous test delivery. Test
// deliveries never touch the ledger.
type TestResult struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code,omitempty"`
	Body       string `json:"body,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}
