package delivery

import (
	"encoding/json"
	"time"

	"github.com/leadrelay/leadrelay-backend/pkg/db/models"
	"github.com/leadrelay/leadrelay-backend/pkg/types"
)

// Payload is the JSON body posted to a destination. The shape is stable: new
// optional tiers may be null but never absent, so receivers can rely on keys.
type Payload struct {
	ID             string         `json:"id"`
	PlatformLeadID string         `json:"platform_lead_id"`
	Page           PayloadRef     `json:"page"`
	Form           PayloadRef     `json:"form"`
	Campaign       *PayloadRef    `json:"campaign"`
	Adset          *PayloadRef    `json:"adset"`
	Ad             *PayloadRef    `json:"ad"`
	Data           types.FieldMap `json:"data"`
	CreatedAt      time.Time      `json:"created_at"`
	DeliveredAt    time.Time      `json:"delivered_at"`
}

// PayloadRef is an id/name pair for a campaign tier or owning object.
type PayloadRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BuildPayload assembles the delivery body for a lead. The page argument may
// be nil when the association was not preloaded; the page ref then carries
// only the internal id.
func BuildPayload(lead *models.Lead, page *models.Page, deliveredAt time.Time) Payload {
	pageRef := PayloadRef{ID: lead.PageID.String()}
	if page != nil {
		pageRef = PayloadRef{ID: page.PlatformPageID, Name: page.Name}
	}

	data := lead.LeadData
	if data == nil {
		data = types.FieldMap{}
	}

	return Payload{
		ID:             lead.ID.String(),
		PlatformLeadID: lead.PlatformLeadID,
		Page:           pageRef,
		Form:           PayloadRef{ID: lead.FormID, Name: lead.FormName},
		Campaign:       tierRef(lead.CampaignID, lead.CampaignName),
		Adset:          tierRef(lead.AdsetID, lead.AdsetName),
		Ad:             tierRef(lead.AdID, lead.AdName),
		Data:           data,
		CreatedAt:      lead.CreatedAt.UTC(),
		DeliveredAt:    deliveredAt.UTC(),
	}
}

// Encode marshals the payload to the exact bytes that get signed and sent.
func (p Payload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

func tierRef(id, name *string) *PayloadRef {
	if id == nil || *id == "" {
		return nil
	}
	ref := PayloadRef{ID: *id}
	if name != nil {
		ref.Name = *name
	}
	return &ref
}
