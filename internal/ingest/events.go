package ingest

import (
	"encoding/json"

	pkgerrors "github.com/leadrelay/leadrelay-backend/pkg/errors"
)

// WebhookEvent is the envelope posted by the ad platform. One event can carry
// multiple entries and each entry multiple changes.
type WebhookEvent struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the changes reported for a single page.
type Entry struct {
	ID      string   `json:"id"`
	Time    int64    `json:"time"`
	Changes []Change `json:"changes"`
}

// Change describes one field-level notification.
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue carries the leadgen identifiers for a new lead.
type ChangeValue struct {
	LeadgenID   string `json:"leadgen_id"`
	PageID      string `json:"page_id"`
	FormID      string `json:"form_id"`
	AdgroupID   string `json:"adgroup_id"`
	AdID        string `json:"ad_id"`
	CreatedTime int64  `json:"created_time"`
}

const leadgenField = "leadgen"

// ParseEvent decodes a raw webhook payload.
func ParseEvent(payload []byte) (WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return WebhookEvent{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook payload")
	}
	return event, nil
}

// LeadgenChanges flattens the event into the leadgen changes it carries,
// skipping everything else.
func (e WebhookEvent) LeadgenChanges() []ChangeValue {
	var values []ChangeValue
	for _, entry := range e.Entry {
		for _, change := range entry.Changes {
			if change.Field != leadgenField {
				continue
			}
			value := change.Value
			if value.PageID == "" {
				value.PageID = entry.ID
			}
			values = append(values, value)
		}
	}
	return values
}
