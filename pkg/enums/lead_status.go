package enums

import "fmt"

// LeadStatus maps to the lead_status enum in Postgres.
type LeadStatus string

const (
	LeadStatusNew        LeadStatus = "NEW"
	LeadStatusProcessing LeadStatus = "PROCESSING"
	LeadStatusDelivered  LeadStatus = "DELIVERED"
	LeadStatusFailed     LeadStatus = "FAILED"
	LeadStatusArchived   LeadStatus = "ARCHIVED"
)

var validLeadStatuses = []LeadStatus{
	LeadStatusNew,
	LeadStatusProcessing,
	LeadStatusDelivered,
	LeadStatusFailed,
	LeadStatusArchived,
}

// IsValid checks whether the given status matches the canonical enum.
func (s LeadStatus) IsValid() bool {
	for _, candidate := range validLeadStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the lead's delivery lifecycle.
func (s LeadStatus) IsTerminal() bool {
	return s == LeadStatusDelivered || s == LeadStatusFailed || s == LeadStatusArchived
}

// ParseLeadStatus converts raw strings into LeadStatus.
func ParseLeadStatus(value string) (LeadStatus, error) {
	for _, candidate := range validLeadStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid lead status %q", value)
}
