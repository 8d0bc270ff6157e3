package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/leadrelay/leadrelay-backend/pkg/enums"
	"github.com/leadrelay/leadrelay-backend/pkg/types"
)

// Lead represents one captured lead submission. The platform lead id is the
// dedup key: the unique index backs the ingestion pipeline's
// check-then-create so duplicate webhook deliveries collapse to one row.
// LeadData is immutable after creation; only Status and ProcessedAt mutate.
type Lead struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PlatformLeadID string           `gorm:"column:platform_lead_id;uniqueIndex:idx_leads_platform_lead_id;not null"`
	PageID         uuid.UUID        `gorm:"column:page_id;type:uuid;not null"`
	FormID         string           `gorm:"column:form_id;not null"`
	FormName       string           `gorm:"column:form_name;not null"`
	CampaignID     *string          `gorm:"column:campaign_id"`
	CampaignName   *string          `gorm:"column:campaign_name"`
	AdsetID        *string          `gorm:"column:adset_id"`
	AdsetName      *string          `gorm:"column:adset_name"`
	AdID           *string          `gorm:"column:ad_id"`
	AdName         *string          `gorm:"column:ad_name"`
	LeadData       types.FieldMap   `gorm:"column:lead_data;type:jsonb;not null"`
	Status         enums.LeadStatus `gorm:"column:status;type:lead_status;not null;default:'NEW'"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	ProcessedAt    *time.Time       `gorm:"column:processed_at"`

	Page *Page `gorm:"foreignKey:PageID"`
}
