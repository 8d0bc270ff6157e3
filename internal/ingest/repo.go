package ingest

import (
	"context"

	"gorm.io/gorm"

	"github.com/leadrelay/leadrelay-backend/pkg/db/models"
)

// LeadDedupConstraint is the unique constraint guarding one lead row per
// platform lead id.
const LeadDedupConstraint = "uq_leads_platform_lead_id"

// Repository encapsulates ingestion persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an ingestion repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindPageByPlatformID loads the connected page for a platform page id.
func (r *Repository) FindPageByPlatformID(ctx context.Context, platformPageID string) (*models.Page, error) {
	var page models.Page
	if err := r.db.WithContext(ctx).
		Where("platform_page_id = ?", platformPageID).
		First(&page).
		Error; err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateLead inserts the lead row. The unique constraint on platform_lead_id
// rejects duplicates; callers translate that into a dedup no-op.
func (r *Repository) CreateLead(ctx context.Context, lead *models.Lead) error {
	return r.db.WithContext(ctx).Create(lead).Error
}
