package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/leadrelay/leadrelay-backend/pkg/db/models"
	"github.com/leadrelay/leadrelay-backend/pkg/enums"
)

// Repository encapsulates delivery persistence: the attempt ledger plus the
// destination resolution query.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a delivery repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ActiveDestinationsForPage resolves the destinations a lead from this page
// fans out to. All gates must hold: the binding exists and is active, the
// destination is active, and the page itself is still active. The page gate
// matters on retry resumption, where nothing upstream has checked it.
func (r *Repository) ActiveDestinationsForPage(ctx context.Context, pageID uuid.UUID) ([]models.Destination, error) {
	var destinations []models.Destination
	err := r.db.WithContext(ctx).
		Table("destinations d").
		Select("d.*").
		Joins("JOIN destination_bindings b ON b.destination_id = d.id").
		Joins("JOIN pages p ON p.id = b.page_id").
		Where("b.page_id = ? AND b.is_active AND d.is_active AND p.is_active", pageID).
		Order("d.created_at ASC").
		Scan(&destinations).
		Error
	if err != nil {
		return nil, err
	}
	return destinations, nil
}

// FindLead loads a lead with its page for payload building.
func (r *Repository) FindLead(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	var lead models.Lead
	if err := r.db.WithContext(ctx).
		Preload("Page").
		First(&lead, "id = ?", id).
		Error; err != nil {
		return nil, err
	}
	return &lead, nil
}

// FindDestination loads a destination by id.
func (r *Repository) FindDestination(ctx context.Context, id uuid.UUID) (*models.Destination, error) {
	var dest models.Destination
	if err := r.db.WithContext(ctx).
		First(&dest, "id = ?", id).
		Error; err != nil {
		return nil, err
	}
	return &dest, nil
}

// CreateAttempt inserts a fresh PENDING ledger row.
func (r *Repository) CreateAttempt(ctx context.Context, attempt *models.DeliveryAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

// CompleteAttempt writes the final state of an attempt row in place.
func (r *Repository) CompleteAttempt(ctx context.Context, attempt *models.DeliveryAttempt) error {
	return r.db.WithContext(ctx).
		Model(&models.DeliveryAttempt{}).
		Where("id = ?", attempt.ID).
		Updates(map[string]any{
			"status":        attempt.Status,
			"status_code":   attempt.StatusCode,
			"response_body": attempt.ResponseBody,
			"error":         attempt.Error,
			"next_retry_at": attempt.NextRetryAt,
			"completed_at":  attempt.CompletedAt,
		}).
		Error
}

// ClaimRetry finalizes a RETRYING row to FAILED, returning true only for the
// caller that won the guarded update. Exactly one of the in-process timer and
// the retry worker can claim a given row.
func (r *Repository) ClaimRetry(ctx context.Context, attemptID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.DeliveryAttempt{}).
		Where("id = ? AND status = ?", attemptID, enums.DeliveryStatusRetrying).
		Updates(map[string]any{
			"status":        enums.DeliveryStatusFailed,
			"next_retry_at": nil,
			"completed_at":  now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// DueRetries returns RETRYING rows whose next_retry_at has passed, oldest
// first. The retry worker claims each row before acting on it.
func (r *Repository) DueRetries(ctx context.Context, now time.Time, limit int) ([]models.DeliveryAttempt, error) {
	var attempts []models.DeliveryAttempt
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", enums.DeliveryStatusRetrying, now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&attempts).
		Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

// UpdateLeadStatus transitions the lead-level rollup status. A FAILED rollup
// never downgrades a lead that another destination already delivered.
func (r *Repository) UpdateLeadStatus(ctx context.Context, leadID uuid.UUID, status enums.LeadStatus, processedAt *time.Time) error {
	updates := map[string]any{"status": status}
	if processedAt != nil {
		updates["processed_at"] = processedAt
	}
	query := r.db.WithContext(ctx).
		Model(&models.Lead{}).
		Where("id = ?", leadID)
	if status == enums.LeadStatusFailed {
		query = query.Where("status <> ?", enums.LeadStatusDelivered)
	}
	return query.Updates(updates).Error
}

// MarkDestinationSuccess stamps the destination's last successful delivery.
func (r *Repository) MarkDestinationSuccess(ctx context.Context, destinationID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Destination{}).
		Where("id = ?", destinationID).
		Update("last_success_at", at).
		Error
}

// MarkDestinationFailure stamps the destination's last failed delivery.
func (r *Repository) MarkDestinationFailure(ctx context.Context, destinationID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Destination{}).
		Where("id = ?", destinationID).
		Update("last_failure_at", at).
		Error
}
