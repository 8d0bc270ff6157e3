package leads

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/leadrelay/leadrelay-backend/pkg/db/models"
	"github.com/leadrelay/leadrelay-backend/pkg/enums"
	"github.com/leadrelay/leadrelay-backend/pkg/pagination"
)

// Repository encapsulates lead query persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a leads repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// List returns a cursor-paginated page of leads, newest first.
func (r *Repository) List(ctx context.Context, filters ListFilters, cursor string, limit int) (Page, error) {
	normalizedLimit := pagination.NormalizeLimit(limit)
	limitWithBuffer := pagination.LimitWithBuffer(limit)
	decodedCursor, err := pagination.ParseCursor(strings.TrimSpace(cursor))
	if err != nil {
		return Page{}, err
	}

	query := r.applyFilters(r.db.WithContext(ctx).Model(&models.Lead{}), filters)

	if decodedCursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			decodedCursor.CreatedAt, decodedCursor.CreatedAt, decodedCursor.ID)
	}

	var records []models.Lead
	if err := query.
		Order("created_at DESC").Order("id DESC").
		Limit(limitWithBuffer).
		Find(&records).
		Error; err != nil {
		return Page{}, err
	}

	nextCursor := ""
	if len(records) > normalizedLimit {
		records = records[:normalizedLimit]
		last := records[len(records)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	var total int64
	if err := r.applyFilters(r.db.WithContext(ctx).Model(&models.Lead{}), filters).
		Count(&total).
		Error; err != nil {
		return Page{}, err
	}

	return Page{Leads: records, NextCursor: nextCursor, Total: total}, nil
}

func (r *Repository) applyFilters(query *gorm.DB, filters ListFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.PageID != nil {
		query = query.Where("page_id = ?", *filters.PageID)
	}
	if filters.FormID != "" {
		query = query.Where("form_id = ?", filters.FormID)
	}
	if filters.CampaignID != "" {
		query = query.Where("campaign_id = ?", filters.CampaignID)
	}
	if filters.Search != "" {
		needle := "%" + strings.ToLower(filters.Search) + "%"
		query = query.Where("LOWER(form_name) LIKE ? OR LOWER(COALESCE(campaign_name, '')) LIKE ?", needle, needle)
	}
	if filters.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filters.CreatedAfter)
	}
	if filters.CreatedUntil != nil {
		query = query.Where("created_at < ?", *filters.CreatedUntil)
	}
	return query
}

// FindByID loads a lead with its page.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	var lead models.Lead
	if err := r.db.WithContext(ctx).
		Preload("Page").
		First(&lead, "id = ?", id).
		Error; err != nil {
		return nil, err
	}
	return &lead, nil
}

// AttemptHistory returns the delivery ledger for a lead, oldest first, with
// destination names joined in.
func (r *Repository) AttemptHistory(ctx context.Context, leadID uuid.UUID) ([]AttemptView, error) {
	var views []AttemptView
	err := r.db.WithContext(ctx).
		Table("delivery_attempts a").
		Select("a.id, a.destination_id, d.name AS destination_name, a.status, a.status_code, a.response_body, a.error, a.attempt_number, a.next_retry_at, a.created_at, a.completed_at").
		Joins("JOIN destinations d ON d.id = a.destination_id").
		Where("a.lead_id = ?", leadID).
		Order("a.created_at ASC").
		Scan(&views).
		Error
	if err != nil {
		return nil, err
	}
	return views, nil
}

// UpdateStatus transitions a single lead. ProcessedAt is stamped on the
// DELIVERED transition and left untouched otherwise.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.LeadStatus, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Lead{}).
		Where("id = ?", id).
		Updates(statusUpdates(status, now))
	return result.RowsAffected, result.Error
}

// BulkUpdateStatus transitions many leads at once and reports how many rows
// actually changed.
func (r *Repository) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status enums.LeadStatus, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Lead{}).
		Where("id IN ?", ids).
		Updates(statusUpdates(status, now))
	return result.RowsAffected, result.Error
}

func statusUpdates(status enums.LeadStatus, now time.Time) map[string]any {
	updates := map[string]any{"status": status}
	if status == enums.LeadStatusDelivered {
		updates["processed_at"] = now
	}
	return updates
}

// Stats aggregates lead counts by status plus a trailing-24h count.
func (r *Repository) Stats(ctx context.Context, now time.Time) (Stats, error) {
	type statusCount struct {
		Status enums.LeadStatus
		Count  int64
	}
	var rows []statusCount
	if err := r.db.WithContext(ctx).
		Model(&models.Lead{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).
		Error; err != nil {
		return Stats{}, err
	}

	stats := Stats{ByStatus: make(map[enums.LeadStatus]int64)}
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.Count
		stats.Total += row.Count
	}
	if stats.Total > 0 {
		stats.DeliveryRate = float64(stats.ByStatus[enums.LeadStatusDelivered]) / float64(stats.Total)
	}

	if err := r.db.WithContext(ctx).
		Model(&models.Lead{}).
		Where("created_at >= ?", now.Add(-24*time.Hour)).
		Count(&stats.Last24h).
		Error; err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// DeleteArchivedBefore removes ARCHIVED leads older than the cutoff,
// cascading their ledger rows. Leads in any other status are never touched.
func (r *Repository) DeleteArchivedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	db := tx
	if db == nil {
		db = r.db
	}
	result := db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.LeadStatusArchived, cutoff).
		Delete(&models.Lead{})
	return result.RowsAffected, result.Error
}
