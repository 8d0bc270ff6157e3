package destinations

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

// Repository encapsulates destination persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a destinations repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a destination.
func (r *Repository) Create(ctx context.Context, dest *models.Destination) error {
	return r.db.WithContext(ctx).Create(dest).Error
}

// Update persists the mutated destination fields.
func (r *Repository) Update(ctx context.Context, dest *models.Destination) error {
	return r.db.WithContext(ctx).Save(dest).Error
}

// Delete removes the destination; bindings and ledger rows cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.Destination{}, "id = ?", id)
	return result.RowsAffected, result.Error
}

// FindByID loads a destination.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Destination, error) {
	var dest models.Destination
	if err := r.db.WithContext(ctx).First(&dest, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &dest, nil
}

// List returns a cursor-paginated page of destinations, newest first.
func (r *Repository) List(ctx context.Context, accountID *uuid.UUID, cursor string, limit int) (Page, error) {
	normalizedLimit := pagination.NormalizeLimit(limit)
	limitWithBuffer := pagination.LimitWithBuffer(limit)
	decodedCursor, err := pagination.ParseCursor(strings.TrimSpace(cursor))
	if err != nil {
		return Page{}, err
	}

	base := r.db.WithContext(ctx).Model(&models.Destination{})
	if accountID != nil {
		base = base.Where("account_id = ?", *accountID)
	}

	query := base.Session(&gorm.Session{})
	if decodedCursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			decodedCursor.CreatedAt, decodedCursor.CreatedAt, decodedCursor.ID)
	}

	var records []models.Destination
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
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return Page{}, err
	}

	return Page{Destinations: records, NextCursor: nextCursor, Total: total}, nil
}

// ReplaceBindings swaps the destination's page bindings for the provided set
// inside one transaction.
func (r *Repository) ReplaceBindings(ctx context.Context, destinationID uuid.UUID, pageIDs []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("destination_id = ?", destinationID).
			Delete(&models.DestinationBinding{}).
			Error; err != nil {
			return err
		}
		for _, pageID := range pageIDs {
			binding := models.DestinationBinding{
				ID:            uuid.New(),
				DestinationID: destinationID,
				PageID:        pageID,
				IsActive:      true,
			}
			if err := tx.Create(&binding).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Bindings lists the destination's page bindings.
func (r *Repository) Bindings(ctx context.Context, destinationID uuid.UUID) ([]models.DestinationBinding, error) {
	var bindings []models.DestinationBinding
	if err := r.db.WithContext(ctx).
		Where("destination_id = ?", destinationID).
		Order("created_at ASC").
		Find(&bindings).
		Error; err != nil {
		return nil, err
	}
	return bindings, nil
}

// Stats aggregates the destination's ledger rows by status.
func (r *Repository) Stats(ctx context.Context, destinationID uuid.UUID) (Stats, error) {
	type statusCount struct {
		Status enums.DeliveryStatus
		Count  int64
	}
	var rows []statusCount
	if err := r.db.WithContext(ctx).
		Model(&models.DeliveryAttempt{}).
		Select("status, COUNT(*) AS count").
		Where("destination_id = ?", destinationID).
		Group("status").
		Scan(&rows).
		Error; err != nil {
		return Stats{}, err
	}

	stats := Stats{ByStatus: make(map[enums.DeliveryStatus]int64)}
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.Count
		stats.Total += row.Count
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.ByStatus[enums.DeliveryStatusSuccess]) / float64(stats.Total)
	}
	return stats, nil
}

// StatsForDestinations aggregates ledger rows for many destinations in one
// query, keyed by destination id. Destinations with no attempts are absent.
func (r *Repository) StatsForDestinations(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Stats, error) {
	stats := make(map[uuid.UUID]Stats, len(ids))
	if len(ids) == 0 {
		return stats, nil
	}

	type destStatusCount struct {
		DestinationID uuid.UUID
		Status        enums.DeliveryStatus
		Count         int64
	}
	var rows []destStatusCount
	if err := r.db.WithContext(ctx).
		Model(&models.DeliveryAttempt{}).
		Select("destination_id, status, COUNT(*) AS count").
		Where("destination_id IN ?", ids).
		Group("destination_id").Group("status").
		Scan(&rows).
		Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		entry, ok := stats[row.DestinationID]
		if !ok {
			entry = Stats{ByStatus: make(map[enums.DeliveryStatus]int64)}
		}
		entry.ByStatus[row.Status] = row.Count
		entry.Total += row.Count
		stats[row.DestinationID] = entry
	}
	for id, entry := range stats {
		if entry.Total > 0 {
			entry.SuccessRate = float64(entry.ByStatus[enums.DeliveryStatusSuccess]) / float64(entry.Total)
			stats[id] = entry
		}
	}
	return stats, nil
}

// DeleteAttemptsBefore removes finished ledger rows older than the cutoff.
// Parked RETRYING rows are kept regardless of age.
func (r *Repository) DeleteAttemptsBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	db := tx
	if db == nil {
		db = r.db
	}
	result := db.WithContext(ctx).
		Where("created_at < ? AND status IN ?", cutoff,
			[]enums.DeliveryStatus{enums.DeliveryStatusSuccess, enums.DeliveryStatusFailed}).
		Delete(&models.DeliveryAttempt{})
	return result.RowsAffected, result.Error
}
