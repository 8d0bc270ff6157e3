package leads

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/leadrelay/leadrelay-backend/pkg/db/models"
	"github.com/leadrelay/leadrelay-backend/pkg/enums"
	"github.com/leadrelay/leadrelay-backend/pkg/types"
)

func setupLeadsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS pages (
  id TEXT PRIMARY KEY,
  account_id TEXT NOT NULL,
  platform_page_id TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  access_token TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS leads (
  id TEXT PRIMARY KEY,
  platform_lead_id TEXT NOT NULL UNIQUE,
  page_id TEXT NOT NULL,
  form_id TEXT NOT NULL,
  form_name TEXT NOT NULL,
  campaign_id TEXT,
  campaign_name TEXT,
  adset_id TEXT,
  adset_name TEXT,
  ad_id TEXT,
  ad_name TEXT,
  lead_data TEXT NOT NULL DEFAULT '{}',
  status TEXT NOT NULL DEFAULT 'NEW',
  created_at DATETIME,
  processed_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS destinations (
  id TEXT PRIMARY KEY,
  account_id TEXT NOT NULL,
  name TEXT NOT NULL,
  url TEXT NOT NULL,
  method TEXT NOT NULL DEFAULT 'POST',
  headers TEXT,
  auth_type TEXT NOT NULL DEFAULT 'NONE',
  auth_config TEXT,
  signing_secret TEXT NOT NULL,
  retry_count INTEGER NOT NULL DEFAULT 3,
  timeout_ms INTEGER NOT NULL DEFAULT 30000,
  is_active INTEGER NOT NULL DEFAULT 1,
  last_success_at DATETIME,
  last_failure_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS delivery_attempts (
  id TEXT PRIMARY KEY,
  destination_id TEXT NOT NULL,
  lead_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'PENDING',
  status_code INTEGER,
  response_body TEXT,
  error TEXT,
  attempt_number INTEGER NOT NULL DEFAULT 0,
  next_retry_at DATETIME,
  created_at DATETIME,
  completed_at DATETIME
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedLead(t *testing.T, db *gorm.DB, pageID uuid.UUID, platformLeadID string, status enums.LeadStatus, createdAt time.Time) models.Lead {
	t.Helper()
	lead := models.Lead{
		ID:             uuid.New(),
		PlatformLeadID: platformLeadID,
		PageID:         pageID,
		FormID:         "form_9",
		FormName:       "Contact Form",
		LeadData:       types.FieldMap{"email": "jane@example.com"},
		Status:         status,
		CreatedAt:      createdAt,
	}
	require.NoError(t, db.Create(&lead).Error)
	return lead
}

func TestRepositoryListFiltersAndPaginates(t *testing.T) {
	db := setupLeadsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	pageID := uuid.New()
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		status := enums.LeadStatusNew
		if i%2 == 1 {
			status = enums.LeadStatusDelivered
		}
		seedLead(t, db, pageID, fmt.Sprintf("lead_%d", i), status, base.Add(time.Duration(i)*time.Minute))
	}

	// first page, newest first
	page, err := repo.List(ctx, ListFilters{}, "", 2)
	require.NoError(t, err)
	require.Len(t, page.Leads, 2)
	assert.Equal(t, "lead_4", page.Leads[0].PlatformLeadID)
	assert.Equal(t, "lead_3", page.Leads[1].PlatformLeadID)
	assert.NotEmpty(t, page.NextCursor)
	assert.EqualValues(t, 5, page.Total)

	// follow the cursor
	next, err := repo.List(ctx, ListFilters{}, page.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, next.Leads, 2)
	assert.Equal(t, "lead_2", next.Leads[0].PlatformLeadID)

	// status filter
	delivered := enums.LeadStatusDelivered
	filtered, err := repo.List(ctx, ListFilters{Status: &delivered}, "", 10)
	require.NoError(t, err)
	assert.Len(t, filtered.Leads, 2)
	assert.EqualValues(t, 2, filtered.Total)
	assert.Empty(t, filtered.NextCursor)
}

func TestRepositoryListSearchAndCampaignFilters(t *testing.T) {
	db := setupLeadsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	pageID := uuid.New()
	now := time.Now().UTC()

	campaign := "camp_42"
	campaignName := "Spring Promo"
	lead := models.Lead{
		ID:             uuid.New(),
		PlatformLeadID: "lead_campaign",
		PageID:         pageID,
		FormID:         "form_1",
		FormName:       "Demo Request",
		CampaignID:     &campaign,
		CampaignName:   &campaignName,
		LeadData:       types.FieldMap{"email": "jane@example.com"},
		Status:         enums.LeadStatusNew,
		CreatedAt:      now,
	}
	require.NoError(t, db.Create(&lead).Error)
	seedLead(t, db, pageID, "lead_other", enums.LeadStatusNew, now)

	byCampaign, err := repo.List(ctx, ListFilters{CampaignID: "camp_42"}, "", 10)
	require.NoError(t, err)
	require.Len(t, byCampaign.Leads, 1)
	assert.Equal(t, "lead_campaign", byCampaign.Leads[0].PlatformLeadID)

	bySearch, err := repo.List(ctx, ListFilters{Search: "spring"}, "", 10)
	require.NoError(t, err)
	require.Len(t, bySearch.Leads, 1)
	assert.Equal(t, "lead_campaign", bySearch.Leads[0].PlatformLeadID)

	byFormName, err := repo.List(ctx, ListFilters{Search: "contact"}, "", 10)
	require.NoError(t, err)
	require.Len(t, byFormName.Leads, 1)
	assert.Equal(t, "lead_other", byFormName.Leads[0].PlatformLeadID)
}

func TestRepositoryAttemptHistoryJoinsDestinationName(t *testing.T) {
	db := setupLeadsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	lead := seedLead(t, db, uuid.New(), "lead_1", enums.LeadStatusNew, time.Now().UTC())

	dest := models.Destination{
		ID:            uuid.New(),
		AccountID:     uuid.New(),
		Name:          "CRM",
		URL:           "http://dest.test/hook",
		Method:        enums.HTTPMethodPost,
		AuthType:      enums.AuthTypeNone,
		SigningSecret: "secret",
	}
	require.NoError(t, db.Create(&dest).Error)

	code := 503
	for i := 0; i < 2; i++ {
		attempt := models.DeliveryAttempt{
			ID:            uuid.New(),
			DestinationID: dest.ID,
			LeadID:        lead.ID,
			Status:        enums.DeliveryStatusFailed,
			StatusCode:    &code,
			AttemptNumber: i,
			CreatedAt:     time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, db.Create(&attempt).Error)
	}

	history, err := repo.AttemptHistory(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "CRM", history[0].DestinationName)
	assert.Equal(t, 0, history[0].AttemptNumber)
	assert.Equal(t, 1, history[1].AttemptNumber)
	require.NotNil(t, history[0].StatusCode)
	assert.Equal(t, 503, *history[0].StatusCode)
}

func TestRepositoryUpdateStatus(t *testing.T) {
	db := setupLeadsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	lead := seedLead(t, db, uuid.New(), "lead_1", enums.LeadStatusNew, time.Now().UTC())

	rows, err := repo.UpdateStatus(ctx, lead.ID, enums.LeadStatusArchived, time.Now().UTC())
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	rows, err = repo.UpdateStatus(ctx, uuid.New(), enums.LeadStatusArchived, time.Now().UTC())
	require.NoError(t, err)
	assert.EqualValues(t, 0, rows)
}

func TestRepositoryUpdateStatusStampsProcessedAt(t *testing.T) {
	db := setupLeadsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	lead := seedLead(t, db, uuid.New(), "lead_1", enums.LeadStatusProcessing, time.Now().UTC())
	now := time.Now().UTC().Truncate(time.Second)

	rows, err := repo.UpdateStatus(ctx, lead.ID, enums.LeadStatusDelivered, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	var stored models.Lead
	require.NoError(t, db.First(&stored, "id = ?", lead.ID).Error)
	require.NotNil(t, stored.ProcessedAt)
	assert.WithinDuration(t, now, *stored.ProcessedAt, time.Second)

	rows, err = repo.UpdateStatus(ctx, lead.ID, enums.LeadStatusArchived, now.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	require.NoError(t, db.First(&stored, "id = ?", lead.ID).Error)
	require.NotNil(t, stored.ProcessedAt)
	assert.WithinDuration(t, now, *stored.ProcessedAt, time.Second)
}

func TestRepositoryBulkUpdateStatus(t *testing.T) {
	db := setupLeadsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	pageID := uuid.New()
	first := seedLead(t, db, pageID, "lead_1", enums.LeadStatusNew, time.Now().UTC())
	second := seedLead(t, db, pageID, "lead_2", enums.LeadStatusNew, time.Now().UTC())

	rows, err := repo.BulkUpdateStatus(ctx, []uuid.UUID{first.ID, second.ID, uuid.New()}, enums.LeadStatusArchived, time.Now().UTC())
	require.NoError(t, err)
	assert.EqualValues(t, 2, rows)
}

func TestRepositoryStats(t *testing.T) {
	db := setupLeadsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	pageID := uuid.New()
	now := time.Now().UTC()

	seedLead(t, db, pageID, "lead_1", enums.LeadStatusNew, now.Add(-time.Hour))
	seedLead(t, db, pageID, "lead_2", enums.LeadStatusDelivered, now.Add(-time.Hour))
	seedLead(t, db, pageID, "lead_3", enums.LeadStatusDelivered, now.Add(-48*time.Hour))

	stats, err := repo.Stats(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 1, stats.ByStatus[enums.LeadStatusNew])
	assert.EqualValues(t, 2, stats.ByStatus[enums.LeadStatusDelivered])
	assert.EqualValues(t, 2, stats.Last24h)
	assert.InDelta(t, 2.0/3.0, stats.DeliveryRate, 0.001)
}

func TestRepositoryDeleteArchivedBefore(t *testing.T) {
	db := setupLeadsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	pageID := uuid.New()
	now := time.Now().UTC()

	seedLead(t, db, pageID, "old_archived", enums.LeadStatusArchived, now.Add(-100*24*time.Hour))
	seedLead(t, db, pageID, "old_delivered", enums.LeadStatusDelivered, now.Add(-100*24*time.Hour))
	seedLead(t, db, pageID, "fresh_archived", enums.LeadStatusArchived, now)

	deleted, err := repo.DeleteArchivedBefore(ctx, nil, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	var remaining int64
	require.NoError(t, db.Model(&models.Lead{}).Count(&remaining).Error)
	assert.EqualValues(t, 2, remaining)
}
