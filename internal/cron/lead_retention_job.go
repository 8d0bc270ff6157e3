package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/leadrelay/leadrelay-backend/pkg/logger"
	"gorm.io/gorm"
)

const leadRetentionDays = 90

// txRunner runs work inside a database transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type LeadRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository leadRetentionRepo
	Retention  int
}

type leadRetentionRepo interface {
	DeleteArchivedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewLeadRetentionJob deletes ARCHIVED leads older than the retention
// window. Ledger rows cascade with their lead.
func NewLeadRetentionJob(params LeadRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("leads repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = leadRetentionDays
	}
	return &leadRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type leadRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      leadRetentionRepo
	retention int
	now       func() time.Time
}

func (j *leadRetentionJob) Name() string { return "lead-retention" }

func (j *leadRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeleteArchivedBefore(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("lead retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "lead retention cleanup complete")
	return nil
}
