package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/leadrelay/leadrelay-backend/pkg/logger"
	"gorm.io/gorm"
)

const attemptRetentionDays = 90

type AttemptRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository attemptRetentionRepo
	Retention  int
}

type attemptRetentionRepo interface {
	DeleteAttemptsBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewAttemptRetentionJob prunes finished delivery attempts older than the
// retention window. Parked retries are never touched.
func NewAttemptRetentionJob(params AttemptRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("destinations repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = attemptRetentionDays
	}
	return &attemptRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type attemptRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      attemptRetentionRepo
	retention int
	now       func() time.Time
}

func (j *attemptRetentionJob) Name() string { return "attempt-retention" }

func (j *attemptRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeleteAttemptsBefore(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("attempt retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "delivery attempt retention cleanup complete")
	return nil
}
