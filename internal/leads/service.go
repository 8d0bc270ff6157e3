package leads

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/leadrelay/leadrelay-backend/pkg/enums"
	pkgerrors "github.com/leadrelay/leadrelay-backend/pkg/errors"
)

// Service exposes read and curation operations over stored leads.
type Service interface {
	List(ctx context.Context, filters ListFilters, cursor string, limit int) (Page, error)
	Get(ctx context.Context, id uuid.UUID) (*Detail, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.LeadStatus) error
	BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status enums.LeadStatus) (int64, error)
	Stats(ctx context.Context) (Stats, error)
}

type service struct {
	repo *Repository
	now  func() time.Time
}

// NewService builds the leads service.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "leads repo required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) List(ctx context.Context, filters ListFilters, cursor string, limit int) (Page, error) {
	page, err := s.repo.List(ctx, filters, cursor, limit)
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list leads")
	}
	return page, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lead id is required")
	}
	lead, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "lead not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load lead")
	}
	attempts, err := s.repo.AttemptHistory(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery history")
	}
	return &Detail{Lead: *lead, Attempts: attempts}, nil
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.LeadStatus) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "lead id is required")
	}
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid lead status")
	}
	rows, err := s.repo.UpdateStatus(ctx, id, status, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update lead status")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "lead not found")
	}
	return nil
}

func (s *service) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status enums.LeadStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "at least one lead id is required")
	}
	if !status.IsValid() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid lead status")
	}
	rows, err := s.repo.BulkUpdateStatus(ctx, ids, status, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bulk update lead status")
	}
	return rows, nil
}

func (s *service) Stats(ctx context.Context) (Stats, error) {
	stats, err := s.repo.Stats(ctx, s.now().UTC())
	if err != nil {
		return Stats{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lead stats")
	}
	return stats, nil
}
