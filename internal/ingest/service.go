package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/leadrelay/leadrelay-backend/internal/platform"
	"github.com/leadrelay/leadrelay-backend/pkg/db"
	"github.com/leadrelay/leadrelay-backend/pkg/db/models"
	"github.com/leadrelay/leadrelay-backend/pkg/enums"
	pkgerrors "github.com/leadrelay/leadrelay-backend/pkg/errors"
	"github.com/leadrelay/leadrelay-backend/pkg/logger"
)

type pageRepository interface {
	FindPageByPlatformID(ctx context.Context, platformPageID string) (*models.Page, error)
	CreateLead(ctx context.Context, lead *models.Lead) error
}

type graphClient interface {
	GetLeadDetails(ctx context.Context, leadID, accessToken string) (*platform.LeadDetail, error)
	GetFormDetails(ctx context.Context, formID, accessToken string) (*platform.FormDetail, error)
}

// Dispatcher hands a freshly stored lead to the delivery engine.
type Dispatcher interface {
	Dispatch(ctx context.Context, lead *models.Lead) error
}

// ServiceParams groups dependencies for the ingestion service.
type ServiceParams struct {
	Logger     *logger.Logger
	Repository pageRepository
	Graph      graphClient
	Dispatcher Dispatcher
}

// Service turns webhook notifications into stored leads and kicks off delivery.
type Service struct {
	logg       *logger.Logger
	repo       pageRepository
	graph      graphClient
	dispatcher Dispatcher
}

// NewService builds the ingestion service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "repository required")
	}
	if params.Graph == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "graph client required")
	}
	if params.Dispatcher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "dispatcher required")
	}
	return &Service{
		logg:       params.Logger,
		repo:       params.Repository,
		graph:      params.Graph,
		dispatcher: params.Dispatcher,
	}, nil
}

// ProcessEvent walks every leadgen change in the event. Failures on one change
// never block the others; the combined error is returned for logging.
func (s *Service) ProcessEvent(ctx context.Context, event WebhookEvent) error {
	var combined error
	for _, change := range event.LeadgenChanges() {
		if err := s.ProcessLead(ctx, change); err != nil {
			combined = multierr.Append(combined, fmt.Errorf("lead %s: %w", change.LeadgenID, err))
		}
	}
	return combined
}

// ProcessLead ingests a single leadgen notification: resolve the page, pull
// the full record from the Graph API, store it, and dispatch deliveries.
// Duplicate notifications are dropped at the unique constraint.
func (s *Service) ProcessLead(ctx context.Context, change ChangeValue) error {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"platform_lead_id": change.LeadgenID,
		"platform_page_id": change.PageID,
	})

	page, err := s.repo.FindPageByPlatformID(ctx, change.PageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Warn(ctx, "webhook for unknown page; skipping")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load page")
	}
	if !page.IsActive {
		s.logg.Info(ctx, "page is inactive; skipping lead")
		return nil
	}

	detail, err := s.graph.GetLeadDetails(ctx, change.LeadgenID, page.AccessToken)
	if err != nil {
		return err
	}

	formID := change.FormID
	if formID == "" {
		formID = detail.FormID
	}
	formName := formID
	if form, err := s.graph.GetFormDetails(ctx, formID, page.AccessToken); err == nil && form.Name != "" {
		formName = form.Name
	} else if err != nil {
		s.logg.Warn(ctx, "form lookup failed; falling back to form id")
	}

	lead := &models.Lead{
		PlatformLeadID: change.LeadgenID,
		PageID:         page.ID,
		FormID:         formID,
		FormName:       formName,
		CampaignID:     optional(detail.CampaignID),
		CampaignName:   optional(detail.CampaignName),
		AdsetID:        optional(detail.AdsetID),
		AdsetName:      optional(detail.AdsetName),
		AdID:           optional(detail.AdID),
		AdName:         optional(detail.AdName),
		LeadData:       NormalizeFields(detail.FieldData),
		Status:         enums.LeadStatusNew,
	}

	if err := s.repo.CreateLead(ctx, lead); err != nil {
		if db.IsUniqueViolation(err, LeadDedupConstraint) {
			s.logg.Info(ctx, "duplicate lead notification; already stored")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store lead")
	}

	ctx = s.logg.WithLeadID(ctx, lead.ID.String())
	s.logg.Info(ctx, "lead stored")

	if err := s.dispatcher.Dispatch(ctx, lead); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dispatch deliveries")
	}
	return nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
