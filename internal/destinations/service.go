package destinations

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/leadrelay/leadrelay-backend/internal/delivery"
	"github.com/leadrelay/leadrelay-backend/pkg/db/models"
	"github.com/leadrelay/leadrelay-backend/pkg/enums"
	pkgerrors "github.com/leadrelay/leadrelay-backend/pkg/errors"
	"github.com/leadrelay/leadrelay-backend/pkg/logger"
	"github.com/leadrelay/leadrelay-backend/pkg/types"
)

const (
	signingSecretBytes = 32
	defaultRetryCount  = 3
	defaultTimeoutMS   = 30000
)

type testExecutor interface {
	Execute(ctx context.Context, dest *models.Destination, body []byte, deliveryID string) delivery.Result
}

// ServiceParams groups dependencies for the destinations service.
type ServiceParams struct {
	Logger     *logger.Logger
	Repository *Repository
	Executor   testExecutor
}

// Service exposes destination management: CRUD, page bindings, delivery
// stats, and synchronous test sends.
type Service struct {
	logg     *logger.Logger
	repo     *Repository
	executor testExecutor
	now      func() time.Time
}

// NewService builds the destinations service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "repository required")
	}
	if params.Executor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "executor required")
	}
	return &Service{
		logg:     params.Logger,
		repo:     params.Repository,
		executor: params.Executor,
		now:      time.Now,
	}, nil
}

// Create validates and stores a new destination.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Destination, error) {
	if input.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if err := validateURL(input.URL); err != nil {
		return nil, err
	}

	method := input.Method
	if method == "" {
		method = enums.HTTPMethodPost
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported method %q", method))
	}
	authType := input.AuthType
	if authType == "" {
		authType = enums.AuthTypeNone
	}
	if !authType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported auth type %q", authType))
	}
	if err := validateAuthConfig(authType, input.AuthConfig); err != nil {
		return nil, err
	}

	secret := input.SigningSecret
	if secret == "" {
		generated, err := generateSecret()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate signing secret")
		}
		secret = generated
	}

	dest := &models.Destination{
		AccountID:     input.AccountID,
		Name:          strings.TrimSpace(input.Name),
		URL:           input.URL,
		Method:        method,
		Headers:       input.Headers,
		AuthType:      authType,
		AuthConfig:    input.AuthConfig,
		SigningSecret: secret,
		RetryCount:    defaultRetryCount,
		TimeoutMS:     defaultTimeoutMS,
		IsActive:      true,
	}
	if input.RetryCount != nil && *input.RetryCount >= 0 {
		dest.RetryCount = *input.RetryCount
	}
	if input.TimeoutMS != nil && *input.TimeoutMS > 0 {
		dest.TimeoutMS = *input.TimeoutMS
	}

	if err := s.repo.Create(ctx, dest); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create destination")
	}
	s.logg.Info(s.logg.WithDestinationID(ctx, dest.ID.String()), "destination created")
	return dest, nil
}

// Update applies a partial mutation to an existing destination.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Destination, error) {
	dest, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		dest.Name = strings.TrimSpace(*input.Name)
	}
	if input.URL != nil {
		if err := validateURL(*input.URL); err != nil {
			return nil, err
		}
		dest.URL = *input.URL
	}
	if input.Method != nil {
		if !input.Method.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported method %q", *input.Method))
		}
		dest.Method = *input.Method
	}
	if input.Headers != nil {
		dest.Headers = *input.Headers
	}
	if input.AuthType != nil {
		if !input.AuthType.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported auth type %q", *input.AuthType))
		}
		dest.AuthType = *input.AuthType
	}
	if input.AuthConfig != nil {
		dest.AuthConfig = *input.AuthConfig
	}
	if err := validateAuthConfig(dest.AuthType, dest.AuthConfig); err != nil {
		return nil, err
	}
	if input.RetryCount != nil {
		if *input.RetryCount < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "retry count cannot be negative")
		}
		dest.RetryCount = *input.RetryCount
	}
	if input.TimeoutMS != nil {
		if *input.TimeoutMS <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "timeout must be positive")
		}
		dest.TimeoutMS = *input.TimeoutMS
	}
	if input.IsActive != nil {
		dest.IsActive = *input.IsActive
	}

	if err := s.repo.Update(ctx, dest); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update destination")
	}
	return dest, nil
}

// Delete removes the destination and everything bound to it.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	rows, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete destination")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "destination not found")
	}
	return nil
}

// Get loads a destination.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Destination, error) {
	return s.find(ctx, id)
}

// List returns a cursor-paginated page of destinations with their ledger
// aggregates.
func (s *Service) List(ctx context.Context, accountID *uuid.UUID, cursor string, limit int) (Page, error) {
	page, err := s.repo.List(ctx, accountID, cursor, limit)
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list destinations")
	}

	ids := make([]uuid.UUID, 0, len(page.Destinations))
	for i := range page.Destinations {
		ids = append(ids, page.Destinations[i].ID)
	}
	stats, err := s.repo.StatsForDestinations(ctx, ids)
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate destination stats")
	}
	for i := range page.Destinations {
		dest := &page.Destinations[i]
		entry := stats[dest.ID]
		if entry.ByStatus == nil {
			entry.ByStatus = make(map[enums.DeliveryStatus]int64)
		}
		entry.LastSuccessAt = dest.LastSuccessAt
		entry.LastFailureAt = dest.LastFailureAt
		stats[dest.ID] = entry
	}
	page.Stats = stats
	return page, nil
}

// SetBindings replaces the destination's page bindings with the given set.
func (s *Service) SetBindings(ctx context.Context, id uuid.UUID, pageIDs []uuid.UUID) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	seen := make(map[uuid.UUID]struct{}, len(pageIDs))
	deduped := make([]uuid.UUID, 0, len(pageIDs))
	for _, pageID := range pageIDs {
		if pageID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "page id cannot be empty")
		}
		if _, ok := seen[pageID]; ok {
			continue
		}
		seen[pageID] = struct{}{}
		deduped = append(deduped, pageID)
	}
	if err := s.repo.ReplaceBindings(ctx, id, deduped); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace bindings")
	}
	return nil
}

// Bindings lists the destination's page bindings.
func (s *Service) Bindings(ctx context.Context, id uuid.UUID) ([]models.DestinationBinding, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	bindings, err := s.repo.Bindings(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bindings")
	}
	return bindings, nil
}

// Stats aggregates the destination's delivery ledger.
func (s *Service) Stats(ctx context.Context, id uuid.UUID) (Stats, error) {
	dest, err := s.find(ctx, id)
	if err != nil {
		return Stats{}, err
	}
	stats, err := s.repo.Stats(ctx, id)
	if err != nil {
		return Stats{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "destination stats")
	}
	stats.LastSuccessAt = dest.LastSuccessAt
	stats.LastFailureAt = dest.LastFailureAt
	return stats, nil
}

// TestDelivery sends a synthetic sample lead to the destination and reports
// the raw outcome. Nothing is written to the ledger.
func (s *Service) TestDelivery(ctx context.Context, id uuid.UUID) (TestResult, error) {
	dest, err := s.find(ctx, id)
	if err != nil {
		return TestResult{}, err
	}

	body, err := sampleLeadPayload(s.now()).Encode()
	if err != nil {
		return TestResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode sample payload")
	}

	result := s.executor.Execute(ctx, dest, body, "test-"+uuid.NewString())
	testResult := TestResult{
		Success:    result.Outcome == delivery.OutcomeSuccess,
		StatusCode: result.StatusCode,
		Body:       result.Body,
		DurationMS: result.Duration.Milliseconds(),
	}
	if result.Err != nil {
		testResult.Error = result.Err.Error()
	}
	return testResult, nil
}

func (s *Service) find(ctx context.Context, id uuid.UUID) (*models.Destination, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "destination id is required")
	}
	dest, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "destination not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load destination")
	}
	return dest, nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return pkgerrors.New(pkgerrors.CodeValidation, "url must be absolute http(s)")
	}
	return nil
}

func validateAuthConfig(authType enums.AuthType, config types.FieldMap) error {
	switch authType {
	case enums.AuthTypeBasic:
		if config.Get("username") == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "basic auth requires username")
		}
	case enums.AuthTypeBearer:
		if config.Get("token") == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "bearer auth requires token")
		}
	case enums.AuthTypeAPIKey:
		if config.Get("header_name") == "" || config.Get("api_key") == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "api key auth requires header_name and api_key")
		}
	}
	return nil
}

func generateSecret() (string, error) {
	buf := make([]byte, signingSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// sampleLeadPayload builds the synthetic lead sent by test deliveries.
func sampleLeadPayload(now time.Time) delivery.Payload {
	campaignID := "test_campaign"
	campaignName := "Test Campaign"
	lead := &models.Lead{
		ID:             uuid.New(),
		PlatformLeadID: "test_lead_" + uuid.NewString()[:8],
		FormID:         "test_form",
		FormName:       "Test Form",
		CampaignID:     &campaignID,
		CampaignName:   &campaignName,
		LeadData: types.FieldMap{
			"full_name": "Test Lead",
			"email":     "test@example.com",
			"phone":     "+15555550100",
		},
		CreatedAt: now,
	}
	page := &models.Page{PlatformPageID: "test_page", Name: "Test Page"}
	return delivery.BuildPayload(lead, page, now)
}
