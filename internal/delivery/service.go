package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/leadrelay/leadrelay-backend/pkg/db/models"
	"github.com/leadrelay/leadrelay-backend/pkg/enums"
	pkgerrors "github.com/leadrelay/leadrelay-backend/pkg/errors"
	"github.com/leadrelay/leadrelay-backend/pkg/logger"
	"github.com/leadrelay/leadrelay-backend/pkg/metrics"
)

type ledgerRepository interface {
	ActiveDestinationsForPage(ctx context.Context, pageID uuid.UUID) ([]models.Destination, error)
	FindLead(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	FindDestination(ctx context.Context, id uuid.UUID) (*models.Destination, error)
	CreateAttempt(ctx context.Context, attempt *models.DeliveryAttempt) error
	CompleteAttempt(ctx context.Context, attempt *models.DeliveryAttempt) error
	ClaimRetry(ctx context.Context, attemptID uuid.UUID, now time.Time) (bool, error)
	DueRetries(ctx context.Context, now time.Time, limit int) ([]models.DeliveryAttempt, error)
	UpdateLeadStatus(ctx context.Context, leadID uuid.UUID, status enums.LeadStatus, processedAt *time.Time) error
	MarkDestinationSuccess(ctx context.Context, destinationID uuid.UUID, at time.Time) error
	MarkDestinationFailure(ctx context.Context, destinationID uuid.UUID, at time.Time) error
}

type attemptExecutor interface {
	Execute(ctx context.Context, dest *models.Destination, body []byte, deliveryID string) Result
}

// ServiceParams groups dependencies for the delivery service.
type ServiceParams struct {
	Logger            *logger.Logger
	Repository        ledgerRepository
	Executor          attemptExecutor
	Metrics           *metrics.DeliveryMetrics
	DefaultRetryCount int
}

// Service fans stored leads out to their destinations, records every attempt
// in the ledger, and drives the bounded retry loop.
type Service struct {
	logg              *logger.Logger
	repo              ledgerRepository
	executor          attemptExecutor
	metrics           *metrics.DeliveryMetrics
	defaultRetryCount int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService builds the delivery service.
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
	retryCount := params.DefaultRetryCount
	if retryCount < 0 {
		retryCount = 0
	}
	return &Service{
		logg:              params.Logger,
		repo:              params.Repository,
		executor:          params.Executor,
		metrics:           params.Metrics,
		defaultRetryCount: retryCount,
		now:               time.Now,
		sleep:             sleepContext,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Dispatch fans the lead out to every active destination bound to its page.
// Each destination runs its own attempt/retry lifecycle; one destination
// failing never affects the others. Dispatch returns once every lifecycle
// reached a final state or the context was canceled.
func (s *Service) Dispatch(ctx context.Context, lead *models.Lead) error {
	if lead == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "lead required")
	}
	ctx = s.logg.WithLeadID(ctx, lead.ID.String())

	if lead.Page == nil {
		loaded, err := s.repo.FindLead(ctx, lead.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load lead")
		}
		lead = loaded
	}

	destinations, err := s.repo.ActiveDestinationsForPage(ctx, lead.PageID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve destinations")
	}
	if len(destinations) == 0 {
		s.logg.Info(ctx, "no active destinations for lead; nothing to deliver")
		return nil
	}

	if err := s.repo.UpdateLeadStatus(ctx, lead.ID, enums.LeadStatusProcessing, nil); err != nil {
		s.logg.Error(ctx, "failed to mark lead processing", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(destinations))
	for i := range destinations {
		dest := destinations[i]
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			errs[idx] = s.deliver(ctx, lead, &dest, 0)
		}(i)
	}
	wg.Wait()

	return multierr.Combine(errs...)
}

// deliver runs the attempt lifecycle for one (lead, destination) pair
// starting at the given attempt number. Each executor invocation gets its own
// ledger row; retryable failures park the row as RETRYING and continue after
// the backoff only if this process wins the claim.
func (s *Service) deliver(ctx context.Context, lead *models.Lead, dest *models.Destination, startAttempt int) error {
	ctx = s.logg.WithDestinationID(ctx, dest.ID.String())
	maxRetries := dest.RetryCount
	if maxRetries < 0 {
		maxRetries = s.defaultRetryCount
	}

	attemptNumber := startAttempt
	for {
		attempt := &models.DeliveryAttempt{
			DestinationID: dest.ID,
			LeadID:        lead.ID,
			Status:        enums.DeliveryStatusPending,
			AttemptNumber: attemptNumber,
		}
		if err := s.repo.CreateAttempt(ctx, attempt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create attempt")
		}
		attemptCtx := s.logg.WithAttemptID(ctx, attempt.ID.String())

		body, err := BuildPayload(lead, lead.Page, s.now()).Encode()
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode payload")
		}

		result := s.executor.Execute(attemptCtx, dest, body, attempt.ID.String())
		now := s.now().UTC()
		s.observe(result)

		switch result.Outcome {
		case OutcomeSuccess:
			s.finishAttempt(attemptCtx, attempt, enums.DeliveryStatusSuccess, result, now)
			if err := s.repo.MarkDestinationSuccess(attemptCtx, dest.ID, now); err != nil {
				s.logg.Error(attemptCtx, "failed to stamp destination success", err)
			}
			if err := s.repo.UpdateLeadStatus(attemptCtx, lead.ID, enums.LeadStatusDelivered, &now); err != nil {
				s.logg.Error(attemptCtx, "failed to mark lead delivered", err)
			}
			s.logg.Info(attemptCtx, "delivery succeeded")
			return nil

		case OutcomeTerminal:
			s.finishAttempt(attemptCtx, attempt, enums.DeliveryStatusFailed, result, now)
			s.finishFailure(attemptCtx, lead, dest, now)
			s.logg.Warn(attemptCtx, "delivery rejected by destination; not retrying")
			return nil

		default: // OutcomeRetryable
			if attemptNumber >= maxRetries {
				s.finishAttempt(attemptCtx, attempt, enums.DeliveryStatusFailed, result, now)
				s.finishFailure(attemptCtx, lead, dest, now)
				s.logg.Warn(attemptCtx, "delivery failed; retry budget exhausted")
				return nil
			}

			delay := DelayFor(attemptNumber)
			retryAt := now.Add(delay)
			attempt.Status = enums.DeliveryStatusRetrying
			attempt.NextRetryAt = &retryAt
			applyResult(attempt, result)
			if err := s.repo.CompleteAttempt(attemptCtx, attempt); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "park attempt for retry")
			}
			if s.metrics != nil {
				s.metrics.IncRetryScheduled()
			}
			s.logg.Info(s.logg.WithField(attemptCtx, "retry_in", delay.String()), "delivery failed; retry scheduled")

			if err := s.sleep(ctx, delay); err != nil {
				// shutdown: the parked row stays RETRYING and the retry
				// worker picks it up from next_retry_at
				return nil
			}
			claimed, err := s.repo.ClaimRetry(attemptCtx, attempt.ID, s.now().UTC())
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim retry")
			}
			if !claimed {
				// the retry worker got there first
				return nil
			}

			// the destination may have been edited or deactivated during
			// the backoff sleep
			refreshed, err := s.repo.FindDestination(attemptCtx, dest.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload destination")
			}
			if !refreshed.IsActive {
				s.logg.Info(attemptCtx, "destination deactivated; abandoning retry")
				return nil
			}
			dest = refreshed
			attemptNumber++
		}
	}
}

// ProcessDueRetries claims parked RETRYING rows whose backoff has elapsed and
// resumes their lifecycles. It returns how many rows were claimed.
func (s *Service) ProcessDueRetries(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 50
	}
	due, err := s.repo.DueRetries(ctx, s.now().UTC(), batchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan due retries")
	}

	processed := 0
	var combined error
	for i := range due {
		row := due[i]
		claimed, err := s.repo.ClaimRetry(ctx, row.ID, s.now().UTC())
		if err != nil {
			combined = multierr.Append(combined, err)
			continue
		}
		if !claimed {
			continue
		}
		processed++

		lead, err := s.repo.FindLead(ctx, row.LeadID)
		if err != nil {
			combined = multierr.Append(combined, err)
			continue
		}
		if lead.Page != nil && !lead.Page.IsActive {
			s.logg.Info(s.logg.WithLeadID(ctx, lead.ID.String()), "page deactivated; dropping parked retry")
			continue
		}
		dest, err := s.repo.FindDestination(ctx, row.DestinationID)
		if err != nil {
			combined = multierr.Append(combined, err)
			continue
		}
		if !dest.IsActive {
			s.logg.Info(s.logg.WithDestinationID(ctx, dest.ID.String()), "destination deactivated; dropping parked retry")
			continue
		}
		if err := s.deliver(ctx, lead, dest, row.AttemptNumber+1); err != nil {
			combined = multierr.Append(combined, err)
		}
	}
	return processed, combined
}

func (s *Service) finishAttempt(ctx context.Context, attempt *models.DeliveryAttempt, status enums.DeliveryStatus, result Result, now time.Time) {
	attempt.Status = status
	attempt.CompletedAt = &now
	attempt.NextRetryAt = nil
	applyResult(attempt, result)
	if err := s.repo.CompleteAttempt(ctx, attempt); err != nil {
		s.logg.Error(ctx, "failed to record attempt outcome", err)
	}
}

func (s *Service) finishFailure(ctx context.Context, lead *models.Lead, dest *models.Destination, now time.Time) {
	if err := s.repo.MarkDestinationFailure(ctx, dest.ID, now); err != nil {
		s.logg.Error(ctx, "failed to stamp destination failure", err)
	}
	// processed_at marks successful processing only; a failed lead keeps nil
	if err := s.repo.UpdateLeadStatus(ctx, lead.ID, enums.LeadStatusFailed, nil); err != nil {
		s.logg.Error(ctx, "failed to mark lead failed", err)
	}
}

func (s *Service) observe(result Result) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveAttempt(string(result.Outcome), result.StatusCode, result.Duration)
}

func applyResult(attempt *models.DeliveryAttempt, result Result) {
	if result.StatusCode > 0 {
		code := result.StatusCode
		attempt.StatusCode = &code
	}
	if result.Body != "" {
		body := result.Body
		attempt.ResponseBody = &body
	}
	if result.Err != nil {
		msg := result.Err.Error()
		attempt.Error = &msg
	}
}
