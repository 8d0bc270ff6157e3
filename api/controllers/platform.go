package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/leadrelay/leadrelay-backend/api/responses"
	"github.com/leadrelay/leadrelay-backend/internal/ingest"
	"github.com/leadrelay/leadrelay-backend/pkg/config"
	pkgerrors "github.com/leadrelay/leadrelay-backend/pkg/errors"
	"github.com/leadrelay/leadrelay-backend/pkg/logger"
)

const signatureHeader = "X-Hub-Signature-256"

// maxWebhookBody caps how much of an event payload we are willing to read.
const maxWebhookBody = 1 << 20

// EventProcessor hands verified webhook events to the ingestion pipeline.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, event ingest.WebhookEvent) error
}

// PlatformWebhookVerify answers the platform's subscription handshake. The
// challenge must be echoed back as plain text, not wrapped in an envelope.
func PlatformWebhookVerify(cfg config.PlatformConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		challenge, ok := ingest.VerifyChallenge(
			query.Get("hub.mode"),
			query.Get("hub.verify_token"),
			query.Get("hub.challenge"),
			cfg.VerifyToken,
		)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "verification failed"))
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(challenge)); err != nil && logg != nil {
			logg.Error(r.Context(), "write challenge response", err)
		}
	}
}

// PlatformWebhookReceive verifies and acknowledges a leadgen event, then
// processes it in the background. The platform retries unacknowledged
// deliveries, so the handler must return quickly.
func PlatformWebhookReceive(svc EventProcessor, cfg config.PlatformConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ingest service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if !ingest.VerifySignature(payload, cfg.AppSecret, r.Header.Get(signatureHeader)) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		event, err := ingest.ParseEvent(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		// Ack before processing; the request context dies with the response.
		bgCtx := context.WithoutCancel(ctx)
		go func() {
			if err := svc.ProcessEvent(bgCtx, event); err != nil && logg != nil {
				logg.Error(bgCtx, "webhook event processing failed", err)
			}
		}()

		responses.WriteSuccess(w, map[string]string{"status": "received"})
	}
}
