package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/leadrelay/leadrelay-backend/pkg/db/models"
	pkgerrors "github.com/leadrelay/leadrelay-backend/pkg/errors"
)

// Standard headers stamped on every outbound delivery.
const (
	HeaderSignature  = "X-LeadRelay-Signature"
	HeaderDeliveryID = "X-LeadRelay-Delivery-Id"
	HeaderTimestamp  = "X-LeadRelay-Timestamp"

	defaultUserAgent        = "LeadRelay/1.0"
	defaultMaxResponseBytes = 5000
	defaultTimeout          = 30 * time.Second
)

// Outcome classifies how an attempt ended.
type Outcome string

const (
	// OutcomeSuccess is any 2xx or 3xx response.
	OutcomeSuccess Outcome = "success"
	// OutcomeTerminal is a 4xx response: the request is malformed or
	// rejected and retrying the same bytes cannot help.
	OutcomeTerminal Outcome = "terminal"
	// OutcomeRetryable covers 5xx responses and transport errors.
	OutcomeRetryable Outcome = "retryable"
)

// Result captures everything the ledger records about one attempt.
type Result struct {
	Outcome    Outcome
	StatusCode int
	Body       string
	Err        error
	Duration   time.Duration
}

// ExecutorParams configure the delivery executor.
type ExecutorParams struct {
	HTTPClient       *http.Client
	UserAgent        string
	MaxResponseBytes int
	Now              func() time.Time
}

// Executor performs single delivery attempts against destination endpoints.
type Executor struct {
	httpClient       *http.Client
	userAgent        string
	maxResponseBytes int
	now              func() time.Time
}

// NewExecutor builds an executor. The destination's own timeout is applied
// per request, so the shared client carries no timeout of its own.
func NewExecutor(params ExecutorParams) *Executor {
	client := params.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	userAgent := params.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	maxBytes := params.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxResponseBytes
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Executor{
		httpClient:       client,
		userAgent:        userAgent,
		maxResponseBytes: maxBytes,
		now:              now,
	}
}

// Execute sends the payload to the destination once and classifies the result.
func (e *Executor) Execute(ctx context.Context, dest *models.Destination, body []byte, deliveryID string) Result {
	timeout := dest.Timeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := string(dest.Method)
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(reqCtx, method, dest.URL, bytes.NewReader(body))
	if err != nil {
		return Result{
			Outcome: OutcomeTerminal,
			Err:     pkgerrors.Wrap(pkgerrors.CodeValidation, err, "build delivery request"),
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set(HeaderDeliveryID, deliveryID)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(e.now().Unix(), 10))

	// custom headers first so they can never mask auth or the signature
	for name, value := range dest.Headers {
		if name == "" {
			continue
		}
		req.Header.Set(name, value)
	}
	if err := ApplyAuth(req, dest.AuthType, dest.AuthConfig); err != nil {
		return Result{Outcome: OutcomeTerminal, Err: err}
	}
	req.Header.Set(HeaderSignature, Sign(body, dest.SigningSecret))

	start := time.Now()
	resp, err := e.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		return Result{
			Outcome:  OutcomeRetryable,
			Err:      fmt.Errorf("delivery request: %w", err),
			Duration: duration,
		}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, int64(e.maxResponseBytes)))
	if readErr != nil {
		respBody = []byte(fmt.Sprintf("read response: %v", readErr))
	}

	result := Result{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
		Duration:   duration,
	}
	// 4xx vs 5xx is the retry boundary: a 4xx means the destination is
	// misconfigured and retrying would only hammer it.
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		result.Outcome = OutcomeSuccess
	case resp.StatusCode < 500:
		result.Outcome = OutcomeTerminal
	default:
		result.Outcome = OutcomeRetryable
	}
	return result
}
