package delivery

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/leadrelay/leadrelay-backend/pkg/db/models"
	"github.com/leadrelay/leadrelay-backend/pkg/enums"
	"github.com/leadrelay/leadrelay-backend/pkg/types"
)

func testDestination(url string) *models.Destination {
	return &models.Destination{
		ID:            uuid.New(),
		URL:           url,
		Method:        enums.HTTPMethodPost,
		SigningSecret: "dest-secret",
		TimeoutMS:     5000,
		RetryCount:    3,
	}
}

func TestExecutorSendsSignedRequest(t *testing.T) {
	body := []byte(`{"id":"lead-payload"}`)
	deliveryID := uuid.NewString()

	var captured struct {
		header http.Header
		method string
		body   []byte
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.header = r.Header.Clone()
		captured.method = r.Method
		captured.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"received":true}`)
	}))
	defer server.Close()

	dest := testDestination(server.URL)
	dest.AuthType = enums.AuthTypeBearer
	dest.AuthConfig = types.FieldMap{"token": "tok_123"}
	dest.Headers = types.FieldMap{"X-Custom": "custom-value"}

	executor := NewExecutor(ExecutorParams{})
	result := executor.Execute(context.Background(), dest, body, deliveryID)

	if result.Outcome != OutcomeSuccess {
		t.Fatalf("expected success, got %s (err=%v)", result.Outcome, result.Err)
	}
	if result.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", result.StatusCode)
	}
	if result.Body != `{"received":true}` {
		t.Fatalf("unexpected body %q", result.Body)
	}

	if captured.method != http.MethodPost {
		t.Fatalf("unexpected method %q", captured.method)
	}
	if string(captured.body) != string(body) {
		t.Fatalf("body altered in flight: %q", captured.body)
	}
	if got := captured.header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := captured.header.Get("User-Agent"); got != defaultUserAgent {
		t.Fatalf("unexpected user agent %q", got)
	}
	if got := captured.header.Get(HeaderDeliveryID); got != deliveryID {
		t.Fatalf("unexpected delivery id %q", got)
	}
	if captured.header.Get(HeaderTimestamp) == "" {
		t.Fatal("timestamp header missing")
	}
	if got := captured.header.Get(HeaderSignature); got != Sign(body, "dest-secret") {
		t.Fatalf("signature mismatch: %q", got)
	}
	if got := captured.header.Get("Authorization"); got != "Bearer tok_123" {
		t.Fatalf("unexpected auth header %q", got)
	}
	if got := captured.header.Get("X-Custom"); got != "custom-value" {
		t.Fatalf("custom header missing, got %q", got)
	}
}

func TestExecutorTimestampFollowsInjectedClock(t *testing.T) {
	fixed := time.Date(2026, 7, 4, 12, 0, 0, 0, time.UTC)

	var stamped string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stamped = r.Header.Get(HeaderTimestamp)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	executor := NewExecutor(ExecutorParams{Now: func() time.Time { return fixed }})
	result := executor.Execute(context.Background(), testDestination(server.URL), []byte(`{}`), uuid.NewString())

	if result.Outcome != OutcomeSuccess {
		t.Fatalf("expected success, got %s (err=%v)", result.Outcome, result.Err)
	}
	if want := strconv.FormatInt(fixed.Unix(), 10); stamped != want {
		t.Fatalf("timestamp header = %q, want %q", stamped, want)
	}
}

func TestExecutorClassifies4xxTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, "bad payload")
	}))
	defer server.Close()

	executor := NewExecutor(ExecutorParams{})
	result := executor.Execute(context.Background(), testDestination(server.URL), []byte(`{}`), uuid.NewString())

	if result.Outcome != OutcomeTerminal {
		t.Fatalf("expected terminal, got %s", result.Outcome)
	}
	if result.StatusCode != http.StatusBadRequest || result.Body != "bad payload" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestExecutorClassifies5xxRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	executor := NewExecutor(ExecutorParams{})
	result := executor.Execute(context.Background(), testDestination(server.URL), []byte(`{}`), uuid.NewString())

	if result.Outcome != OutcomeRetryable {
		t.Fatalf("expected retryable, got %s", result.Outcome)
	}
}

func TestExecutorClassifiesTransportErrorRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused

	executor := NewExecutor(ExecutorParams{})
	result := executor.Execute(context.Background(), testDestination(server.URL), []byte(`{}`), uuid.NewString())

	if result.Outcome != OutcomeRetryable {
		t.Fatalf("expected retryable, got %s", result.Outcome)
	}
	if result.Err == nil {
		t.Fatal("expected transport error to be recorded")
	}
	if result.StatusCode != 0 {
		t.Fatalf("expected no status code, got %d", result.StatusCode)
	}
}

func TestExecutorTruncatesResponseBody(t *testing.T) {
	long := strings.Repeat("x", 10_000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, long)
	}))
	defer server.Close()

	executor := NewExecutor(ExecutorParams{MaxResponseBytes: 5000})
	result := executor.Execute(context.Background(), testDestination(server.URL), []byte(`{}`), uuid.NewString())

	if len(result.Body) != 5000 {
		t.Fatalf("expected body truncated to 5000 bytes, got %d", len(result.Body))
	}
}

func TestExecutorInvalidAuthConfigIsTerminal(t *testing.T) {
	dest := testDestination("http://dest.test/hook")
	dest.AuthType = enums.AuthTypeBearer // no token configured

	executor := NewExecutor(ExecutorParams{})
	result := executor.Execute(context.Background(), dest, []byte(`{}`), uuid.NewString())

	if result.Outcome != OutcomeTerminal {
		t.Fatalf("expected terminal for bad auth config, got %s", result.Outcome)
	}
}
