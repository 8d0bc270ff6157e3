package destinations

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadrelay/leadrelay-backend/internal/delivery"
	"github.com/leadrelay/leadrelay-backend/pkg/db/models"
	"github.com/leadrelay/leadrelay-backend/pkg/enums"
	pkgerrors "github.com/leadrelay/leadrelay-backend/pkg/errors"
	"github.com/leadrelay/leadrelay-backend/pkg/logger"
	"github.com/leadrelay/leadrelay-backend/pkg/types"
	"github.com/rs/zerolog"
)

type fakeExecutor struct {
	result    delivery.Result
	lastDest  *models.Destination
	lastBody  []byte
	execCalls int
}

func (f *fakeExecutor) Execute(_ context.Context, dest *models.Destination, body []byte, _ string) delivery.Result {
	f.execCalls++
	f.lastDest = dest
	f.lastBody = body
	return f.result
}

func newDestinationsService(t *testing.T) (*Service, *Repository, *fakeExecutor) {
	t.Helper()
	db := setupDestinationsTestDB(t)
	repo := NewRepository(db)
	exec := &fakeExecutor{}
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
	svc, err := NewService(ServiceParams{Logger: logg, Repository: repo, Executor: exec})
	require.NoError(t, err)
	return svc, repo, exec
}

func TestServiceCreateGeneratesSecretAndDefaults(t *testing.T) {
	svc, _, _ := newDestinationsService(t)

	dest, err := svc.Create(context.Background(), CreateInput{
		AccountID: uuid.New(),
		Name:      "CRM",
		URL:       "https://crm.example.com/hook",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.HTTPMethodPost, dest.Method)
	assert.Equal(t, enums.AuthTypeNone, dest.AuthType)
	assert.Len(t, dest.SigningSecret, 64) // 32 random bytes hex-encoded
	assert.Equal(t, 3, dest.RetryCount)
	assert.Equal(t, 30000, dest.TimeoutMS)
	assert.True(t, dest.IsActive)
}

func TestServiceCreateValidation(t *testing.T) {
	svc, _, _ := newDestinationsService(t)
	ctx := context.Background()
	accountID := uuid.New()

	cases := []struct {
		name  string
		input CreateInput
	}{
		{"missing account", CreateInput{Name: "x", URL: "https://x.test"}},
		{"missing name", CreateInput{AccountID: accountID, URL: "https://x.test"}},
		{"relative url", CreateInput{AccountID: accountID, Name: "x", URL: "/hook"}},
		{"bad scheme", CreateInput{AccountID: accountID, Name: "x", URL: "ftp://x.test/hook"}},
		{"bad method", CreateInput{AccountID: accountID, Name: "x", URL: "https://x.test", Method: "PATCH"}},
		{"bad auth type", CreateInput{AccountID: accountID, Name: "x", URL: "https://x.test", AuthType: "OAUTH"}},
		{"bearer without token", CreateInput{AccountID: accountID, Name: "x", URL: "https://x.test", AuthType: enums.AuthTypeBearer}},
		{"api key without header", CreateInput{AccountID: accountID, Name: "x", URL: "https://x.test", AuthType: enums.AuthTypeAPIKey, AuthConfig: types.FieldMap{"api_key": "k"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.input)
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
		})
	}
}

func TestServiceCreateKeepsProvidedSecretAndOverrides(t *testing.T) {
	svc, _, _ := newDestinationsService(t)
	retries := 5
	timeout := 10000

	dest, err := svc.Create(context.Background(), CreateInput{
		AccountID:     uuid.New(),
		Name:          "CRM",
		URL:           "https://crm.example.com/hook",
		AuthType:      enums.AuthTypeBearer,
		AuthConfig:    types.FieldMap{"token": "tok_123"},
		SigningSecret: "preset-secret",
		RetryCount:    &retries,
		TimeoutMS:     &timeout,
	})
	require.NoError(t, err)
	assert.Equal(t, "preset-secret", dest.SigningSecret)
	assert.Equal(t, 5, dest.RetryCount)
	assert.Equal(t, 10000, dest.TimeoutMS)
}

func TestServiceUpdateAppliesPartialFields(t *testing.T) {
	svc, _, _ := newDestinationsService(t)
	ctx := context.Background()

	dest, err := svc.Create(ctx, CreateInput{AccountID: uuid.New(), Name: "CRM", URL: "https://crm.example.com/hook"})
	require.NoError(t, err)

	name := "CRM v2"
	inactive := false
	updated, err := svc.Update(ctx, dest.ID, UpdateInput{Name: &name, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "CRM v2", updated.Name)
	assert.False(t, updated.IsActive)
	assert.Equal(t, dest.URL, updated.URL)

	badURL := "not-a-url"
	_, err = svc.Update(ctx, dest.ID, UpdateInput{URL: &badURL})
	require.Error(t, err)

	// switching auth type must come with a usable config
	bearer := enums.AuthTypeBearer
	_, err = svc.Update(ctx, dest.ID, UpdateInput{AuthType: &bearer})
	require.Error(t, err)
}

func TestServiceUpdateUnknownDestination(t *testing.T) {
	svc, _, _ := newDestinationsService(t)
	name := "x"

	_, err := svc.Update(context.Background(), uuid.New(), UpdateInput{Name: &name})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestServiceDelete(t *testing.T) {
	svc, _, _ := newDestinationsService(t)
	ctx := context.Background()

	dest, err := svc.Create(ctx, CreateInput{AccountID: uuid.New(), Name: "CRM", URL: "https://crm.example.com/hook"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, dest.ID))

	err = svc.Delete(ctx, dest.ID)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestServiceSetBindingsDedupesAndValidates(t *testing.T) {
	svc, repo, _ := newDestinationsService(t)
	ctx := context.Background()

	dest, err := svc.Create(ctx, CreateInput{AccountID: uuid.New(), Name: "CRM", URL: "https://crm.example.com/hook"})
	require.NoError(t, err)

	pageID := uuid.New()
	require.NoError(t, svc.SetBindings(ctx, dest.ID, []uuid.UUID{pageID, pageID}))

	bindings, err := repo.Bindings(ctx, dest.ID)
	require.NoError(t, err)
	assert.Len(t, bindings, 1)

	err = svc.SetBindings(ctx, dest.ID, []uuid.UUID{uuid.Nil})
	require.Error(t, err)
}

func TestServiceStatsMergesDestinationTimestamps(t *testing.T) {
	svc, repo, _ := newDestinationsService(t)
	ctx := context.Background()

	dest, err := svc.Create(ctx, CreateInput{AccountID: uuid.New(), Name: "CRM", URL: "https://crm.example.com/hook"})
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	dest.LastSuccessAt = &now
	require.NoError(t, repo.Update(ctx, dest))
	seedAttempt(t, repo.db, dest.ID, enums.DeliveryStatusSuccess, now)

	stats, err := svc.Stats(ctx, dest.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Total)
	require.NotNil(t, stats.LastSuccessAt)
	assert.True(t, stats.LastSuccessAt.Equal(now))
	assert.Nil(t, stats.LastFailureAt)
}

func TestServiceTestDeliverySendsSampleLead(t *testing.T) {
	svc, _, exec := newDestinationsService(t)
	ctx := context.Background()

	dest, err := svc.Create(ctx, CreateInput{AccountID: uuid.New(), Name: "CRM", URL: "https://crm.example.com/hook"})
	require.NoError(t, err)

	exec.result = delivery.Result{
		Outcome:    delivery.OutcomeSuccess,
		StatusCode: http.StatusOK,
		Body:       `{"ok":true}`,
		Duration:   120 * time.Millisecond,
	}

	result, err := svc.TestDelivery(ctx, dest.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.EqualValues(t, 120, result.DurationMS)
	assert.Equal(t, 1, exec.execCalls)
	require.NotNil(t, exec.lastDest)
	assert.Equal(t, dest.ID, exec.lastDest.ID)
	assert.Contains(t, string(exec.lastBody), `"test@example.com"`)
}

func TestServiceTestDeliveryReportsFailure(t *testing.T) {
	svc, _, exec := newDestinationsService(t)
	ctx := context.Background()

	dest, err := svc.Create(ctx, CreateInput{AccountID: uuid.New(), Name: "CRM", URL: "https://crm.example.com/hook"})
	require.NoError(t, err)

	exec.result = delivery.Result{
		Outcome: delivery.OutcomeRetryable,
		Err:     errors.New("connection refused"),
	}

	result, err := svc.TestDelivery(ctx, dest.ID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "connection refused", result.Error)
}
