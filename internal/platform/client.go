package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/leadrelay/leadrelay-backend/pkg/errors"
)

const (
	defaultBaseURL             = "https://graph.facebook.com/v19.0"
	leadFieldSelection         = "id,created_time,field_data,ad_id,ad_name,adset_id,adset_name,campaign_id,campaign_name,form_id"
	formFieldSelection         = "id,name,questions"
	errorBodyReadLimit   int64 = 2048
	defaultClientTimeout       = 10 * time.Second
)

var errBaseURLRequired = errors.New("graph api base url is required")

// Client wraps the ad platform Graph API endpoints used during lead ingestion.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured Graph API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout overrides the default HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient builds the Graph API client.
func NewClient(opts ...Option) (*Client, error) {
	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultClientTimeout}
	}
	if client.baseURL == "" {
		return nil, errBaseURLRequired
	}

	return client, nil
}

// FieldEntry is one submitted answer. Values carries every answer for
// multi-select questions; consumers normally take the first.
type FieldEntry struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// LeadDetail is the full lead record returned by the Graph API.
// CreatedTime stays a string: the Graph API emits offsets without a colon
// ("+0000"), which time.Time refuses to parse.
type LeadDetail struct {
	ID           string       `json:"id"`
	CreatedTime  string       `json:"created_time"`
	FieldData    []FieldEntry `json:"field_data"`
	FormID       string       `json:"form_id"`
	AdID         string       `json:"ad_id"`
	AdName       string       `json:"ad_name"`
	AdsetID      string       `json:"adset_id"`
	AdsetName    string       `json:"adset_name"`
	CampaignID   string       `json:"campaign_id"`
	CampaignName string       `json:"campaign_name"`
}

// FormDetail describes a leadgen form.
type FormDetail struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GetLeadDetails fetches the full lead record for a platform lead id using the
// page-scoped access token.
func (c *Client) GetLeadDetails(ctx context.Context, leadID, accessToken string) (*LeadDetail, error) {
	if strings.TrimSpace(leadID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lead id is required")
	}
	var detail LeadDetail
	if err := c.get(ctx, leadID, leadFieldSelection, accessToken, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetFormDetails fetches form metadata for a leadgen form id.
func (c *Client) GetFormDetails(ctx context.Context, formID, accessToken string) (*FormDetail, error) {
	if strings.TrimSpace(formID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "form id is required")
	}
	var detail FormDetail
	if err := c.get(ctx, formID, formFieldSelection, accessToken, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *Client) get(ctx context.Context, objectID, fields, accessToken string, out any) error {
	if strings.TrimSpace(accessToken) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "access token is required")
	}

	endpoint := fmt.Sprintf("%s/%s", strings.TrimRight(c.baseURL, "/"), url.PathEscape(objectID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build graph request")
	}
	query := req.URL.Query()
	query.Set("fields", fields)
	query.Set("access_token", accessToken)
	req.URL.RawQuery = query.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call graph api")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return graphError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode graph response")
	}
	return nil
}

type graphErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func graphError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
	var envelope graphErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("graph api error (%d): %s", resp.StatusCode, envelope.Error.Message))
	}
	return pkgerrors.New(pkgerrors.CodeDependency,
		fmt.Sprintf("graph api returned status %d", resp.StatusCode))
}
