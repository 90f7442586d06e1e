// Package client is a thin HTTP client for the taskplane controller API.
// It is used by the worker agent and by taskctl.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"taskplane/pkg/api"
)

// Client handles API calls to the taskplane controller.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// New creates a new client with the given base URL and API key.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an API 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// RegisterAgent sends POST /agents/register.
func (c *Client) RegisterAgent(ctx context.Context, req api.RegisterAgentRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/agents/register", req, nil)
}

// Heartbeat sends POST /agents/heartbeat.
func (c *Client) Heartbeat(ctx context.Context, req api.HeartbeatRequest) (*api.HeartbeatResponse, error) {
	var resp api.HeartbeatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/agents/heartbeat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListAgents sends GET /agents/online.
func (c *Client) ListAgents(ctx context.Context, onlyAlive bool) (*api.ListAgentsResponse, error) {
	path := "/agents/online"
	if onlyAlive {
		path += "?alive=true"
	}
	var resp api.ListAgentsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateJobParams are the form fields of POST /jobs/create.
type CreateJobParams struct {
	Site         string
	Price        int
	Total        int
	RandomSample bool
	FileName     string
	CSV          io.Reader
}

// CreateJob uploads a CSV of recipients as a multipart form.
func (c *Client) CreateJob(ctx context.Context, p CreateJobParams) (*api.CreateJobResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		api.FormSite:         p.Site,
		api.FormPrice:        strconv.Itoa(p.Price),
		api.FormTotal:        strconv.Itoa(p.Total),
		api.FormRandomSample: strconv.FormatBool(p.RandomSample),
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write form: %w", err)
		}
	}

	name := p.FileName
	if name == "" {
		name = "upload.csv"
	}
	fw, err := mw.CreateFormFile(api.FormCSVFile, name)
	if err != nil {
		return nil, fmt.Errorf("failed to write form: %w", err)
	}
	if _, err := io.Copy(fw, p.CSV); err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to write form: %w", err)
	}

	var resp api.CreateJobResponse
	if err := c.do(ctx, http.MethodPost, "/jobs/create", &buf, mw.FormDataContentType(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobStatus sends GET /jobs/{id}/status.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*api.JobStatusResponse, error) {
	var resp api.JobStatusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID)+"/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Claim sends POST /tasks/claim-auto. A nil task means nothing was available.
func (c *Client) Claim(ctx context.Context, req api.ClaimRequest) (*api.TaskResponse, error) {
	var resp api.ClaimResponse
	if err := c.doJSON(ctx, http.MethodPost, "/tasks/claim-auto", req, &resp); err != nil {
		return nil, err
	}
	return resp.Task, nil
}

// Report sends POST /tasks/report.
func (c *Client) Report(ctx context.Context, req api.ReportRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/tasks/report", req, nil)
}

// Control sends POST /control/{action}; action is pause or resume.
func (c *Client) Control(ctx context.Context, action string) (*api.ControlResponse, error) {
	var resp api.ControlResponse
	if err := c.doJSON(ctx, http.MethodPost, "/control/"+url.PathEscape(action), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		r = bytes.NewReader(b)
	}
	return c.do(ctx, method, path, r, "application/json", out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if c.APIKey != "" {
		httpReq.Header.Set(api.APIKeyHeader, c.APIKey)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// errorMessage prefers the error field of an api.ErrorResponse body.
func errorMessage(body []byte) string {
	var e api.ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
