package agentex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the AgentEX server
	// (e.g. "http://localhost:8080").
	BaseURL string

	// Token is an optional bearer token. Authenticated callers see their own
	// builds' config snapshots unredacted.
	Token string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with a 30-second timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 30 seconds.
	Timeout time.Duration
}

// Client is an HTTP client for the AgentEX API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL is empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("agentex: BaseURL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  httpClient,
	}, nil
}

// Validate checks an agent spec without starting a build. Findings come
// back as data; the call only errors on transport or server failures.
func (c *Client) Validate(ctx context.Context, spec AgentSpec) (*ValidationResult, error) {
	var resp ValidationResult
	if err := c.post(ctx, "/v2/validate", spec, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Generate enqueues a build for the given spec and returns its ticket.
// Poll Status (or use WaitForCompletion) to follow the build.
func (c *Client) Generate(ctx context.Context, spec AgentSpec) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.post(ctx, "/v2/generate", spec, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status fetches the current state of a build.
func (c *Client) Status(ctx context.Context, buildID string) (*Build, error) {
	var resp Build
	if err := c.get(ctx, "/v2/status/"+url.PathEscape(buildID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Deploy dispatches a complete build to a hosting platform. The returned
// ticket is immediate; the deployment itself runs on the server in the
// background and its outcome lands on the build record.
func (c *Client) Deploy(ctx context.Context, req DeployRequest) (*DeployResponse, error) {
	var resp DeployResponse
	if err := c.post(ctx, "/v2/deploy", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SearchTools queries the tool catalog. Zero-value filters return the
// whole catalog.
func (c *Client) SearchTools(ctx context.Context, req ToolSearchRequest) (*ToolSearchResponse, error) {
	var resp ToolSearchResponse
	if err := c.post(ctx, "/v2/tools/search", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTool fetches one tool spec by id.
func (c *Client) GetTool(ctx context.Context, toolID string) (*ToolSpec, error) {
	var resp ToolSpec
	if err := c.get(ctx, "/v2/tools/"+url.PathEscape(toolID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Download fetches the generated file bundle of a complete build.
func (c *Client) Download(ctx context.Context, buildID string) (*DownloadResponse, error) {
	var resp DownloadResponse
	if err := c.get(ctx, "/v2/download/"+url.PathEscape(buildID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health fetches the server's health report.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WaitOptions tune WaitForCompletion's polling.
type WaitOptions struct {
	// PollInterval between status fetches. Defaults to 2 seconds.
	PollInterval time.Duration
}

// WaitForCompletion polls a build until it reaches complete or failed, the
// context expires, or a poll fails. A failed build is returned without an
// error; the caller inspects Build.Error.
func (c *Client) WaitForCompletion(ctx context.Context, buildID string, opts *WaitOptions) (*Build, error) {
	interval := 2 * time.Second
	if opts != nil && opts.PollInterval > 0 {
		interval = opts.PollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		b, err := c.Status(ctx, buildID)
		if err != nil {
			return nil, err
		}
		if b.Terminal() {
			return b, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("agentex: wait for build %s: %w", buildID, ctx.Err())
		case <-ticker.C:
		}
	}
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

// apiEnvelope is the server's standard response wrapper.
type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// apiErrorEnvelope is the server's standard error response wrapper.
type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("agentex: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("agentex: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(req, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("agentex: create request: %w", err)
	}

	return c.doRequest(req, dest)
}

func (c *Client) doRequest(req *http.Request, dest any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("agentex: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

func handleResponse(resp *http.Response, dest any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("agentex: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, bodyBytes)
	}

	if resp.StatusCode == http.StatusNoContent || dest == nil {
		return nil
	}

	// Unwrap the server's { "data": ... } envelope.
	var envelope apiEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		return fmt.Errorf("agentex: decode response envelope: %w", err)
	}
	if envelope.Data == nil {
		return json.Unmarshal(bodyBytes, dest)
	}
	return json.Unmarshal(envelope.Data, dest)
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = string(body)
	}

	return apiErr
}
