package agentex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeData(t *testing.T, w http.ResponseWriter, status int, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
		"data": data,
		"meta": map[string]any{"request_id": "req-1"},
	}))
}

func writeAPIError(t *testing.T, w http.ResponseWriter, status int, code, message string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": message},
		"meta":  map[string]any{"request_id": "req-1"},
	}))
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestValidateUnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/validate", r.URL.Path)

		var spec AgentSpec
		require.NoError(t, json.NewDecoder(r.Body).Decode(&spec))
		assert.Equal(t, "Inbox helper", spec.Name)

		writeData(t, w, http.StatusOK, ValidationResult{
			Valid: false,
			Issues: []Issue{{
				Kind:     "missing_tool",
				Severity: "error",
				Tool:     "tool-resend-emial",
				Message:  `Tool "tool-resend-emial" not found`,
			}},
		})
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	result, err := c.Validate(context.Background(), AgentSpec{
		Name:  "Inbox helper",
		Brain: "gpt-4o",
		Tools: []string{"tool-resend-emial"},
	})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "missing_tool", result.Issues[0].Kind)
}

func TestClientSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		writeData(t, w, http.StatusOK, HealthResponse{Status: "healthy"})
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, Token: "tok-123"})
	require.NoError(t, err)

	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
}

func TestStatusNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeAPIError(t, w, http.StatusNotFound, "NOT_FOUND", "build not found: build_1_aaaaaaa")
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Status(context.Background(), "build_1_aaaaaaa")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
	assert.Contains(t, apiErr.Message, "build_1_aaaaaaa")
}

func TestDeployReturnsTicket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req DeployRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "vercel", req.Platform)
		assert.Equal(t, "tok_live", req.Credentials.APIKey)

		writeData(t, w, http.StatusOK, DeployResponse{
			DeployID:      "deploy_1700000000000_a1b2c3d",
			Status:        "deploying",
			EstimatedTime: 120,
			StatusURL:     "http://api.test/v2/status/" + req.BuildID,
		})
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	ticket, err := c.Deploy(context.Background(), DeployRequest{
		BuildID:     "build_1700000000000_z9y8x7w",
		Platform:    "vercel",
		Credentials: Credentials{APIKey: "tok_live"},
	})
	require.NoError(t, err)
	assert.Regexp(t, `^deploy_\d{13,}_[0-9a-z]{7}$`, ticket.DeployID)
	assert.Equal(t, "deploying", ticket.Status)
	assert.Equal(t, 120, ticket.EstimatedTime)
}

func TestWaitForCompletionPollsUntilTerminal(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := polls.Add(1)
		b := Build{ID: "build_1_aaaaaaa", Status: BuildGenerating, Progress: 40}
		if n >= 3 {
			b.Status = BuildComplete
			b.Progress = 100
			b.Result = &BuildResult{DownloadURL: "http://api.test/v2/download/build_1_aaaaaaa"}
		}
		writeData(t, w, http.StatusOK, b)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	b, err := c.WaitForCompletion(context.Background(), "build_1_aaaaaaa", &WaitOptions{
		PollInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, BuildComplete, b.Status)
	assert.Equal(t, 100, b.Progress)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestWaitForCompletionReturnsFailedBuild(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeData(t, w, http.StatusOK, Build{
			ID:     "build_1_aaaaaaa",
			Status: BuildFailed,
			Error: &BuildError{
				Message:  "generator exploded",
				Code:     "GENERATION_ERROR",
				CanRetry: true,
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	b, err := c.WaitForCompletion(context.Background(), "build_1_aaaaaaa", nil)
	require.NoError(t, err)
	assert.Equal(t, BuildFailed, b.Status)
	require.NotNil(t, b.Error)
	assert.True(t, b.Error.CanRetry)
}

func TestWaitForCompletionHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeData(t, w, http.StatusOK, Build{ID: "build_1_aaaaaaa", Status: BuildQueued})
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = c.WaitForCompletion(ctx, "build_1_aaaaaaa", &WaitOptions{PollInterval: 10 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSearchTools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/tools/search", r.URL.Path)
		writeData(t, w, http.StatusOK, ToolSearchResponse{
			Tools: []ToolSpec{{ID: "tool-web-search", Category: "data"}},
			Total: 1,
		})
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	result, err := c.SearchTools(context.Background(), ToolSearchRequest{Query: "search"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, "tool-web-search", result.Tools[0].ID)
}

func TestRateLimitedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeAPIError(t, w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Validate(context.Background(), AgentSpec{Name: "x"})
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
}

func TestNonEnvelopeErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream broke"))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Health(context.Background())
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "upstream broke")
}
