package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nichedotsol/agentex/internal/auth"
	"github.com/nichedotsol/agentex/internal/build"
	"github.com/nichedotsol/agentex/internal/catalog"
	"github.com/nichedotsol/agentex/internal/deploy"
	"github.com/nichedotsol/agentex/internal/model"
	"github.com/nichedotsol/agentex/internal/server"
	"github.com/nichedotsol/agentex/internal/validator"
)

type stubGenerator struct {
	files []model.GeneratedFile
}

func (g stubGenerator) Generate(_ context.Context, _ model.AgentSpec, _ []model.ToolSpec) ([]model.GeneratedFile, error) {
	return g.files, nil
}

type testEnv struct {
	srv    *httptest.Server
	store  build.Store
	jwtMgr *auth.JWTManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := build.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	return newTestEnvWithStore(t, store)
}

func newTestEnvWithStore(t *testing.T, store build.Store) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cat, err := catalog.Load(logger)
	require.NoError(t, err)

	gen := stubGenerator{files: []model.GeneratedFile{
		{Path: "agent.json", Content: "{}"},
		{Path: "src/index.ts", Content: "export {}"},
	}}
	runner := build.NewRunner(store, gen, cat, build.RunnerOptions{
		BaseURL: "http://api.test",
		Logger:  logger,
	})
	t.Cleanup(runner.Close)

	dispatcher := deploy.NewDispatcher(store, deploy.Options{
		BaseURL: "http://api.test",
		Logger:  logger,
	})
	t.Cleanup(dispatcher.Close)

	jwtMgr, err := auth.NewJWTManager("", "", time.Hour)
	require.NoError(t, err)

	s := server.New(server.ServerConfig{
		Store:               store,
		Catalog:             cat,
		Validator:           validator.New(cat),
		Runner:              runner,
		Dispatcher:          dispatcher,
		JWTMgr:              jwtMgr,
		Logger:              logger,
		Version:             "test",
		BaseURL:             "http://api.test",
		MaxRequestBodyBytes: 1 << 20,
	})

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, store: store, jwtMgr: jwtMgr}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta struct {
		RequestID string `json:"request_id"`
	} `json:"meta"`
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	assert.NotEmpty(t, env.Meta.RequestID)

	var health model.HealthResponse
	require.NoError(t, json.Unmarshal(env.Data, &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "memory", health.Store)
	assert.Greater(t, health.Tools, 0)
}

func TestValidateMalformedBody(t *testing.T) {
	e := newTestEnv(t)

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/v2/validate", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	require.NotNil(t, env.Error)
	assert.Equal(t, model.ErrCodeInvalidInput, env.Error.Code)
}

func TestValidateReportsIssuesWith200(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodPost, "/v2/validate", "", model.AgentSpec{
		Name:        "Inbox helper",
		Description: "Replies to email",
		Brain:       "gpt-4o",
		Tools:       []string{"tool-resend-email", "not-a-real-tool"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env := decodeEnvelope(t, resp)

	var result model.ValidationResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Issues)
	assert.Equal(t, model.IssueMissingTool, result.Issues[0].Kind)
}

func TestGenerateRejectsInvalidSpec(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodPost, "/v2/generate", "", model.GenerateRequest{
		Name: "Missing everything",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	require.NotNil(t, env.Error)
	assert.Equal(t, model.ErrCodeInvalidInput, env.Error.Code)
	assert.Contains(t, env.Error.Message, "failed validation")
}

// collidingStore forces every Create into an id collision.
type collidingStore struct {
	build.Store
}

func (collidingStore) Create(context.Context, model.Build) error {
	return build.ErrExists
}

func TestGenerateIDCollisionReturns409(t *testing.T) {
	inner := build.NewMemoryStore()
	t.Cleanup(func() { _ = inner.Close() })
	e := newTestEnvWithStore(t, collidingStore{Store: inner})

	resp := e.do(t, http.MethodPost, "/v2/generate", "", model.GenerateRequest{
		Name:        "Scraper bot",
		Description: "Scrapes pages",
		Brain:       "claude-3-5-sonnet",
		Tools:       []string{"tool-web-scraper"},
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	require.NotNil(t, env.Error)
	assert.Equal(t, model.ErrCodeConflict, env.Error.Code)
}

func TestGenerateAndPollToComplete(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodPost, "/v2/generate", "", model.GenerateRequest{
		Name:        "Scraper bot",
		Description: "Scrapes pages",
		Brain:       "claude-3-5-sonnet",
		Tools:       []string{"tool-web-scraper"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env := decodeEnvelope(t, resp)

	var ticket model.GenerateResponse
	require.NoError(t, json.Unmarshal(env.Data, &ticket))
	assert.Regexp(t, `^build_\d{13,}_[0-9a-z]{7}$`, ticket.BuildID)
	assert.Equal(t, model.BuildQueued, ticket.Status)
	assert.Greater(t, ticket.EstimatedTime, 0)
	assert.Equal(t, "http://api.test/v2/status/"+ticket.BuildID, ticket.StatusURL)

	var b model.Build
	require.Eventually(t, func() bool {
		resp := e.do(t, http.MethodGet, "/v2/status/"+ticket.BuildID, "", nil)
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return false
		}
		env := decodeEnvelope(t, resp)
		if err := json.Unmarshal(env.Data, &b); err != nil {
			return false
		}
		return b.Status.IsTerminal()
	}, 5*time.Second, 20*time.Millisecond)

	require.Equal(t, model.BuildComplete, b.Status)
	assert.Equal(t, 100, b.Progress)
	require.NotNil(t, b.Result)
	assert.Equal(t, "http://api.test/v2/download/"+ticket.BuildID, b.Result.DownloadURL)
	assert.Len(t, b.Result.Files, 2)

	dlResp := e.do(t, http.MethodGet, "/v2/download/"+ticket.BuildID, "", nil)
	require.Equal(t, http.StatusOK, dlResp.StatusCode)
	dlEnv := decodeEnvelope(t, dlResp)
	var dl struct {
		BuildID string                `json:"build_id"`
		Files   []model.GeneratedFile `json:"files"`
	}
	require.NoError(t, json.Unmarshal(dlEnv.Data, &dl))
	assert.Equal(t, ticket.BuildID, dl.BuildID)
	assert.Len(t, dl.Files, 2)
}

func TestStatusUnknownBuild(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodGet, "/v2/status/build_123_zzzzzzz", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	require.NotNil(t, env.Error)
	assert.Equal(t, model.ErrCodeNotFound, env.Error.Code)
}

func TestDeployBeforeComplete(t *testing.T) {
	e := newTestEnv(t)

	id := model.NewBuildID()
	require.NoError(t, e.store.Create(context.Background(), build.NewBuild(id, "", nil)))

	resp := e.do(t, http.MethodPost, "/v2/deploy", "", model.DeployRequest{
		BuildID:     id,
		Platform:    "vercel",
		Credentials: model.Credentials{APIKey: "tok"},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	require.NotNil(t, env.Error)
	assert.Equal(t, model.ErrCodeInvalidInput, env.Error.Code)
	assert.Contains(t, env.Error.Message, "queued")

	// The precondition failure must not touch the record.
	b, err := e.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.BuildQueued, b.Status)
	assert.Nil(t, b.Result)
}

func TestDeployUnknownBuild(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodPost, "/v2/deploy", "", model.DeployRequest{
		BuildID:     "build_1_aaaaaaa",
		Platform:    "vercel",
		Credentials: model.Credentials{APIKey: "tok"},
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	require.NotNil(t, env.Error)
	assert.Equal(t, model.ErrCodeNotFound, env.Error.Code)
}

func TestDeployMissingFields(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodPost, "/v2/deploy", "", model.DeployRequest{
		BuildID: "build_1_aaaaaaa",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	require.NotNil(t, env.Error)
	assert.Equal(t, model.ErrCodeInvalidInput, env.Error.Code)
}

func configuredBuild(agentID string) model.Build {
	b := build.NewBuild(model.NewBuildID(), agentID, &model.AgentSpec{
		Name:  "Mail agent",
		Brain: "gpt-4o",
		Tools: []string{"tool-resend-email"},
		Config: &model.AgentConfig{
			Environment: map[string]string{
				"RESEND_API_KEY": "re_live_abc123",
				"NOTES":          "hello",
			},
		},
	})
	b.Status = model.BuildComplete
	b.Progress = 100
	b.Result = &model.BuildResult{}
	return b
}

func statusEnvironment(t *testing.T, e *testEnv, id, token string) map[string]string {
	t.Helper()
	resp := e.do(t, http.MethodGet, "/v2/status/"+id, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env := decodeEnvelope(t, resp)

	var payload struct {
		Config struct {
			Config struct {
				Environment map[string]string `json:"environment"`
			} `json:"config"`
		} `json:"config"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	return payload.Config.Config.Environment
}

func TestStatusRedactsConfigForNonOwner(t *testing.T) {
	e := newTestEnv(t)

	b := configuredBuild("owner-1")
	require.NoError(t, e.store.Create(context.Background(), b))

	env := statusEnvironment(t, e, b.ID, "")
	assert.Equal(t, "[REDACTED]", env["RESEND_API_KEY"])
	assert.Equal(t, "hello", env["NOTES"])

	strangerToken, _, err := e.jwtMgr.IssueToken("someone-else")
	require.NoError(t, err)
	env = statusEnvironment(t, e, b.ID, strangerToken)
	assert.Equal(t, "[REDACTED]", env["RESEND_API_KEY"])
}

func TestStatusShowsConfigToOwner(t *testing.T) {
	e := newTestEnv(t)

	b := configuredBuild("owner-1")
	require.NoError(t, e.store.Create(context.Background(), b))

	token, _, err := e.jwtMgr.IssueToken("owner-1")
	require.NoError(t, err)
	env := statusEnvironment(t, e, b.ID, token)
	assert.Equal(t, "re_live_abc123", env["RESEND_API_KEY"])
}

func TestInvalidTokenRejected(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodGet, "/health", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	require.NotNil(t, env.Error)
	assert.Equal(t, model.ErrCodeUnauthorized, env.Error.Code)
}

func TestGetTool(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodGet, "/v2/tools/tool-resend-email", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	var spec model.ToolSpec
	require.NoError(t, json.Unmarshal(env.Data, &spec))
	assert.Equal(t, "tool-resend-email", spec.ID)
}

func TestGetToolNotFoundWithSuggestion(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodGet, "/v2/tools/resend", "", nil)
	// "resend" resolves via the prefix rules, so use an id that cannot.
	if resp.StatusCode == http.StatusOK {
		resp.Body.Close()
		resp = e.do(t, http.MethodGet, "/v2/tools/resend-mailer-v9", "", nil)
	}
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	require.NotNil(t, env.Error)
	assert.Equal(t, model.ErrCodeNotFound, env.Error.Code)
}

func TestSearchToolsPost(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodPost, "/v2/tools/search", "", model.ToolSearchRequest{
		Category: model.CategoryBlockchain,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	var result model.ToolSearchResponse
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.Greater(t, result.Total, 0)
	for _, tool := range result.Tools {
		assert.Equal(t, model.CategoryBlockchain, tool.Category)
	}
}

func TestSearchToolsGet(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, http.MethodGet, "/v2/tools/search?q=email", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	var result model.ToolSearchResponse
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.Greater(t, result.Total, 0)
	assert.Equal(t, len(result.Tools), result.Total)
}
