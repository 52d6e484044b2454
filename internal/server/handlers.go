package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nichedotsol/agentex/internal/build"
	"github.com/nichedotsol/agentex/internal/catalog"
	"github.com/nichedotsol/agentex/internal/deploy"
	"github.com/nichedotsol/agentex/internal/model"
	"github.com/nichedotsol/agentex/internal/redact"
	"github.com/nichedotsol/agentex/internal/validator"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	store               build.Store
	catalog             *catalog.Catalog
	validator           *validator.Validator
	runner              *build.Runner
	dispatcher          *deploy.Dispatcher
	redactor            *redact.Redactor
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	baseURL             string
	maxRequestBodyBytes int64
}

// HandlersDeps holds all dependencies for constructing Handlers.
type HandlersDeps struct {
	Store               build.Store
	Catalog             *catalog.Catalog
	Validator           *validator.Validator
	Runner              *build.Runner
	Dispatcher          *deploy.Dispatcher
	Redactor            *redact.Redactor
	Logger              *slog.Logger
	Version             string
	BaseURL             string
	MaxRequestBodyBytes int64
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	if d.Redactor == nil {
		d.Redactor = redact.New(nil)
	}
	return &Handlers{
		store:               d.Store,
		catalog:             d.Catalog,
		validator:           d.Validator,
		runner:              d.Runner,
		dispatcher:          d.Dispatcher,
		redactor:            d.Redactor,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		baseURL:             d.BaseURL,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
	}
}

// HandleValidate handles POST /v2/validate. Validation findings are data,
// not errors: a spec full of problems still returns 200.
func (h *Handlers) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var spec model.AgentSpec
	if err := decodeJSON(w, r, &spec, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.validator.Validate(spec))
}

// HandleGenerate handles POST /v2/generate. The spec is validated first;
// error-severity findings reject the request, warnings do not.
func (h *Handlers) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	spec := req.Spec()
	result := h.validator.Validate(spec)
	if !result.Valid {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, validationSummary(result.Issues))
		return
	}

	agentID := ""
	if claims := ClaimsFromContext(r.Context()); claims != nil {
		agentID = claims.AgentID
	}

	id := model.NewBuildID()
	if err := h.store.Create(r.Context(), build.NewBuild(id, agentID, &spec)); err != nil {
		if errors.Is(err, build.ErrExists) {
			writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "build id collision, retry the request")
			return
		}
		h.logger.Error("create build record", "build_id", id, "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to create build")
		return
	}
	h.runner.Launch(id)

	h.logger.Info("build enqueued", "build_id", id, "agent", spec.Name)
	writeJSON(w, r, http.StatusOK, model.GenerateResponse{
		BuildID:       id,
		Status:        model.BuildQueued,
		EstimatedTime: h.runner.EstimatedTime(),
		StatusURL:     h.baseURL + "/v2/status/" + id,
	})
}

// validationSummary flattens error-severity issues into one message.
func validationSummary(issues []model.Issue) string {
	msgs := make([]string, 0, len(issues))
	for _, issue := range issues {
		if issue.Severity != model.SeverityError {
			continue
		}
		msg := issue.Message
		if issue.Suggestion != "" {
			msg += " (" + issue.Suggestion + ")"
		}
		msgs = append(msgs, msg)
	}
	return "agent spec failed validation: " + strings.Join(msgs, "; ")
}

// statusPayload is a build with its config snapshot replaced by a possibly
// redacted copy. The outer Config field shadows the embedded one.
type statusPayload struct {
	model.Build
	Config any `json:"config,omitempty"`
}

// HandleStatus handles GET /v2/status/{build_id}. The config snapshot is
// redacted unless the bearer token's agent owns the build.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("build_id")
	b, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, build.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "build not found: "+id)
			return
		}
		h.logger.Error("read build record", "build_id", id, "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to read build")
		return
	}

	payload := statusPayload{Build: b}
	if b.Config != nil {
		owner := false
		if claims := ClaimsFromContext(r.Context()); claims != nil {
			owner = b.AgentID != "" && claims.AgentID == b.AgentID
		}
		if owner {
			payload.Config = b.Config
		} else {
			payload.Config = h.redactConfig(b.Config)
		}
	}
	writeJSON(w, r, http.StatusOK, payload)
}

// redactConfig round-trips the config snapshot through JSON so the redactor
// can walk it as a generic map.
func (h *Handlers) redactConfig(cfg *model.AgentSpec) any {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return h.redactor.Value(m)
}

// HandleDeploy handles POST /v2/deploy.
func (h *Handlers) HandleDeploy(w http.ResponseWriter, r *http.Request) {
	var req model.DeployRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	resp, err := h.dispatcher.Dispatch(r.Context(), req)
	switch {
	case err == nil:
		h.logger.Info("deployment dispatched",
			"deploy_id", resp.DeployID, "build_id", req.BuildID, "platform", req.Platform)
		writeJSON(w, r, http.StatusOK, resp)
	case errors.Is(err, deploy.ErrMissingFields):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
	case errors.Is(err, build.ErrNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "build not found: "+req.BuildID)
	case errors.Is(err, deploy.ErrNotComplete):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
	default:
		h.logger.Error("dispatch deployment", "build_id", req.BuildID, "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to dispatch deployment")
	}
}

// HandleSearchTools handles POST /v2/tools/search.
func (h *Handlers) HandleSearchTools(w http.ResponseWriter, r *http.Request) {
	var req model.ToolSearchRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	h.writeSearchResults(w, r, req)
}

// HandleSearchToolsGet handles GET /v2/tools/search with query parameters
// q, category, and capabilities (comma-separated).
func (h *Handlers) HandleSearchToolsGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := model.ToolSearchRequest{
		Query:    q.Get("q"),
		Category: model.ToolCategory(q.Get("category")),
	}
	if caps := q.Get("capabilities"); caps != "" {
		for _, c := range strings.Split(caps, ",") {
			if c = strings.TrimSpace(c); c != "" {
				req.Capabilities = append(req.Capabilities, c)
			}
		}
	}
	h.writeSearchResults(w, r, req)
}

func (h *Handlers) writeSearchResults(w http.ResponseWriter, r *http.Request, req model.ToolSearchRequest) {
	tools := h.catalog.Search(req)
	writeJSON(w, r, http.StatusOK, model.ToolSearchResponse{Tools: tools, Total: len(tools)})
}

// HandleGetTool handles GET /v2/tools/{tool_id}. An unknown id gets a 404
// with a fuzzy suggestion when one exists.
func (h *Handlers) HandleGetTool(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("tool_id")
	spec, err := h.catalog.Resolve(id)
	if err != nil {
		msg := fmt.Sprintf("tool not found: %q", id)
		if similar, ok := h.catalog.FindSimilar(id); ok {
			msg += fmt.Sprintf(" (did you mean %q?)", similar.ID)
		}
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, msg)
		return
	}
	writeJSON(w, r, http.StatusOK, spec)
}

// downloadPayload is the response for GET /v2/download/{build_id}.
type downloadPayload struct {
	BuildID string                `json:"build_id"`
	Files   []model.GeneratedFile `json:"files"`
}

// HandleDownload handles GET /v2/download/{build_id}, serving the generated
// file bundle once the build is complete.
func (h *Handlers) HandleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("build_id")
	b, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, build.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "build not found: "+id)
			return
		}
		h.logger.Error("read build record", "build_id", id, "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to read build")
		return
	}
	if b.Status != model.BuildComplete || b.Result == nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput,
			fmt.Sprintf("build not complete: current status %q", b.Status))
		return
	}
	writeJSON(w, r, http.StatusOK, downloadPayload{BuildID: b.ID, Files: b.Result.Files})
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, model.HealthResponse{
		Status:  "healthy",
		Version: h.version,
		Store:   h.store.Name(),
		Tools:   h.catalog.Len(),
		Uptime:  int64(time.Since(h.startedAt).Seconds()),
	})
}
