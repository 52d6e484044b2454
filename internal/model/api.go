package model

import "time"

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// GenerateRequest is the request body for POST /v2/generate.
type GenerateRequest struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Brain       string       `json:"brain"`
	Tools       []string     `json:"tools"`
	Runtime     string       `json:"runtime"`
	Config      *AgentConfig `json:"config,omitempty"`
}

// Spec converts the request into an AgentSpec.
func (r GenerateRequest) Spec() AgentSpec {
	return AgentSpec{
		Name:        r.Name,
		Description: r.Description,
		Brain:       r.Brain,
		Tools:       r.Tools,
		Runtime:     r.Runtime,
		Config:      r.Config,
	}
}

// GenerateResponse is the response for POST /v2/generate.
type GenerateResponse struct {
	BuildID       string      `json:"build_id"`
	Status        BuildStatus `json:"status"`
	EstimatedTime int         `json:"estimated_time"` // seconds
	StatusURL     string      `json:"status_url"`
}

// DeployRequest is the request body for POST /v2/deploy.
type DeployRequest struct {
	BuildID     string            `json:"build_id"`
	Platform    string            `json:"platform"`
	Credentials Credentials       `json:"credentials"`
	Environment map[string]string `json:"environment,omitempty"`
	ProjectName string            `json:"project_name,omitempty"`
}

// Credentials carries the platform API key for a deployment.
type Credentials struct {
	APIKey string `json:"api_key"`
}

// DeployResponse is the response for POST /v2/deploy.
type DeployResponse struct {
	DeployID      string `json:"deploy_id"`
	Status        string `json:"status"` // always "deploying"
	EstimatedTime int    `json:"estimated_time"`
	StatusURL     string `json:"status_url"`
}

// ToolSearchRequest is the request body for POST /v2/tools/search.
// Provided filters are combined with AND.
type ToolSearchRequest struct {
	Query        string       `json:"query,omitempty"`
	Category     ToolCategory `json:"category,omitempty"`
	Capabilities []string     `json:"capabilities,omitempty"`
}

// ToolSearchResponse is the response for tool searches.
type ToolSearchResponse struct {
	Tools []ToolSpec `json:"tools"`
	Total int        `json:"total"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Store   string `json:"store"`
	Tools   int    `json:"tools"`
	Uptime  int64  `json:"uptime_seconds"`
}
