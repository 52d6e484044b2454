package agentex

import "time"

// AgentSpec describes the agent to build: one brain, the requested tool
// ids, and an optional runtime preference.
type AgentSpec struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Brain       string       `json:"brain"`
	Tools       []string     `json:"tools"`
	Runtime     string       `json:"runtime,omitempty"` // empty or "auto" means pick for me
	Config      *AgentConfig `json:"config,omitempty"`
}

// AgentConfig holds optional model and scheduling configuration.
type AgentConfig struct {
	Temperature     float64           `json:"temperature,omitempty"`
	MaxTokens       int               `json:"max_tokens,omitempty"`
	CronSchedule    string            `json:"cron_schedule,omitempty"`
	Timeout         int               `json:"timeout,omitempty"` // seconds
	ExpectedTraffic string            `json:"expected_traffic,omitempty"`
	Environment     map[string]string `json:"environment,omitempty"`
}

// Issue is a single structured validation finding.
type Issue struct {
	Kind        string `json:"kind"`
	Severity    string `json:"severity"` // "error" or "warning"
	Tool        string `json:"tool,omitempty"`
	Message     string `json:"message"`
	Suggestion  string `json:"suggestion,omitempty"`
	AutoFixable bool   `json:"auto_fixable"`
}

// CostLine is one entry in a cost estimate breakdown.
type CostLine struct {
	Service string `json:"service"`
	Cost    string `json:"cost"`
}

// CostEstimate is the aggregated monthly cost of tools plus hosting.
type CostEstimate struct {
	Monthly   string     `json:"monthly"`
	Breakdown []CostLine `json:"breakdown"`
	Total     string     `json:"total"`
}

// EnvVar is one credential a generated agent needs at runtime.
type EnvVar struct {
	Key      string `json:"key"`
	Purpose  string `json:"purpose"`
	GetFrom  string `json:"get_from"`
	Required bool   `json:"required"`
	Example  string `json:"example,omitempty"`
}

// Recommendation is the runtime selector's verdict.
type Recommendation struct {
	Primary         string   `json:"primary"`
	Reasoning       string   `json:"reasoning"`
	Alternatives    []string `json:"alternatives"`
	CostEstimate    string   `json:"cost_estimate"`
	Limitations     []string `json:"limitations"`
	SetupDifficulty string   `json:"setup_difficulty"`
	EstimatedTime   string   `json:"estimated_time"`
}

// ToolSubstitution pairs an unresolved tool id with a suggested replacement.
type ToolSubstitution struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
}

// ValidationResult is the full verdict returned by Validate.
type ValidationResult struct {
	Valid             bool               `json:"valid"`
	Issues            []Issue            `json:"issues"`
	EstimatedCost     CostEstimate       `json:"estimated_cost"`
	RequiredEnv       []EnvVar           `json:"required_env"`
	Runtime           *Recommendation    `json:"runtime,omitempty"`
	ToolSubstitutions []ToolSubstitution `json:"tool_substitutions,omitempty"`
}

// GenerateResponse is the ticket returned when a build is enqueued.
type GenerateResponse struct {
	BuildID       string `json:"build_id"`
	Status        string `json:"status"`
	EstimatedTime int    `json:"estimated_time"` // seconds
	StatusURL     string `json:"status_url"`
}

// Build statuses.
const (
	BuildQueued     = "queued"
	BuildGenerating = "generating"
	BuildComplete   = "complete"
	BuildFailed     = "failed"
)

// GeneratedFile is one file emitted by the code generator.
type GeneratedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// BuildResult is populated once a build reaches complete.
type BuildResult struct {
	DownloadURL string          `json:"download_url,omitempty"`
	PreviewURL  string          `json:"preview_url,omitempty"`
	SetupURL    string          `json:"setup_url,omitempty"`
	Files       []GeneratedFile `json:"files,omitempty"`
	DeployURL   string          `json:"deploy_url,omitempty"`
	DeployID    string          `json:"deploy_id,omitempty"`
	DeployError *DeployError    `json:"deploy_error,omitempty"`
}

// BuildError is populated when a build reaches failed.
type BuildError struct {
	Message      string `json:"message"`
	Code         string `json:"code"`
	CanRetry     bool   `json:"can_retry"`
	SuggestedFix string `json:"suggested_fix,omitempty"`
}

// DeployError records a deployment failure on an otherwise complete build.
type DeployError struct {
	Message  string `json:"message"`
	Code     string `json:"code"`
	CanRetry bool   `json:"can_retry"`
}

// Build is the server's view of one code-generation job.
type Build struct {
	ID        string       `json:"build_id"`
	Status    string       `json:"status"`
	Progress  int          `json:"progress"` // 0-100
	AgentID   string       `json:"agent_id,omitempty"`
	Result    *BuildResult `json:"result,omitempty"`
	Error     *BuildError  `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Terminal reports whether the build has reached complete or failed.
func (b *Build) Terminal() bool {
	return b.Status == BuildComplete || b.Status == BuildFailed
}

// Credentials carries the platform API key for a deployment.
type Credentials struct {
	APIKey string `json:"api_key"`
}

// DeployRequest asks the server to deploy a complete build.
type DeployRequest struct {
	BuildID     string            `json:"build_id"`
	Platform    string            `json:"platform"` // "vercel" or "github"
	Credentials Credentials       `json:"credentials"`
	Environment map[string]string `json:"environment,omitempty"`
	ProjectName string            `json:"project_name,omitempty"`
}

// DeployResponse is the ticket returned when a deployment is dispatched.
type DeployResponse struct {
	DeployID      string `json:"deploy_id"`
	Status        string `json:"status"` // always "deploying"
	EstimatedTime int    `json:"estimated_time"`
	StatusURL     string `json:"status_url"`
}

// ToolCost describes a tool's pricing tier.
type ToolCost struct {
	Tier     string `json:"tier"` // "free", "freemium", "paid"
	Estimate string `json:"estimate,omitempty"`
}

// ToolSpec is one entry in the tool catalog.
type ToolSpec struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Provider      string   `json:"provider,omitempty"`
	Category      string   `json:"category"`
	Description   string   `json:"description,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Capabilities  []string `json:"capabilities,omitempty"`
	RequiredEnv   []EnvVar `json:"required_env,omitempty"`
	Cost          ToolCost `json:"cost"`
	Documentation string   `json:"documentation,omitempty"`
}

// ToolSearchRequest filters the catalog; provided filters are ANDed.
type ToolSearchRequest struct {
	Query        string   `json:"query,omitempty"`
	Category     string   `json:"category,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// ToolSearchResponse is the result of a catalog search.
type ToolSearchResponse struct {
	Tools []ToolSpec `json:"tools"`
	Total int        `json:"total"`
}

// DownloadResponse is the generated file bundle for a complete build.
type DownloadResponse struct {
	BuildID string          `json:"build_id"`
	Files   []GeneratedFile `json:"files"`
}

// HealthResponse is the server's health report.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Store   string `json:"store"`
	Tools   int    `json:"tools"`
	Uptime  int64  `json:"uptime_seconds"`
}
