package model

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// BuildStatus represents the lifecycle state of a build.
type BuildStatus string

const (
	BuildQueued     BuildStatus = "queued"
	BuildGenerating BuildStatus = "generating"
	BuildComplete   BuildStatus = "complete"
	BuildFailed     BuildStatus = "failed"
)

// IsTerminal returns whether this status permits no further status transition.
// A complete build's result may still gain deploy fields afterwards.
func (s BuildStatus) IsTerminal() bool {
	return s == BuildComplete || s == BuildFailed
}

// GeneratedFile is one file emitted by the code generator.
type GeneratedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// BuildResult is populated only when a build reaches complete.
type BuildResult struct {
	DownloadURL string          `json:"download_url,omitempty"`
	PreviewURL  string          `json:"preview_url,omitempty"`
	SetupURL    string          `json:"setup_url,omitempty"`
	Files       []GeneratedFile `json:"files,omitempty"`
	DeployURL   string          `json:"deploy_url,omitempty"`
	DeployID    string          `json:"deploy_id,omitempty"`
	DeployError *DeployError    `json:"deploy_error,omitempty"`
}

// BuildError is populated only when a build reaches failed.
type BuildError struct {
	Message      string `json:"message"`
	Code         string `json:"code"`
	CanRetry     bool   `json:"can_retry"`
	SuggestedFix string `json:"suggested_fix,omitempty"`
}

// DeployError records a deployment failure on an otherwise complete build.
// The build status stays complete; only the deploy outcome is negative.
type DeployError struct {
	Message  string `json:"message"`
	Code     string `json:"code"`
	CanRetry bool   `json:"can_retry"`
}

// Build is one asynchronous code-generation job. Invariants:
//   - status terminal implies exactly one of Result/Error is non-nil
//   - both are nil while status is queued or generating
//   - Progress is monotonically non-decreasing until a terminal state
type Build struct {
	ID        string       `json:"build_id"`
	Status    BuildStatus  `json:"status"`
	Progress  int          `json:"progress"` // 0-100
	AgentID   string       `json:"agent_id,omitempty"`
	Config    *AgentSpec   `json:"config,omitempty"`
	Result    *BuildResult `json:"result,omitempty"`
	Error     *BuildError  `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newOpaqueID builds an id of the form <prefix>_<unix-ms>_<7 base36 chars>.
func newOpaqueID(prefix string) string {
	suffix := make([]byte, 7)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(idAlphabet))))
		if err != nil {
			// crypto/rand failing means the platform is broken; fall back to
			// a timestamp-derived character rather than returning an error
			// from an id constructor.
			suffix[i] = idAlphabet[time.Now().UnixNano()%int64(len(idAlphabet))]
			continue
		}
		suffix[i] = idAlphabet[n.Int64()]
	}
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), suffix)
}

// NewBuildID returns a fresh opaque build id.
func NewBuildID() string { return newOpaqueID("build") }

// NewDeployID returns a fresh opaque deploy id.
func NewDeployID() string { return newOpaqueID("deploy") }
