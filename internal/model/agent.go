package model

import "strings"

// AgentSpec describes the agent a caller wants built: one brain, an ordered
// list of requested tool ids (which may contain typos or aliases), and an
// optional runtime. Created fresh per validate/generate call; never persisted
// outside a build's config snapshot.
type AgentSpec struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Brain       string       `json:"brain"`
	Tools       []string     `json:"tools"`
	Runtime     string       `json:"runtime,omitempty"` // empty or "auto" means pick for me
	Config      *AgentConfig `json:"config,omitempty"`
}

// AgentConfig holds optional model and scheduling configuration.
// Environment carries caller-supplied credential values; they live only in
// the build's config snapshot and are redacted on status reads for anyone
// but the owning agent.
type AgentConfig struct {
	Temperature     float64           `json:"temperature,omitempty"`
	MaxTokens       int               `json:"max_tokens,omitempty"`
	CronSchedule    string            `json:"cron_schedule,omitempty"`
	Timeout         int               `json:"timeout,omitempty"`          // seconds
	ExpectedTraffic string            `json:"expected_traffic,omitempty"` // "low", "medium", "high"
	Environment     map[string]string `json:"environment,omitempty"`
}

// DefaultBrain is suggested when a requested brain is unrecognized.
const DefaultBrain = "claude-3-5-sonnet"

// knownBrains are accepted brain identifier/provider fragments. A requested
// brain is valid when it contains any of these, case-insensitively.
var knownBrains = []string{
	"claude", "anthropic",
	"gpt", "openai", "o1", "o3",
	"gemini", "google",
	"llama", "meta",
	"mistral",
	"grok", "xai",
}

// KnownBrain reports whether id names a recognized brain.
func KnownBrain(id string) bool {
	lower := strings.ToLower(id)
	for _, frag := range knownBrains {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}
