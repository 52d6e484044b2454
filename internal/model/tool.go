// Package model defines the core domain types for AgentEX.
//
// Types use strong typing (enums as string constants, time.Time) and avoid
// interface{} except where a field is genuinely caller-shaped (tool config,
// build metadata).
package model

// ToolCategory classifies a tool in the catalog.
type ToolCategory string

const (
	CategoryBlockchain    ToolCategory = "blockchain"
	CategoryCommunication ToolCategory = "communication"
	CategoryData          ToolCategory = "data"
	CategoryAI            ToolCategory = "ai"
	CategoryUtility       ToolCategory = "utility"
	CategoryStorage       ToolCategory = "storage"
	CategoryAnalytics     ToolCategory = "analytics"
)

// ValidCategory reports whether c is one of the known tool categories.
func ValidCategory(c ToolCategory) bool {
	switch c {
	case CategoryBlockchain, CategoryCommunication, CategoryData,
		CategoryAI, CategoryUtility, CategoryStorage, CategoryAnalytics:
		return true
	}
	return false
}

// CostTier describes how a tool or runtime is priced.
type CostTier string

const (
	TierFree     CostTier = "free"
	TierFreemium CostTier = "freemium"
	TierPaid     CostTier = "paid"
)

// EnvVar is one environment variable a tool needs at runtime.
type EnvVar struct {
	Key      string `json:"key"`
	Purpose  string `json:"purpose"`
	GetFrom  string `json:"get_from"` // URL where the credential is obtained.
	Required bool   `json:"required"`
	Example  string `json:"example,omitempty"`
}

// ToolCost describes the pricing of a tool.
type ToolCost struct {
	Tier     CostTier `json:"tier"`
	Estimate string   `json:"estimate,omitempty"` // e.g. "$5-20/month" or "Free tier available"
}

// ToolSpec is an immutable tool specification loaded from the catalog.
// Specs are loaded once at process start and never mutated per request.
type ToolSpec struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Provider      string       `json:"provider,omitempty"`
	Category      ToolCategory `json:"category"`
	Description   string       `json:"description,omitempty"`
	Tags          []string     `json:"tags,omitempty"`
	Capabilities  []string     `json:"capabilities,omitempty"`
	RequiredEnv   []EnvVar     `json:"required_env,omitempty"`
	Cost          ToolCost     `json:"cost"`
	Documentation string       `json:"documentation,omitempty"`
}
