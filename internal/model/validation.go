package model

// IssueKind identifies the class of validation finding.
type IssueKind string

const (
	IssueMissingTool           IssueKind = "missing_tool"
	IssueRuntimeIncompatible   IssueKind = "runtime_incompatible"
	IssueConfigError           IssueKind = "config_error"
	IssueMissingRequiredFields IssueKind = "missing_required_fields"
)

// Severity grades a validation issue. Issues are always returned to the
// caller, never raised as errors.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single structured validation finding.
type Issue struct {
	Kind        IssueKind `json:"kind"`
	Severity    Severity  `json:"severity"`
	Tool        string    `json:"tool,omitempty"`
	Message     string    `json:"message"`
	Suggestion  string    `json:"suggestion,omitempty"`
	AutoFixable bool      `json:"auto_fixable"`
}

// CostLine is one entry in a cost estimate breakdown.
type CostLine struct {
	Service string `json:"service"`
	Cost    string `json:"cost"`
}

// CostEstimate is the aggregated monthly cost of tools plus hosting.
// Total reads "Free" when no breakdown line carries a dollar figure.
type CostEstimate struct {
	Monthly   string     `json:"monthly"`
	Breakdown []CostLine `json:"breakdown"`
	Total     string     `json:"total"`
}

// Recommendation is the runtime selector's verdict for a requirement set.
type Recommendation struct {
	Primary         string   `json:"primary"`
	Reasoning       string   `json:"reasoning"`
	Alternatives    []string `json:"alternatives"`
	CostEstimate    string   `json:"cost_estimate"`
	Limitations     []string `json:"limitations"`
	SetupDifficulty string   `json:"setup_difficulty"` // "easy", "medium", "hard"
	EstimatedTime   string   `json:"estimated_time"`   // e.g. "5 minutes"
}

// ToolSubstitution pairs an unresolved tool id with its suggested replacement.
type ToolSubstitution struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
}

// ValidationResult is the full verdict returned by the validator.
// Valid is derivable purely from Issues: true iff no issue has error severity.
type ValidationResult struct {
	Valid             bool               `json:"valid"`
	Issues            []Issue            `json:"issues"`
	EstimatedCost     CostEstimate       `json:"estimated_cost"`
	RequiredEnv       []EnvVar           `json:"required_env"`
	Runtime           *Recommendation    `json:"runtime,omitempty"`
	ToolSubstitutions []ToolSubstitution `json:"tool_substitutions,omitempty"`
}

// HasErrors reports whether any issue carries error severity.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}
