// Package validator checks agent descriptions against the tool catalog and
// runtime selector. Every problem becomes a structured issue in the result;
// Validate never returns an error.
package validator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nichedotsol/agentex/internal/catalog"
	"github.com/nichedotsol/agentex/internal/hosting"
	"github.com/nichedotsol/agentex/internal/model"
)

// Validator validates agent specs. Safe for concurrent use; the catalog is
// read-only after construction.
type Validator struct {
	catalog *catalog.Catalog
}

// New returns a Validator backed by the given catalog.
func New(c *catalog.Catalog) *Validator {
	return &Validator{catalog: c}
}

// Validate runs the full check: required fields, tool resolution with fuzzy
// suggestions, brain allow-list, runtime recommendation and compatibility,
// cost estimation, and required-env merging. Identical input always yields
// an identical result.
func (v *Validator) Validate(spec model.AgentSpec) model.ValidationResult {
	if issue, ok := missingFields(spec); ok {
		return model.ValidationResult{Valid: false, Issues: []model.Issue{issue}}
	}

	var issues []model.Issue
	var tools []model.ToolSpec

	for _, id := range spec.Tools {
		tool, err := v.catalog.Resolve(id)
		if err == nil {
			tools = append(tools, tool)
			continue
		}
		if similar, ok := v.catalog.FindSimilar(id); ok {
			issues = append(issues, model.Issue{
				Kind:        model.IssueMissingTool,
				Severity:    model.SeverityError,
				Tool:        id,
				Message:     fmt.Sprintf("Tool %q not found", id),
				Suggestion:  fmt.Sprintf("Use %q instead", similar.ID),
				AutoFixable: true,
			})
			continue
		}
		issues = append(issues, model.Issue{
			Kind:       model.IssueMissingTool,
			Severity:   model.SeverityError,
			Tool:       id,
			Message:    fmt.Sprintf("Tool %q not found", id),
			Suggestion: "Remove this tool",
		})
	}

	if !model.KnownBrain(spec.Brain) {
		issues = append(issues, model.Issue{
			Kind:       model.IssueConfigError,
			Severity:   model.SeverityError,
			Message:    fmt.Sprintf("Unknown brain %q", spec.Brain),
			Suggestion: fmt.Sprintf("Use %q", model.DefaultBrain),
		})
	}

	requirements := hosting.AnalyzeRequirements(spec, tools)
	recommendation := hosting.Recommend(requirements)

	runtime := recommendation.Primary
	if spec.Runtime != "" && spec.Runtime != hosting.RuntimeAuto {
		runtime = spec.Runtime
		verdict := hosting.CheckCompatibility(spec.Runtime, requirements)
		if !verdict.Compatible {
			issues = append(issues, model.Issue{
				Kind:       model.IssueRuntimeIncompatible,
				Severity:   model.SeverityWarning,
				Message:    verdict.Reason,
				Suggestion: fmt.Sprintf("Switch to %q", recommendation.Primary),
			})
		}
		if spec.Runtime != recommendation.Primary {
			issues = append(issues, model.Issue{
				Kind:       model.IssueRuntimeIncompatible,
				Severity:   model.SeverityWarning,
				Message:    fmt.Sprintf("Recommended runtime for this agent is %q, not %q", recommendation.Primary, spec.Runtime),
				Suggestion: fmt.Sprintf("Consider %q", recommendation.Primary),
			})
		}
	}

	cost := estimateCost(tools, runtime, requirements)
	requiredEnv := mergeRequiredEnv(tools)
	substitutions := collectSubstitutions(issues)

	return model.ValidationResult{
		Valid:             !model.HasErrors(issues),
		Issues:            issues,
		EstimatedCost:     cost,
		RequiredEnv:       requiredEnv,
		Runtime:           &recommendation,
		ToolSubstitutions: substitutions,
	}
}

// missingFields short-circuits validation when the spec is structurally
// incomplete. This path never reaches tool resolution.
func missingFields(spec model.AgentSpec) (model.Issue, bool) {
	var missing []string
	if spec.Name == "" {
		missing = append(missing, "name")
	}
	if spec.Description == "" {
		missing = append(missing, "description")
	}
	if spec.Brain == "" {
		missing = append(missing, "brain")
	}
	if spec.Tools == nil {
		missing = append(missing, "tools")
	}
	if len(missing) == 0 {
		return model.Issue{}, false
	}
	return model.Issue{
		Kind:       model.IssueMissingRequiredFields,
		Severity:   model.SeverityError,
		Message:    "Missing required fields: " + strings.Join(missing, ", "),
		Suggestion: "Provide name, description, brain, and a tools list",
	}, true
}

var dollarAmount = regexp.MustCompile(`\$(\d+)`)

// estimateCost sums paid and freemium tool costs plus hosting. Each entry's
// contribution is its leading dollar integer; a breakdown with no dollar
// figures totals "Free".
func estimateCost(tools []model.ToolSpec, runtime string, req hosting.Requirements) model.CostEstimate {
	var breakdown []model.CostLine
	for _, tool := range tools {
		if tool.Cost.Tier != model.TierPaid && tool.Cost.Tier != model.TierFreemium {
			continue
		}
		estimate := tool.Cost.Estimate
		if estimate == "" {
			estimate = "Check provider pricing"
		}
		breakdown = append(breakdown, model.CostLine{Service: tool.Name, Cost: estimate})
	}
	breakdown = append(breakdown, model.CostLine{
		Service: "Hosting",
		Cost:    hosting.Cost(runtime, req).Estimate,
	})

	total := 0
	priced := false
	for _, line := range breakdown {
		if m := dollarAmount.FindStringSubmatch(line.Cost); m != nil {
			n, _ := strconv.Atoi(m[1])
			total += n
			priced = true
		}
	}

	monthly := "Free"
	if priced {
		monthly = fmt.Sprintf("$%d+/month", total)
	}
	return model.CostEstimate{Monthly: monthly, Breakdown: breakdown, Total: monthly}
}

// mergeRequiredEnv deduplicates env vars across tools by key; the first
// occurrence wins.
func mergeRequiredEnv(tools []model.ToolSpec) []model.EnvVar {
	seen := make(map[string]bool)
	var out []model.EnvVar
	for _, tool := range tools {
		for _, env := range tool.RequiredEnv {
			if seen[env.Key] {
				continue
			}
			seen[env.Key] = true
			out = append(out, env)
		}
	}
	return out
}

// collectSubstitutions turns auto-fixable missing-tool issues into an
// original-to-replacement list.
func collectSubstitutions(issues []model.Issue) []model.ToolSubstitution {
	var out []model.ToolSubstitution
	for _, issue := range issues {
		if issue.Kind != model.IssueMissingTool || !issue.AutoFixable {
			continue
		}
		replacement := strings.TrimSuffix(strings.TrimPrefix(issue.Suggestion, `Use "`), `" instead`)
		out = append(out, model.ToolSubstitution{Original: issue.Tool, Replacement: replacement})
	}
	return out
}
