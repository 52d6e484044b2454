package validator

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nichedotsol/agentex/internal/catalog"
	"github.com/nichedotsol/agentex/internal/hosting"
	"github.com/nichedotsol/agentex/internal/model"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	c, err := catalog.Load(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return New(c)
}

func validSpec() model.AgentSpec {
	return model.AgentSpec{
		Name:        "Test",
		Description: "t",
		Brain:       "claude-3-5-sonnet",
		Tools:       []string{"tool-resend-email"},
	}
}

func TestValidateCleanSpec(t *testing.T) {
	v := newValidator(t)
	res := v.Validate(validSpec())

	assert.True(t, res.Valid)
	assert.Empty(t, res.Issues)
	require.NotNil(t, res.Runtime)
	assert.Equal(t, hosting.RuntimeVercel, res.Runtime.Primary)

	keys := make([]string, 0, len(res.RequiredEnv))
	for _, env := range res.RequiredEnv {
		keys = append(keys, env.Key)
	}
	assert.Contains(t, keys, "RESEND_API_KEY")
}

func TestValidateMissingRequiredFieldsShortCircuits(t *testing.T) {
	v := newValidator(t)
	res := v.Validate(model.AgentSpec{Name: "only-name"})

	assert.False(t, res.Valid)
	require.Len(t, res.Issues, 1)
	issue := res.Issues[0]
	assert.Equal(t, model.IssueMissingRequiredFields, issue.Kind)
	assert.Equal(t, model.SeverityError, issue.Severity)
	assert.Contains(t, issue.Message, "description")
	assert.Contains(t, issue.Message, "brain")
	assert.Contains(t, issue.Message, "tools")
	assert.Nil(t, res.Runtime)
	assert.Empty(t, res.RequiredEnv)
}

func TestValidateUnknownToolWithSuggestion(t *testing.T) {
	v := newValidator(t)
	spec := validSpec()
	spec.Tools = []string{"resend"}
	res := v.Validate(spec)

	assert.False(t, res.Valid)
	require.Len(t, res.Issues, 1)
	issue := res.Issues[0]
	assert.Equal(t, model.IssueMissingTool, issue.Kind)
	assert.True(t, issue.AutoFixable)
	assert.Contains(t, issue.Suggestion, "tool-resend-email")

	require.Len(t, res.ToolSubstitutions, 1)
	assert.Equal(t, "resend", res.ToolSubstitutions[0].Original)
	assert.Equal(t, "tool-resend-email", res.ToolSubstitutions[0].Replacement)
}

func TestValidateUnknownToolNoMatch(t *testing.T) {
	v := newValidator(t)
	spec := validSpec()
	spec.Tools = []string{"tool-resend-email", "not-a-real-tool"}
	res := v.Validate(spec)

	assert.False(t, res.Valid)
	require.Len(t, res.Issues, 1)
	issue := res.Issues[0]
	assert.Equal(t, model.IssueMissingTool, issue.Kind)
	assert.Equal(t, "not-a-real-tool", issue.Tool)
	assert.False(t, issue.AutoFixable)
	assert.Equal(t, "Remove this tool", issue.Suggestion)
	assert.Empty(t, res.ToolSubstitutions)

	keys := make([]string, 0, len(res.RequiredEnv))
	for _, env := range res.RequiredEnv {
		keys = append(keys, env.Key)
	}
	assert.Contains(t, keys, "RESEND_API_KEY")
}

func TestValidateUnknownBrain(t *testing.T) {
	v := newValidator(t)
	spec := validSpec()
	spec.Brain = "hal-9000"
	res := v.Validate(spec)

	assert.False(t, res.Valid)
	require.Len(t, res.Issues, 1)
	issue := res.Issues[0]
	assert.Equal(t, model.IssueConfigError, issue.Kind)
	assert.Contains(t, issue.Suggestion, model.DefaultBrain)
}

func TestValidateRuntimeMismatchIsWarningOnly(t *testing.T) {
	v := newValidator(t)
	spec := validSpec()
	spec.Description = "Sends a daily summary"
	spec.Runtime = hosting.RuntimeVercel
	res := v.Validate(spec)

	assert.True(t, res.Valid)
	require.NotEmpty(t, res.Issues)
	for _, issue := range res.Issues {
		assert.Equal(t, model.IssueRuntimeIncompatible, issue.Kind)
		assert.Equal(t, model.SeverityWarning, issue.Severity)
	}
}

func TestValidateAutoRuntimeHasNoWarnings(t *testing.T) {
	v := newValidator(t)
	spec := validSpec()
	spec.Runtime = "auto"
	res := v.Validate(spec)

	assert.True(t, res.Valid)
	assert.Empty(t, res.Issues)
}

func TestValidateCostSummation(t *testing.T) {
	v := newValidator(t)
	spec := validSpec()
	spec.Tools = []string{"tool-openai-api", "tool-redis-cache"}
	res := v.Validate(spec)

	require.True(t, res.Valid)
	// $5 (openai) + $5 (redis) + $5 (railway hosting, picked because the
	// cache tool advertises realtime capabilities).
	assert.Equal(t, "$15+/month", res.EstimatedCost.Total)
	assert.Equal(t, res.EstimatedCost.Total, res.EstimatedCost.Monthly)
	assert.Len(t, res.EstimatedCost.Breakdown, 3)
}

func TestValidateFreeWhenNoDollarFigures(t *testing.T) {
	v := newValidator(t)
	spec := validSpec()
	spec.Tools = []string{"tool-web-scraper"}
	res := v.Validate(spec)

	require.True(t, res.Valid)
	assert.Equal(t, "Free", res.EstimatedCost.Total)
}

func TestValidateEnvDedupFirstWins(t *testing.T) {
	v := newValidator(t)
	spec := validSpec()
	spec.Tools = []string{"tool-resend-email", "resend-email"}
	res := v.Validate(spec)

	count := 0
	for _, env := range res.RequiredEnv {
		if env.Key == "RESEND_API_KEY" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestValidateIdempotent(t *testing.T) {
	v := newValidator(t)
	spec := validSpec()
	spec.Tools = []string{"tool-openai-api", "bogus-tool-xyzzy"}
	first := v.Validate(spec)
	second := v.Validate(spec)
	assert.Equal(t, first, second)
}
