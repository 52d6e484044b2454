package generate

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nichedotsol/agentex/internal/model"
)

func sampleTools() []model.ToolSpec {
	return []model.ToolSpec{
		{
			ID:          "tool-resend-email",
			Name:        "Resend Email",
			Provider:    "resend",
			Description: "Send transactional email",
			RequiredEnv: []model.EnvVar{
				{Key: "RESEND_API_KEY", Purpose: "API key", GetFrom: "https://resend.com/api-keys", Required: true},
			},
		},
		{
			ID:       "tool-web-search",
			Name:     "Brave Web Search",
			Provider: "brave",
			RequiredEnv: []model.EnvVar{
				{Key: "BRAVE_API_KEY", Purpose: "API key", GetFrom: "https://brave.com/search/api", Required: true},
			},
		},
	}
}

func sampleSpec() model.AgentSpec {
	return model.AgentSpec{
		Name:        "Inbox Helper",
		Description: "Answers support email",
		Brain:       "claude-3-5-sonnet",
		Tools:       []string{"tool-resend-email", "tool-web-search"},
		Runtime:     "vercel",
	}
}

func filesByPath(t *testing.T, files []model.GeneratedFile) map[string]string {
	t.Helper()
	out := make(map[string]string, len(files))
	for _, f := range files {
		out[f.Path] = f.Content
	}
	return out
}

func TestGenerateProducesFullBundle(t *testing.T) {
	g := NewTemplateGenerator()
	files, err := g.Generate(context.Background(), sampleSpec(), sampleTools())
	require.NoError(t, err)

	byPath := filesByPath(t, files)
	for _, path := range []string{"agent.json", "src/index.ts", "package.json", "README.md", "SETUP.md", ".env.example"} {
		assert.Contains(t, byPath, path)
	}
}

func TestGenerateManifest(t *testing.T) {
	g := NewTemplateGenerator()
	spec := sampleSpec()
	spec.Config = &model.AgentConfig{Temperature: 0.2, MaxTokens: 2048, Timeout: 60, CronSchedule: "0 * * * *"}
	files, err := g.Generate(context.Background(), spec, sampleTools())
	require.NoError(t, err)

	var m struct {
		Name  string `json:"name"`
		Brain struct {
			Type        string  `json:"type"`
			Provider    string  `json:"provider"`
			Temperature float64 `json:"temperature"`
			MaxTokens   int     `json:"max_tokens"`
		} `json:"brain"`
		Tools    []struct{ ID string } `json:"tools"`
		Runtime  string                `json:"runtime"`
		Settings struct {
			Timeout      int    `json:"timeout"`
			RetryPolicy  string `json:"retry_policy"`
			CronSchedule string `json:"cron_schedule"`
		} `json:"settings"`
	}
	require.NoError(t, json.Unmarshal([]byte(filesByPath(t, files)["agent.json"]), &m))

	assert.Equal(t, "Inbox Helper", m.Name)
	assert.Equal(t, "claude-3-5-sonnet", m.Brain.Type)
	assert.Equal(t, "anthropic", m.Brain.Provider)
	assert.Equal(t, 0.2, m.Brain.Temperature)
	assert.Equal(t, 2048, m.Brain.MaxTokens)
	assert.Len(t, m.Tools, 2)
	assert.Equal(t, "vercel", m.Runtime)
	assert.Equal(t, 60, m.Settings.Timeout)
	assert.Equal(t, "exponential", m.Settings.RetryPolicy)
	assert.Equal(t, "0 * * * *", m.Settings.CronSchedule)
}

func TestGenerateManifestDefaults(t *testing.T) {
	g := NewTemplateGenerator()
	files, err := g.Generate(context.Background(), sampleSpec(), nil)
	require.NoError(t, err)

	var m struct {
		Brain struct {
			Temperature float64 `json:"temperature"`
			MaxTokens   int     `json:"max_tokens"`
		} `json:"brain"`
		Settings struct {
			Timeout int `json:"timeout"`
		} `json:"settings"`
	}
	require.NoError(t, json.Unmarshal([]byte(filesByPath(t, files)["agent.json"]), &m))
	assert.Equal(t, 0.7, m.Brain.Temperature)
	assert.Equal(t, 4096, m.Brain.MaxTokens)
	assert.Equal(t, 30, m.Settings.Timeout)
}

func TestGenerateSetupDocsAndEnvExample(t *testing.T) {
	g := NewTemplateGenerator()
	files, err := g.Generate(context.Background(), sampleSpec(), sampleTools())
	require.NoError(t, err)
	byPath := filesByPath(t, files)

	setup := byPath["SETUP.md"]
	assert.Contains(t, setup, "RESEND_API_KEY=")
	assert.Contains(t, setup, "Get from: https://resend.com/api-keys")
	assert.Contains(t, setup, "BRAVE_API_KEY=")

	assert.Equal(t, "RESEND_API_KEY=\nBRAVE_API_KEY=\n", byPath[".env.example"])
}

func TestGenerateEnvDedup(t *testing.T) {
	g := NewTemplateGenerator()
	tools := sampleTools()
	tools = append(tools, tools[0])
	files, err := g.Generate(context.Background(), sampleSpec(), tools)
	require.NoError(t, err)

	envExample := filesByPath(t, files)[".env.example"]
	assert.Equal(t, "RESEND_API_KEY=\nBRAVE_API_KEY=\n", envExample)
}

func TestGenerateDeterministic(t *testing.T) {
	g := NewTemplateGenerator()
	first, err := g.Generate(context.Background(), sampleSpec(), sampleTools())
	require.NoError(t, err)
	second, err := g.Generate(context.Background(), sampleSpec(), sampleTools())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "inbox-helper", slug("Inbox Helper"))
	assert.Equal(t, "my-agent-2", slug("  My Agent 2! "))
	assert.Equal(t, "agent", slug("agent"))
}
