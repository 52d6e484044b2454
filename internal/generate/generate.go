// Package generate produces agent source bundles from a validated spec.
//
// The shipped TemplateGenerator is deterministic: the same spec and tool
// set always yield byte-identical files. Alternative backends (an LLM call,
// a remote build service) plug in behind the same interface.
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nichedotsol/agentex/internal/model"
)

// Generator is the external collaborator the build runner drives.
type Generator interface {
	Generate(ctx context.Context, spec model.AgentSpec, tools []model.ToolSpec) ([]model.GeneratedFile, error)
}

// Defaults applied when the spec leaves model settings unset.
const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 4096
	defaultTimeout     = 30
)

// TemplateGenerator renders a TypeScript agent project from templates.
type TemplateGenerator struct{}

// NewTemplateGenerator returns the reference generator.
func NewTemplateGenerator() *TemplateGenerator { return &TemplateGenerator{} }

// agentManifest is the serialized agent configuration shipped with the
// generated project.
type agentManifest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Brain       brainManifest  `json:"brain"`
	Tools       []toolManifest `json:"tools"`
	Runtime     string         `json:"runtime"`
	Settings    settings       `json:"settings"`
}

type brainManifest struct {
	Type        string  `json:"type"`
	Provider    string  `json:"provider"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type toolManifest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

type settings struct {
	TokenBudget  int    `json:"token_budget"`
	Timeout      int    `json:"timeout"`
	RetryPolicy  string `json:"retry_policy"`
	CronSchedule string `json:"cron_schedule,omitempty"`
}

// Generate renders the full project: agent manifest, entrypoint, package
// manifest, README, setup instructions, and env template.
func (g *TemplateGenerator) Generate(_ context.Context, spec model.AgentSpec, tools []model.ToolSpec) ([]model.GeneratedFile, error) {
	manifest, err := buildManifest(spec, tools)
	if err != nil {
		return nil, err
	}
	env := mergeEnv(tools)

	return []model.GeneratedFile{
		{Path: "agent.json", Content: manifest},
		{Path: "src/index.ts", Content: renderEntrypoint(spec, tools)},
		{Path: "package.json", Content: renderPackageJSON(spec)},
		{Path: "README.md", Content: renderReadme(spec, tools)},
		{Path: "SETUP.md", Content: renderSetup(spec, env)},
		{Path: ".env.example", Content: renderEnvExample(env)},
	}, nil
}

func buildManifest(spec model.AgentSpec, tools []model.ToolSpec) (string, error) {
	m := agentManifest{
		Name:        spec.Name,
		Description: spec.Description,
		Brain: brainManifest{
			Type:        spec.Brain,
			Provider:    brainProvider(spec.Brain),
			Temperature: defaultTemperature,
			MaxTokens:   defaultMaxTokens,
		},
		Runtime: spec.Runtime,
		Settings: settings{
			TokenBudget: 1000,
			Timeout:     defaultTimeout,
			RetryPolicy: "exponential",
		},
	}
	if spec.Config != nil {
		if spec.Config.Temperature > 0 {
			m.Brain.Temperature = spec.Config.Temperature
		}
		if spec.Config.MaxTokens > 0 {
			m.Brain.MaxTokens = spec.Config.MaxTokens
		}
		if spec.Config.Timeout > 0 {
			m.Settings.Timeout = spec.Config.Timeout
		}
		m.Settings.CronSchedule = spec.Config.CronSchedule
	}
	for _, tool := range tools {
		m.Tools = append(m.Tools, toolManifest{ID: tool.ID, Name: tool.Name, Provider: tool.Provider})
	}

	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("generate: encode manifest: %w", err)
	}
	return string(out) + "\n", nil
}

func brainProvider(brain string) string {
	lower := strings.ToLower(brain)
	switch {
	case strings.Contains(lower, "claude") || strings.Contains(lower, "anthropic"):
		return "anthropic"
	case strings.Contains(lower, "gemini") || strings.Contains(lower, "google"):
		return "google"
	case strings.Contains(lower, "llama") || strings.Contains(lower, "meta"):
		return "meta"
	case strings.Contains(lower, "mistral"):
		return "mistral"
	case strings.Contains(lower, "grok") || strings.Contains(lower, "xai"):
		return "xai"
	default:
		return "openai"
	}
}

func renderEntrypoint(spec model.AgentSpec, tools []model.ToolSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// %s\n// %s\n\n", spec.Name, spec.Description)
	b.WriteString("import { loadAgent } from './runtime';\n")
	b.WriteString("import manifest from '../agent.json';\n\n")
	b.WriteString("const agent = loadAgent(manifest);\n\n")
	for _, tool := range tools {
		fmt.Fprintf(&b, "agent.registerTool('%s');\n", tool.ID)
	}
	b.WriteString("\nexport default agent;\n")
	return b.String()
}

func renderPackageJSON(spec model.AgentSpec) string {
	name := slug(spec.Name)
	return fmt.Sprintf(`{
  "name": %q,
  "version": "0.1.0",
  "private": true,
  "scripts": {
    "dev": "tsx src/index.ts",
    "build": "tsc",
    "start": "node dist/index.js"
  },
  "dependencies": {
    "dotenv": "^16.4.0"
  },
  "devDependencies": {
    "tsx": "^4.7.0",
    "typescript": "^5.4.0"
  }
}
`, name)
}

func renderReadme(spec model.AgentSpec, tools []model.ToolSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n\n", spec.Name, spec.Description)
	fmt.Fprintf(&b, "Brain: `%s`\n\n", spec.Brain)
	if len(tools) > 0 {
		b.WriteString("## Tools\n\n")
		for _, tool := range tools {
			fmt.Fprintf(&b, "- **%s** (`%s`): %s\n", tool.Name, tool.ID, tool.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString("See SETUP.md for environment configuration.\n")
	return b.String()
}

func renderSetup(spec model.AgentSpec, env []model.EnvVar) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Setup Instructions for %s\n\n", spec.Name)
	b.WriteString("## Required Environment Variables\n\n")
	b.WriteString("Create a `.env.local` file with the following:\n\n```bash\n")
	for i, v := range env {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "# %s\n", v.Purpose)
		if v.GetFrom != "" {
			fmt.Fprintf(&b, "# Get from: %s\n", v.GetFrom)
		}
		example := v.Example
		if example == "" {
			example = "your-key-here"
		}
		fmt.Fprintf(&b, "%s=%s\n", v.Key, example)
	}
	b.WriteString("```\n\n")
	b.WriteString(`## Quick Start

1. Copy the environment template:
   ` + "```bash\n   cp .env.example .env.local\n   ```" + `
2. Install dependencies:
   ` + "```bash\n   npm install\n   ```" + `
3. Fill in your API keys in ` + "`.env.local`" + `
4. Run the development server:
   ` + "```bash\n   npm run dev\n   ```" + `

## Troubleshooting

- "Missing API key" errors mean a key in ` + "`.env.local`" + ` is unset.
- "Module not found" errors usually clear up after another ` + "`npm install`" + `.
`)
	return b.String()
}

func renderEnvExample(env []model.EnvVar) string {
	var b strings.Builder
	for _, v := range env {
		fmt.Fprintf(&b, "%s=\n", v.Key)
	}
	return b.String()
}

// mergeEnv deduplicates required env vars across tools, first wins.
func mergeEnv(tools []model.ToolSpec) []model.EnvVar {
	seen := make(map[string]bool)
	var out []model.EnvVar
	for _, tool := range tools {
		for _, v := range tool.RequiredEnv {
			if seen[v.Key] {
				continue
			}
			seen[v.Key] = true
			out = append(out, v)
		}
	}
	return out
}

func slug(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lastDash := true
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
