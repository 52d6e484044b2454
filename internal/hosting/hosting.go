// Package hosting derives infrastructure requirements from an agent
// description and recommends a runtime for it. Everything here is a pure
// function over a fixed decision table, so identical inputs always produce
// identical outputs.
package hosting

import (
	"strings"

	"github.com/nichedotsol/agentex/internal/model"
)

// Runtime identifiers accepted by the selector and the deploy surface.
const (
	RuntimeAuto            = "auto"
	RuntimeVercel          = "vercel"
	RuntimeVercelCron      = "vercel-cron"
	RuntimeRailway         = "railway"
	RuntimeRender          = "render"
	RuntimeFlyIO           = "fly.io"
	RuntimeNetlify         = "netlify"
	RuntimeCloudflarePages = "cloudflare-pages"
	RuntimeGitHubActions   = "github-actions"
	RuntimeDocker          = "docker"
)

var knownRuntimes = map[string]bool{
	RuntimeVercel:          true,
	RuntimeVercelCron:      true,
	RuntimeRailway:         true,
	RuntimeRender:          true,
	RuntimeFlyIO:           true,
	RuntimeNetlify:         true,
	RuntimeCloudflarePages: true,
	RuntimeGitHubActions:   true,
	RuntimeDocker:          true,
}

// KnownRuntime reports whether id names a runtime the selector understands.
func KnownRuntime(id string) bool { return knownRuntimes[id] }

// serverless runtimes cannot hold connections open or outlive a request.
func serverless(runtime string) bool {
	return runtime == RuntimeVercel || runtime == RuntimeNetlify || runtime == RuntimeCloudflarePages
}

// Requirements is what an agent needs from its hosting target, derived from
// the description text, the model configuration, and the resolved tool set.
type Requirements struct {
	Persistent  bool   `json:"persistent"`   // must run continuously
	Cron        bool   `json:"cron"`         // scheduled execution
	Websockets  bool   `json:"websockets"`   // real-time connections
	LongRunning bool   `json:"long_running"` // individual tasks over 10s
	Traffic     string `json:"traffic"`      // "low", "medium", "high"
	Database    bool   `json:"database"`
	FileStorage bool   `json:"file_storage"`
	HighMemory  bool   `json:"high_memory"`
}

// longRunningThresholdSeconds is the timeout above which serverless
// runtimes are assumed to cut the task off.
const longRunningThresholdSeconds = 10

var cronHints = []string{"schedule", "cron", "hourly", "daily", "periodic"}

// AnalyzeRequirements inspects an agent spec and its resolved tools and
// returns the hosting requirements implied by them. Traffic defaults to
// "low" when the spec does not say otherwise.
func AnalyzeRequirements(spec model.AgentSpec, tools []model.ToolSpec) Requirements {
	desc := strings.ToLower(spec.Description)

	cron := false
	if spec.Config != nil && spec.Config.CronSchedule != "" {
		cron = true
	}
	for _, hint := range cronHints {
		if strings.Contains(desc, hint) {
			cron = true
			break
		}
	}

	websockets := false
	database := false
	fileStorage := false
	highMemory := false
	for _, tool := range tools {
		name := strings.ToLower(tool.Name)
		for _, cap := range tool.Capabilities {
			lc := strings.ToLower(cap)
			if strings.Contains(lc, "websocket") || strings.Contains(lc, "realtime") {
				websockets = true
			}
		}
		if strings.Contains(name, "websocket") || strings.Contains(name, "realtime") {
			websockets = true
		}
		if tool.Category == model.CategoryStorage ||
			strings.Contains(name, "database") || strings.Contains(name, "sql") ||
			strings.Contains(name, "postgres") || strings.Contains(name, "mongodb") {
			database = true
		}
		if strings.Contains(name, "file") || strings.Contains(name, "storage") ||
			strings.Contains(name, "s3") {
			fileStorage = true
		}
		if strings.Contains(name, "image") || strings.Contains(name, "video") ||
			strings.Contains(name, "processing") {
			highMemory = true
		}
	}

	longRunning := false
	traffic := "low"
	if spec.Config != nil {
		longRunning = spec.Config.Timeout > longRunningThresholdSeconds
		if spec.Config.ExpectedTraffic != "" {
			traffic = spec.Config.ExpectedTraffic
		}
	}

	return Requirements{
		Persistent:  cron || websockets,
		Cron:        cron,
		Websockets:  websockets,
		LongRunning: longRunning,
		Traffic:     traffic,
		Database:    database,
		FileStorage: fileStorage,
		HighMemory:  highMemory,
	}
}

// Recommend picks a runtime for the given requirements. Rules are checked
// in priority order; the first match wins.
func Recommend(req Requirements) model.Recommendation {
	if req.Persistent || req.Websockets {
		if req.Websockets {
			return model.Recommendation{
				Primary:         RuntimeRailway,
				Reasoning:       "Your agent uses websockets or real-time connections. Railway provides always-on hosting with full websocket support.",
				Alternatives:    []string{RuntimeFlyIO, RuntimeRender},
				CostEstimate:    "$5-20/month",
				Limitations:     []string{"Requires credit card", "Manual setup needed"},
				SetupDifficulty: "medium",
				EstimatedTime:   "10-15 minutes",
			}
		}
		return model.Recommendation{
			Primary:         RuntimeRailway,
			Reasoning:       "Your agent needs to run continuously (scheduled tasks or always-on). Railway provides always-on hosting perfect for persistent agents.",
			Alternatives:    []string{RuntimeRender, RuntimeFlyIO},
			CostEstimate:    "$5-20/month",
			Limitations:     []string{"Requires credit card", "Manual setup needed"},
			SetupDifficulty: "medium",
			EstimatedTime:   "10-15 minutes",
		}
	}

	if req.Cron {
		return model.Recommendation{
			Primary:         RuntimeVercelCron,
			Reasoning:       "Scheduled tasks work perfectly with Vercel Cron (serverless). No need for always-on hosting, pay only for execution time.",
			Alternatives:    []string{RuntimeGitHubActions, RuntimeRailway},
			CostEstimate:    "Free (Hobby plan)",
			Limitations:     []string{"Max 1/minute frequency on free tier", "10 second timeout per execution"},
			SetupDifficulty: "easy",
			EstimatedTime:   "5 minutes",
		}
	}

	if req.LongRunning {
		return model.Recommendation{
			Primary:         RuntimeRailway,
			Reasoning:       "Tasks longer than 10 seconds need dedicated hosting. Railway provides flexible timeout limits.",
			Alternatives:    []string{RuntimeRender, RuntimeFlyIO},
			CostEstimate:    "$5-20/month",
			Limitations:     []string{"Requires credit card"},
			SetupDifficulty: "medium",
			EstimatedTime:   "10-15 minutes",
		}
	}

	if req.Traffic == "high" {
		return model.Recommendation{
			Primary:         RuntimeVercel,
			Reasoning:       "High traffic patterns work best with Vercel's edge network and auto-scaling serverless functions.",
			Alternatives:    []string{RuntimeCloudflarePages, RuntimeNetlify},
			CostEstimate:    "Free (Hobby plan) up to 100GB bandwidth",
			Limitations:     []string{"10 second timeout", "No persistent state"},
			SetupDifficulty: "easy",
			EstimatedTime:   "5 minutes",
		}
	}

	if req.Database {
		return model.Recommendation{
			Primary:         RuntimeRailway,
			Reasoning:       "Database requirements work best with Railway's integrated database services and persistent storage.",
			Alternatives:    []string{RuntimeRender, RuntimeFlyIO},
			CostEstimate:    "$5-20/month (includes database)",
			Limitations:     []string{"Requires credit card"},
			SetupDifficulty: "medium",
			EstimatedTime:   "10-15 minutes",
		}
	}

	if req.FileStorage {
		return model.Recommendation{
			Primary:         RuntimeRailway,
			Reasoning:       "File storage needs persistent volumes. Railway provides integrated storage solutions.",
			Alternatives:    []string{RuntimeRender, RuntimeFlyIO},
			CostEstimate:    "$5-20/month",
			Limitations:     []string{"Requires credit card"},
			SetupDifficulty: "medium",
			EstimatedTime:   "10-15 minutes",
		}
	}

	if req.HighMemory {
		return model.Recommendation{
			Primary:         RuntimeRailway,
			Reasoning:       "High memory requirements (image/video processing) need dedicated resources. Railway offers flexible resource allocation.",
			Alternatives:    []string{RuntimeRender, RuntimeFlyIO},
			CostEstimate:    "$10-30/month",
			Limitations:     []string{"Requires credit card"},
			SetupDifficulty: "medium",
			EstimatedTime:   "10-15 minutes",
		}
	}

	return model.Recommendation{
		Primary:         RuntimeVercel,
		Reasoning:       "Simple request/response patterns work perfectly on Vercel serverless functions. Fast, free, and easy to deploy.",
		Alternatives:    []string{RuntimeNetlify, RuntimeCloudflarePages},
		CostEstimate:    "Free (Hobby plan)",
		Limitations:     []string{"10 second timeout", "No persistent state", "Cold starts possible"},
		SetupDifficulty: "easy",
		EstimatedTime:   "5 minutes",
	}
}

// Compatibility is the verdict of checking a caller-chosen runtime against
// derived requirements. Incompatibility is advisory: callers surface it as
// a warning, never a hard failure.
type Compatibility struct {
	Compatible bool     `json:"compatible"`
	Reason     string   `json:"reason,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// CheckCompatibility tests whether the chosen runtime can satisfy the
// requirements. Hard mismatches (persistence, websockets, long-running work
// on serverless targets) come back incompatible with a reason; softer
// concerns come back compatible with warnings.
func CheckCompatibility(runtime string, req Requirements) Compatibility {
	if req.Persistent && serverless(runtime) {
		return Compatibility{
			Compatible: false,
			Reason:     runtime + " serverless functions cannot run persistently. Use Railway, Render, or Fly.io for always-on hosting.",
		}
	}
	if req.Websockets && serverless(runtime) {
		return Compatibility{
			Compatible: false,
			Reason:     runtime + " does not support websockets. Use Railway, Render, or Fly.io for websocket support.",
		}
	}
	if req.LongRunning && serverless(runtime) {
		return Compatibility{
			Compatible: false,
			Reason:     runtime + " has a 10-second timeout limit. Tasks longer than 10 seconds need Railway, Render, or Fly.io.",
		}
	}

	var warnings []string
	if req.Cron && runtime == RuntimeVercel {
		warnings = append(warnings, "Consider using vercel-cron for scheduled tasks instead of the regular vercel runtime.")
	}
	if req.Database && serverless(runtime) {
		warnings = append(warnings, runtime+" doesn't provide integrated databases. You'll need an external database service.")
	}
	return Compatibility{Compatible: true, Warnings: warnings}
}

// RuntimeCost is the hosting cost profile of a single runtime.
type RuntimeCost struct {
	Tier      model.CostTier `json:"tier"`
	Estimate  string         `json:"estimate"`
	Breakdown []string       `json:"breakdown"`
}

var runtimeCosts = map[string]RuntimeCost{
	RuntimeVercel: {
		Tier:     model.TierFree,
		Estimate: "Free (Hobby plan)",
		Breakdown: []string{
			"100GB bandwidth/month",
			"Unlimited serverless function invocations",
			"Edge network included",
		},
	},
	RuntimeVercelCron: {
		Tier:     model.TierFree,
		Estimate: "Free (Hobby plan)",
		Breakdown: []string{
			"Cron jobs included",
			"Max 1 execution per minute on free tier",
			"10 second timeout per execution",
		},
	},
	RuntimeRailway: {
		Tier:     model.TierFreemium,
		Estimate: "$5-20/month",
		Breakdown: []string{
			"$5/month starter plan (500 hours)",
			"Always-on hosting",
			"Integrated databases available",
			"Flexible resource allocation",
		},
	},
	RuntimeRender: {
		Tier:     model.TierFreemium,
		Estimate: "$7-25/month",
		Breakdown: []string{
			"$7/month starter plan",
			"Always-on hosting",
			"Free tier available (spins down after inactivity)",
			"Integrated databases available",
		},
	},
	RuntimeFlyIO: {
		Tier:     model.TierFreemium,
		Estimate: "$5-15/month",
		Breakdown: []string{
			"Free tier available (3 shared-cpu VMs)",
			"Pay-as-you-go pricing",
			"Global edge deployment",
			"Always-on hosting",
		},
	},
	RuntimeNetlify: {
		Tier:     model.TierFree,
		Estimate: "Free (Starter plan)",
		Breakdown: []string{
			"100GB bandwidth/month",
			"Unlimited serverless function invocations",
			"10 second timeout",
		},
	},
	RuntimeCloudflarePages: {
		Tier:     model.TierFree,
		Estimate: "Free",
		Breakdown: []string{
			"Unlimited requests",
			"Unlimited bandwidth",
			"10 second timeout",
			"Global edge network",
		},
	},
	RuntimeGitHubActions: {
		Tier:     model.TierFree,
		Estimate: "Free (for public repos)",
		Breakdown: []string{
			"2,000 minutes/month free",
			"Perfect for scheduled tasks",
			"No hosting costs",
		},
	},
	RuntimeDocker: {
		Tier:     model.TierPaid,
		Estimate: "Varies by hosting provider",
		Breakdown: []string{
			"Self-hosted or cloud provider",
			"Full control over resources",
			"Cost depends on infrastructure",
		},
	},
}

// Cost returns the cost profile for a runtime. Unknown runtimes get a
// generic paid profile rather than an error.
func Cost(runtime string, _ Requirements) RuntimeCost {
	if cost, ok := runtimeCosts[runtime]; ok {
		return cost
	}
	return RuntimeCost{Tier: model.TierPaid, Estimate: "Check provider pricing"}
}
