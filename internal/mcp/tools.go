package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/nichedotsol/agentex/internal/build"
	"github.com/nichedotsol/agentex/internal/model"
)

func (s *Server) registerTools() {
	// agentex_search_tools: find tools for an agent design.
	s.mcpServer.AddTool(
		mcplib.NewTool("agentex_search_tools",
			mcplib.WithDescription(`Search the tool catalog for capabilities a generated agent can use.

WHEN TO USE: While designing an agent, before calling agentex_validate.
Search by free text, category, or required capabilities; provided filters
are combined with AND.

WHAT YOU GET BACK: matching tool specs with their ids, required
credentials, and cost tiers. Use the ids in the agent spec's tools list.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("query",
				mcplib.Description("Free-text match over tool names, descriptions, ids, and tags"),
			),
			mcplib.WithString("category",
				mcplib.Description("Filter by category: blockchain, communication, data, ai, utility, storage, analytics"),
			),
			mcplib.WithString("capabilities",
				mcplib.Description("Comma-separated capabilities the tool must all declare"),
			),
		),
		s.handleSearchTools,
	)

	// agentex_get_tool: look up one tool by id.
	s.mcpServer.AddTool(
		mcplib.NewTool("agentex_get_tool",
			mcplib.WithDescription(`Fetch the full specification of one tool by id.

Accepts the canonical id (e.g. "tool-resend-email") or the id without its
"tool-" prefix. Unknown ids come back with a fuzzy suggestion when a close
match exists.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("tool_id",
				mcplib.Description("Tool identifier"),
				mcplib.Required(),
			),
		),
		s.handleGetTool,
	)

	// agentex_validate: validate an agent spec without building it.
	s.mcpServer.AddTool(
		mcplib.NewTool("agentex_validate",
			mcplib.WithDescription(`Validate an agent specification without starting a build.

WHEN TO USE: After selecting tools and before generating. Returns
structured findings: unknown tools with suggested substitutions, runtime
compatibility warnings, a monthly cost estimate, and the merged credential
list the agent will need. Findings are data, never failures: a spec full
of problems still validates cleanly as a call.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("name",
				mcplib.Description("Agent name"),
				mcplib.Required(),
			),
			mcplib.WithString("description",
				mcplib.Description("What the agent does"),
				mcplib.Required(),
			),
			mcplib.WithString("brain",
				mcplib.Description("Model identifier, e.g. claude-3-5-sonnet or gpt-4o"),
				mcplib.Required(),
			),
			mcplib.WithString("tools",
				mcplib.Description("Comma-separated tool ids"),
				mcplib.Required(),
			),
			mcplib.WithString("runtime",
				mcplib.Description("Requested runtime, or omit/\"auto\" to let the selector pick"),
			),
		),
		s.handleValidate,
	)

	// agentex_build_status: poll a build.
	s.mcpServer.AddTool(
		mcplib.NewTool("agentex_build_status",
			mcplib.WithDescription(`Fetch the current state of a build by id.

Returns status (queued, generating, complete, failed), progress, and,
once terminal, the result bundle or the structured error. Credential
values in the config snapshot are always redacted on this surface.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("build_id",
				mcplib.Description("Build identifier returned by the generate endpoint"),
				mcplib.Required(),
			),
		),
		s.handleBuildStatus,
	)
}

func (s *Server) handleSearchTools(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	req := model.ToolSearchRequest{
		Query:    request.GetString("query", ""),
		Category: model.ToolCategory(request.GetString("category", "")),
	}
	if caps := request.GetString("capabilities", ""); caps != "" {
		for _, c := range strings.Split(caps, ",") {
			if c = strings.TrimSpace(c); c != "" {
				req.Capabilities = append(req.Capabilities, c)
			}
		}
	}

	tools := s.catalog.Search(req)
	return jsonResult(model.ToolSearchResponse{Tools: tools, Total: len(tools)})
}

func (s *Server) handleGetTool(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id := request.GetString("tool_id", "")
	if id == "" {
		return errorResult("tool_id is required"), nil
	}

	spec, err := s.catalog.Resolve(id)
	if err != nil {
		msg := fmt.Sprintf("tool not found: %q", id)
		if similar, ok := s.catalog.FindSimilar(id); ok {
			msg += fmt.Sprintf(" (did you mean %q?)", similar.ID)
		}
		return errorResult(msg), nil
	}
	return jsonResult(spec)
}

func (s *Server) handleValidate(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	spec := model.AgentSpec{
		Name:        request.GetString("name", ""),
		Description: request.GetString("description", ""),
		Brain:       request.GetString("brain", ""),
		Runtime:     request.GetString("runtime", ""),
	}
	for _, tool := range strings.Split(request.GetString("tools", ""), ",") {
		if tool = strings.TrimSpace(tool); tool != "" {
			spec.Tools = append(spec.Tools, tool)
		}
	}

	return jsonResult(s.validator.Validate(spec))
}

func (s *Server) handleBuildStatus(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id := request.GetString("build_id", "")
	if id == "" {
		return errorResult("build_id is required"), nil
	}

	b, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, build.ErrNotFound) {
			return errorResult("build not found: " + id), nil
		}
		s.logger.Error("mcp: read build record", "build_id", id, "error", err)
		return errorResult("failed to read build"), nil
	}

	payload := map[string]any{
		"build_id":   b.ID,
		"status":     b.Status,
		"progress":   b.Progress,
		"created_at": b.CreatedAt,
		"updated_at": b.UpdatedAt,
	}
	if b.Config != nil {
		payload["config"] = s.redactedConfig(b.Config)
	}
	if b.Result != nil {
		payload["result"] = b.Result
	}
	if b.Error != nil {
		payload["error"] = b.Error
	}
	return jsonResult(payload)
}
