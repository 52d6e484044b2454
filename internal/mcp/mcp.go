// Package mcp implements the Model Context Protocol surface for AgentEX.
//
// It exposes the synchronous, read-only halves of the HTTP API (tool
// catalog lookup and spec validation) so MCP-compatible agents can design
// and check an agent before handing the build to the HTTP API.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/nichedotsol/agentex/internal/build"
	"github.com/nichedotsol/agentex/internal/catalog"
	"github.com/nichedotsol/agentex/internal/model"
	"github.com/nichedotsol/agentex/internal/redact"
	"github.com/nichedotsol/agentex/internal/validator"
)

// Server wraps the MCP server with the catalog and validator.
type Server struct {
	mcpServer *mcpserver.MCPServer
	catalog   *catalog.Catalog
	validator *validator.Validator
	store     build.Store
	redactor  *redact.Redactor
	logger    *slog.Logger
}

// New creates and configures an MCP server with all resources and tools.
func New(cat *catalog.Catalog, v *validator.Validator, store build.Store, redactor *redact.Redactor, logger *slog.Logger) *Server {
	if redactor == nil {
		redactor = redact.New(nil)
	}
	s := &Server{
		catalog:   cat,
		validator: v,
		store:     store,
		redactor:  redactor,
		logger:    logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"agentex",
		"0.1.0",
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
	)

	s.registerResources()
	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *Server) registerResources() {
	// agentex://tools/catalog: the full tool catalog.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"agentex://tools/catalog",
			"Tool Catalog",
			mcplib.WithResourceDescription("Every tool available to generated agents, with capabilities, required credentials, and cost tiers"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleCatalogResource,
	)
}

func (s *Server) handleCatalogResource(_ context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(s.catalog.All(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal catalog: %w", err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

// redactedConfig round-trips a config snapshot through JSON so the redactor
// can walk it as a generic map. Every MCP read is treated as non-owner.
func (s *Server) redactedConfig(cfg *model.AgentSpec) any {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return s.redactor.Value(m)
}
