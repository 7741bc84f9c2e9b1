// Package mcp exposes skald over the Model Context Protocol so AI agents
// can validate and run playbooks as tools.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server with skald tools registered.
func NewServer(version string) *server.MCPServer {
	s := server.NewMCPServer(
		"skald",
		version,
		server.WithToolCapabilities(true),
	)

	// Register tools
	s.AddTool(
		mcp.NewTool("skald/validate",
			mcp.WithDescription("Parse a markdown playbook and report its blocks and diagnostics"),
			mcp.WithString("path", mcp.Description("Path to the playbook markdown file")),
			mcp.WithString("text", mcp.Description("Playbook text to parse instead of a file")),
		),
		HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("skald/run",
			mcp.WithDescription("Execute a markdown playbook (defaults to dry-run mode for safety)"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the playbook markdown file")),
			mcp.WithString("mode", mcp.Description("Execution mode: dry-run or real")),
		),
		HandleRun,
	)

	s.AddTool(
		mcp.NewTool("skald/schema",
			mcp.WithDescription("Export the JSON Schema for the skald project configuration file"),
		),
		HandleSchema,
	)

	return s
}
