package mcp

import "github.com/mark3labs/mcp-go/mcp"

// registerTools registers all MCP tools with the server
func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("get_identity",
			mcp.WithDescription("Get the door identity assigned when the device was first provisioned"),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleGetIdentity,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_public_key",
			mcp.WithDescription("Get the PEM public key coordinators use to encrypt commands for this door"),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleGetPublicKey,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_settings",
			mcp.WithDescription("List persisted device settings. Passwords and the private key are redacted."),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleGetSettings,
	)
}
