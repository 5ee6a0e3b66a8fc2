package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/urmzd/doorlock/pkg/db"
)

// Server exposes read-only lock diagnostics over MCP. It never moves the
// lock or changes settings.
type Server struct {
	mcpServer *server.MCPServer
	identity  db.IdentityStore
	settings  db.SettingsStore
}

// NewServer creates a new MCP server over the device database
func NewServer(identity db.IdentityStore, settings db.SettingsStore) *Server {
	s := &Server{
		identity: identity,
		settings: settings,
	}

	s.mcpServer = server.NewMCPServer(
		"doorlock",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// ServeStdio starts the MCP server using stdio transport
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
