// Package server provides the MCP server wrapper with lifecycle management.
package server

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Name is the implementation name reported to MCP clients.
const Name = "helix"

// Server wraps the MCP server that exposes the ingestion tools.
type Server struct {
	mcp    *mcp.Server
	logger *slog.Logger
}

// New creates an MCP server reporting the given version.
func New(version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	impl := &mcp.Implementation{
		Name:    Name,
		Title:   "Helix file ingestion",
		Version: version,
	}
	opts := &mcp.ServerOptions{
		Instructions: "Submit links for classification with process_urls, then poll get_batch until every item is completed.",
	}

	return &Server{
		mcp:    mcp.NewServer(impl, opts),
		logger: logger,
	}
}

// Run serves on stdio and blocks until the client disconnects or ctx ends.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server", "transport", "stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server for tool registration.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Setup installs the request logging middleware.
func (s *Server) Setup() {
	s.mcp.AddReceivingMiddleware(LoggingMiddleware(s.logger))
}
