// Package tools provides MCP tool handlers and registration.
package tools

import (
	"log/slog"

	"github.com/raphaelgruber/helix/internal/client"
)

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture.
type Dependencies struct {
	// Client talks to the helix server as the configured owner.
	Client *client.Client
	Logger *slog.Logger
}
