package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HealthInput defines the input schema for the health tool.
type HealthInput struct{}

// NewHealthHandler checks that the helix server is reachable and reports
// its counters.
func NewHealthHandler(deps *Dependencies) mcp.ToolHandlerFor[HealthInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input HealthInput) (*mcp.CallToolResult, any, error) {
		if err := deps.Client.Health(ctx); err != nil {
			return serverError(deps, "Health check", err), nil, nil
		}
		snap, err := deps.Client.Stats(ctx)
		if err != nil {
			deps.Logger.Debug("stats unavailable", "error", err)
			return TextResult("ok"), nil, nil
		}
		var failed int64
		for _, n := range snap.ItemsFailed {
			failed += n
		}
		return TextResult(fmt.Sprintf("ok: %d batches started, %d items placed, %d items failed",
			snap.BatchesStarted, snap.ItemsSucceeded, failed)), nil, nil
	}
}
