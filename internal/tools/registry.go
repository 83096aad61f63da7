package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers all tools with the MCP server.
// This is called from the mcp command after server creation but before Run().
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "health",
		Description: "Check that the helix server is reachable and show its counters",
	}, NewHealthHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "process_urls",
		Description: "Fetch, classify and file web links; returns a process_id",
	}, NewProcessURLsHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_batch",
		Description: "Show the progress of a batch and the resolved name of each item",
	}, NewGetBatchHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "recent_batches",
		Description: "List the most recent batches, newest first",
	}, NewRecentBatchesHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_processed",
		Description: "List metadata (name, summary, tags) of filed items",
	}, NewListProcessedHandler(deps))
}
