package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/helix/internal/models"
)

const maxRecentLimit = 50

// ProcessURLsInput defines the input schema for the process_urls tool.
type ProcessURLsInput struct {
	URLs []string `json:"urls" jsonschema:"Links to fetch and classify (http or https)"`
}

// ProcessURLsResult is the response from the process_urls tool.
type ProcessURLsResult struct {
	ProcessID string `json:"process_id"`
	Items     int    `json:"items"`
	Message   string `json:"message"`
}

// NewProcessURLsHandler starts a batch for the given links.
// It returns as soon as the batch is recorded; use get_batch to follow it.
func NewProcessURLsHandler(deps *Dependencies) mcp.ToolHandlerFor[ProcessURLsInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ProcessURLsInput) (*mcp.CallToolResult, any, error) {
		urls := make([]string, 0, len(input.URLs))
		for _, u := range input.URLs {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		if len(urls) == 0 {
			return ErrorResult("At least one URL is required", "Provide urls as an array of http(s) links"), nil, nil
		}

		id, err := deps.Client.ProcessURLs(ctx, urls)
		if err != nil {
			return serverError(deps, "Submitting links", err), nil, nil
		}

		deps.Logger.Info("links submitted", "process_id", id, "count", len(urls))
		return JSONResult(ProcessURLsResult{
			ProcessID: id,
			Items:     len(urls),
			Message:   fmt.Sprintf("Processing %d link(s). Call get_batch with process_id to follow progress", len(urls)),
		}), nil, nil
	}
}

// GetBatchInput defines the input schema for the get_batch tool.
type GetBatchInput struct {
	ProcessID string `json:"process_id" jsonschema:"Batch id returned by process_urls"`
}

// BatchSummary is a batch as reported to MCP clients.
type BatchSummary struct {
	ProcessID string              `json:"process_id"`
	Status    models.BatchKind    `json:"status"`
	Resolved  int                 `json:"resolved"`
	Total     int                 `json:"total"`
	Items     []models.ItemRecord `json:"items"`
	Message   string              `json:"message,omitempty"`
}

func summarize(b models.Batch) BatchSummary {
	return BatchSummary{
		ProcessID: b.ID,
		Status:    b.Status.Kind,
		Resolved:  b.Resolved(),
		Total:     len(b.Items),
		Items:     b.Items,
		Message:   b.Status.Message,
	}
}

// NewGetBatchHandler reports one batch's progress.
func NewGetBatchHandler(deps *Dependencies) mcp.ToolHandlerFor[GetBatchInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GetBatchInput) (*mcp.CallToolResult, any, error) {
		id := strings.TrimSpace(input.ProcessID)
		if id == "" {
			return ErrorResult("process_id is required", "Use recent_batches to find one"), nil, nil
		}

		b, err := deps.Client.GetBatch(ctx, id)
		if err != nil {
			return serverError(deps, "Fetching batch", err), nil, nil
		}
		return JSONResult(summarize(*b)), nil, nil
	}
}

// RecentBatchesInput defines the input schema for the recent_batches tool.
type RecentBatchesInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Max batches 1-50, default 5"`
}

// NewRecentBatchesHandler lists the newest batches, newest first.
func NewRecentBatchesHandler(deps *Dependencies) mcp.ToolHandlerFor[RecentBatchesInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input RecentBatchesInput) (*mcp.CallToolResult, any, error) {
		if input.Limit < 0 || input.Limit > maxRecentLimit {
			return ErrorResult("Limit must be 1-50", "Omit limit for the default"), nil, nil
		}

		batches, err := deps.Client.RecentBatches(ctx, input.Limit)
		if err != nil {
			return serverError(deps, "Listing batches", err), nil, nil
		}
		out := make([]BatchSummary, len(batches))
		for i, b := range batches {
			out[i] = summarize(b)
		}
		return JSONResult(map[string]any{"batches": out, "count": len(out)}), nil, nil
	}
}
