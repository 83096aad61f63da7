package tools

import (
	"context"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/helix/internal/models"
)

// ListProcessedInput defines the input schema for the list_processed tool.
type ListProcessedInput struct {
	Category string `json:"category,omitempty" jsonschema:"Restrict to docs, media or links"`
	Tag      string `json:"tag,omitempty" jsonschema:"Only records carrying this tag"`
}

// NewListProcessedHandler lists metadata records of placed items.
func NewListProcessedHandler(deps *Dependencies) mcp.ToolHandlerFor[ListProcessedInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListProcessedInput) (*mcp.CallToolResult, any, error) {
		var only models.Category
		if input.Category != "" {
			cat, ok := models.ParseCategory(input.Category)
			if !ok {
				return ErrorResult("Unknown category "+input.Category, "Use docs, media or links"), nil, nil
			}
			only = cat
		}

		all, err := deps.Client.ProcessedFiles(ctx)
		if err != nil {
			return serverError(deps, "Listing processed files", err), nil, nil
		}

		var files []models.ProcessedFile
		for cat, list := range all {
			if only != "" && cat != only {
				continue
			}
			for _, f := range list {
				if input.Tag == "" || hasTag(f.Tags, input.Tag) {
					files = append(files, f)
				}
			}
		}
		sort.Slice(files, func(i, j int) bool { return files[i].ResolvedName < files[j].ResolvedName })

		return JSONResult(map[string]any{"files": files, "count": len(files)}), nil, nil
	}
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}
