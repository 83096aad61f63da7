package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/helix/internal/models"
)

const (
	maxArgLogLen = 200

	// tools/call round-trips to the REST API.
	slowToolThreshold    = 2 * time.Second
	slowRequestThreshold = 100 * time.Millisecond
)

// LoggingMiddleware logs every incoming request with its duration.
// Tool calls also carry the tool name and a truncated copy of the arguments.
// A tool result flagged IsError is logged at WARN even though the protocol
// call itself succeeded.
func LoggingMiddleware(logger *slog.Logger) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			start := time.Now()
			result, err := next(ctx, method, req)
			duration := time.Since(start)

			attrs := []any{"method", method, "duration_ms", duration.Milliseconds()}
			threshold := slowRequestThreshold
			if call, ok := req.(*mcp.CallToolRequest); ok && call.Params != nil {
				threshold = slowToolThreshold
				attrs = append(attrs, "tool", call.Params.Name)
				if len(call.Params.Arguments) > 0 {
					attrs = append(attrs, "args", models.Truncate(string(call.Params.Arguments), maxArgLogLen))
				}
			}

			switch {
			case err != nil:
				logger.Error("request failed", append(attrs, "error", err.Error())...)
			case toolFailed(result):
				logger.Warn("tool returned error", attrs...)
			case duration > threshold:
				logger.Warn("slow request", attrs...)
			default:
				logger.Debug("request completed", attrs...)
			}
			return result, err
		}
	}
}

func toolFailed(result mcp.Result) bool {
	r, ok := result.(*mcp.CallToolResult)
	return ok && r != nil && r.IsError
}
