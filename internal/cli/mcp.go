package cli

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/helix/internal/config"
	"github.com/raphaelgruber/helix/internal/server"
	"github.com/raphaelgruber/helix/internal/tools"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the helix tools over MCP on stdio",
	Long: `Run an MCP server on stdin/stdout. Tool calls are forwarded to the helix
server as the configured user, so a helix-server must be reachable.

Example client configuration:
  {"command": "helix", "args": ["mcp"], "env": {"HELIX_USER": "alice"}}`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	level := cfg.LogLevel
	if verbose {
		level = slog.LevelDebug
	}
	logger, cleanup := config.SetupLogger(cfg.LogFile, level)
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("helix mcp starting", "version", Version, "server", serverURL, "user", user)

	srv := server.New(Version, logger)
	srv.Setup()
	tools.RegisterAll(srv.MCPServer(), &tools.Dependencies{Client: apiClient, Logger: logger})

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
