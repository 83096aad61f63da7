// Package main provides the helix REST server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/raphaelgruber/helix/internal/api"
	"github.com/raphaelgruber/helix/internal/app"
	"github.com/raphaelgruber/helix/internal/config"
)

const version = "0.1.0"

func main() {
	cfg := config.Load()

	// Dual output: stderr text + file JSON
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	logger.Info("helix-server starting",
		"version", version,
		"port", cfg.ServerPort,
		"store", cfg.Store,
		"storage", cfg.Storage,
		"data_dir", cfg.DataDir,
	)

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	a, err := app.New(initCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	srv := api.NewServer(a.Runner, a.Store, a.Catalog, a.Metrics, logger, api.Options{
		MaxUploadFiles: cfg.MaxUploadFiles,
	})

	serveErr := srv.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.ServerPort))
	if serveErr != nil {
		logger.Error("server error", "error", serveErr)
	}

	logger.Info("waiting for running batches", "active", len(a.Runner.Active()))
	closeCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := a.Close(closeCtx); err != nil {
		logger.Error("failed to close", "error", err)
	}

	if serveErr != nil {
		os.Exit(1)
	}
	logger.Info("server stopped")
}
