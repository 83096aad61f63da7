// Package api is the REST front end: it accepts uploads and links, exposes
// batch progress for polling or watching, and manages processed files.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/helix/internal/metrics"
	"github.com/raphaelgruber/helix/internal/models"
	"github.com/raphaelgruber/helix/internal/service"
)

// Runner schedules new batches.
type Runner interface {
	StartUploads(ctx context.Context, owner string, uploads []service.Upload) (models.Batch, error)
	StartLinks(ctx context.Context, owner string, urls []string) (models.Batch, error)
}

// Batches reads batch records from the process store.
type Batches interface {
	GetBatch(ctx context.Context, id string) (models.Batch, error)
	ListRecent(ctx context.Context, owner string, limit int) ([]models.Batch, error)
}

// Files manages processed items.
type Files interface {
	List(ctx context.Context, owner string) (map[models.Category][]models.ProcessedFile, error)
	Delete(ctx context.Context, owner string, cat models.Category, name string) error
	Open(ctx context.Context, owner string, cat models.Category, name string) (io.ReadCloser, string, error)
}

// Options tunes request limits.
type Options struct {
	MaxUploadFiles int
	// WatchInterval is how often a watch re-reads the batch.
	WatchInterval time.Duration
}

// Server holds the state for the REST API server.
type Server struct {
	runner  Runner
	batches Batches
	files   Files
	metrics *metrics.Collector
	logger  *slog.Logger
	opts    Options

	upgrader websocket.Upgrader
	router   *gin.Engine
}

// NewServer creates the API server. m may be nil.
func NewServer(runner Runner, batches Batches, files Files, m *metrics.Collector, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadFiles <= 0 {
		opts.MaxUploadFiles = 10
	}
	if opts.WatchInterval <= 0 {
		opts.WatchInterval = time.Second
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))

	s := &Server{
		runner:  runner,
		batches: batches,
		files:   files,
		metrics: m,
		logger:  logger,
		opts:    opts,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		router: r,
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/stats", s.handleStats)

	owned := s.router.Group("/", s.requireOwner)
	owned.POST("/upload", s.handleUpload)
	owned.POST("/process-urls", s.handleProcessURLs)
	owned.GET("/processes/recent", s.handleRecent)
	owned.GET("/processes/:id", s.handleGetBatch)
	owned.GET("/processes/:id/watch", s.handleWatch)
	owned.GET("/files/processed", s.handleProcessed)
	owned.DELETE("/files", s.handleDelete)
	owned.POST("/download", s.handleDownload)
}
