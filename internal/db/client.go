// Package db keeps batch process records in SurrealDB.
package db

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

func init() {
	// The websocket upgrade fails if wss negotiates h2 via ALPN.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// Auth levels accepted in Config.AuthLevel.
const (
	AuthRoot     = "root"
	AuthDatabase = "database"
)

// Config locates the process database and the credentials used for it.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	AuthLevel string
}

func (c Config) validate() error {
	switch {
	case c.URL == "":
		return errors.New("surrealdb url is empty")
	case c.Namespace == "" || c.Database == "":
		return errors.New("surrealdb namespace and database are required")
	}
	switch c.AuthLevel {
	case "", AuthRoot, AuthDatabase:
		return nil
	default:
		return fmt.Errorf("unknown surrealdb auth level %q", c.AuthLevel)
	}
}

// credentials scopes the sign-in to the database for database users.
// Root users sign in without a namespace.
func (c Config) credentials() surrealdb.Auth {
	auth := surrealdb.Auth{Username: c.Username, Password: c.Password}
	if c.AuthLevel == AuthDatabase {
		auth.Namespace = c.Namespace
		auth.Database = c.Database
	}
	return auth
}

// rpcBaseURL strips the /rpc suffix gorillaws appends on its own.
func rpcBaseURL(raw string) string {
	return strings.TrimSuffix(strings.TrimSuffix(raw, "/"), "/rpc")
}

// Client is the SurrealDB process store. Its websocket reconnects with
// exponential backoff, so a restarted database does not fail the batches
// still being propagated.
type Client struct {
	conn *rews.Connection[*gorillaws.Connection]
	db   *surrealdb.DB
	log  *slog.Logger
}

// Open connects, signs in, selects the namespace and makes sure the process
// table exists.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "surrealdb")

	conn := dial(cfg.URL, logger.New(log.Handler()))
	log.Info("connecting", "url", cfg.URL)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.URL, err)
	}

	c := &Client{conn: conn, log: log}
	if err := c.session(ctx, cfg); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}
	if err := c.migrate(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}
	log.Info("process store ready", "namespace", cfg.Namespace, "database", cfg.Database)
	return c, nil
}

func dial(rawURL string, sdkLog logger.Logger) *rews.Connection[*gorillaws.Connection] {
	codec := surrealcbor.New()
	base := rpcBaseURL(rawURL)

	conn := rews.New(
		func(context.Context) (*gorillaws.Connection, error) {
			return gorillaws.New(&connection.Config{
				BaseURL:     base,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLog,
			}), nil
		},
		5*time.Second,
		codec,
		sdkLog,
	)

	retry := rews.NewExponentialBackoffRetryer()
	retry.InitialDelay = time.Second
	retry.MaxDelay = 30 * time.Second
	retry.Multiplier = 2
	retry.MaxRetries = 10
	conn.Retryer = retry
	return conn
}

func (c *Client) session(ctx context.Context, cfg Config) error {
	db, err := surrealdb.FromConnection(ctx, c.conn)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	if _, err := db.SignIn(ctx, cfg.credentials()); err != nil {
		return fmt.Errorf("sign in as %s: %w", cfg.Username, err)
	}
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return fmt.Errorf("use %s/%s: %w", cfg.Namespace, cfg.Database, err)
	}
	c.db = db
	return nil
}

// migrate applies the process table definition. Every statement is
// IF NOT EXISTS, so it runs on each start.
func (c *Client) migrate(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, c.db, SchemaSQL, nil); err != nil {
		return fmt.Errorf("define process table: %w", err)
	}
	return nil
}

// Close drops the websocket.
func (c *Client) Close(ctx context.Context) error {
	c.log.Info("closing connection")
	return c.conn.Close(ctx)
}
