package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Client wraps the Postgres connection pool.
type Client struct {
	db  *sql.DB
	log *zap.Logger
}

// NewClient opens a connection pool against the configured database URL and
// verifies it with a ping.
func NewClient(ctx context.Context, databaseURL string, log *zap.Logger) (*Client, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Postgres connection established")

	return &Client{db: db, log: log}, nil
}

// DB returns the underlying connection pool.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Close closes the connection pool.
func (c *Client) Close() error {
	c.log.Info("Closing Postgres connection")
	return c.db.Close()
}
