// Package postgres opens pooled lib/pq connections and owns the catalog and
// analytics schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/config"
)

type Client struct {
	DB  *sql.DB
	cfg config.PostgresConfig
}

func New(cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db, cfg: cfg}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// schema holds idempotent DDL for every table the services read or write.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS catalog_categories (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		slug       TEXT NOT NULL DEFAULT '',
		see_also   TEXT NOT NULL DEFAULT '',
		position   INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS catalog_filters (
		category_id TEXT NOT NULL,
		position    INT NOT NULL,
		definition  JSONB NOT NULL,
		PRIMARY KEY (category_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS catalog_listings (
		category_id TEXT NOT NULL,
		position    INT NOT NULL,
		document    JSONB NOT NULL,
		PRIMARY KEY (category_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS browse_analytics_snapshots (
		id         BIGSERIAL PRIMARY KEY,
		snapshot   JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate creates any missing tables in a single transaction.
func (c *Client) Migrate(ctx context.Context) error {
	return c.InTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("applying schema: %w", err)
			}
		}
		return nil
	})
}
