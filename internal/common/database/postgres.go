// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"design-workers/internal/common/config"

	_ "github.com/lib/pq"
)

// KnowledgeSchema creates the knowledge store tables. Statements are
// idempotent so Migrate can run on every start.
var KnowledgeSchema = []string{
	`CREATE TABLE IF NOT EXISTS knowledge_objects (
		id            TEXT PRIMARY KEY,
		parent_id     TEXT,
		kind          TEXT NOT NULL,
		title         TEXT NOT NULL,
		body          JSONB NOT NULL,
		tags          TEXT[] NOT NULL DEFAULT '{}',
		version       TEXT NOT NULL,
		status        TEXT NOT NULL,
		quality_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		embedding     JSONB,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS knowledge_objects_status_idx ON knowledge_objects (status, kind)`,
	`CREATE TABLE IF NOT EXISTS knowledge_audit (
		id         BIGSERIAL PRIMARY KEY,
		object_id  TEXT NOT NULL,
		action     TEXT NOT NULL,
		detail     JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS preference_weights (
		user_id TEXT NOT NULL,
		facet   TEXT NOT NULL,
		value   TEXT NOT NULL,
		weight  DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (user_id, facet, value)
	)`,
}

// PostgresClient wraps the SQL database connection
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres creates a new PostgreSQL client
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Ping tests the database connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Migrate applies KnowledgeSchema.
func (c *PostgresClient) Migrate(ctx context.Context) error {
	for _, stmt := range KnowledgeSchema {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
