package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"leadflow/internal/common/config"

	_ "github.com/lib/pq"
)

type PostgresClient struct {
	DB *sql.DB
}

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

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// schema creates the tables the agent reads and writes. Installation tables
// are populated by the external installer.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		location TEXT NOT NULL,
		min_price BIGINT NOT NULL,
		max_price BIGINT NOT NULL,
		min_bedrooms INTEGER NOT NULL,
		max_bedrooms INTEGER NOT NULL,
		property_type TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS event_logs (
		id BIGSERIAL PRIMARY KEY,
		event_type TEXT NOT NULL,
		event_data JSONB,
		status TEXT NOT NULL DEFAULT 'processing',
		error_message TEXT,
		team_id TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_event_logs_status_created ON event_logs (status, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_event_logs_team_created ON event_logs (team_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS slack_installations (
		team_id TEXT PRIMARY KEY,
		team_name TEXT,
		access_token TEXT NOT NULL,
		bot_user_id TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS zoho_installations (
		team_id TEXT PRIMARY KEY,
		access_token TEXT NOT NULL,
		refresh_token TEXT,
		api_domain TEXT NOT NULL,
		expires_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS notification_recipients (
		team_id TEXT NOT NULL,
		channel TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		PRIMARY KEY (team_id, channel)
	)`,
}

// Migrate applies the schema idempotently.
func (c *PostgresClient) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
