package store

import (
	"context"
	"fmt"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS ai_response_cache (
		id TEXT PRIMARY KEY,
		query_hash TEXT NOT NULL,
		provider TEXT NOT NULL,
		query TEXT NOT NULL,
		response TEXT NOT NULL,
		tokens_used INTEGER,
		cost_usd REAL,
		created_at BIGINT NOT NULL,
		expires_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ai_response_cache_lookup
		ON ai_response_cache (query_hash, provider, expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_ai_response_cache_expires
		ON ai_response_cache (expires_at)`,
	`CREATE TABLE IF NOT EXISTS user_feature_flags (
		user_id TEXT PRIMARY KEY,
		flags TEXT NOT NULL,
		ab_test_group TEXT NOT NULL DEFAULT 'control',
		updated_at BIGINT NOT NULL
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS ai_response_cache (
		id UUID PRIMARY KEY,
		query_hash TEXT NOT NULL,
		provider TEXT NOT NULL,
		query TEXT NOT NULL,
		response TEXT NOT NULL,
		tokens_used INTEGER,
		cost_usd DOUBLE PRECISION,
		created_at BIGINT NOT NULL,
		expires_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ai_response_cache_lookup
		ON ai_response_cache (query_hash, provider, expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_ai_response_cache_expires
		ON ai_response_cache (expires_at)`,
	`CREATE TABLE IF NOT EXISTS user_feature_flags (
		user_id TEXT PRIMARY KEY,
		flags JSONB NOT NULL,
		ab_test_group TEXT NOT NULL DEFAULT 'control',
		updated_at BIGINT NOT NULL
	)`,
}

// Migrate creates the tables if they do not exist. It is safe to run on every start.
func (d *DB) Migrate(ctx context.Context) error {
	schema := sqliteSchema
	if d.driver == DriverPostgres {
		schema = postgresSchema
	}

	for _, stmt := range schema {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}

	return nil
}
