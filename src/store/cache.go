package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/maecare/airouter/src/models"
)

func (d *DB) InsertCachedResponse(ctx context.Context, entry *models.CachedResponse) error {
	query := fmt.Sprintf(`
		INSERT INTO ai_response_cache (id, query_hash, provider, query, response, tokens_used, cost_usd, created_at, expires_at)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		d.placeholder(1), d.placeholder(2), d.placeholder(3), d.placeholder(4), d.placeholder(5),
		d.placeholder(6), d.placeholder(7), d.placeholder(8), d.placeholder(9))

	var tokens sql.NullInt64
	if entry.TokensUsed != nil {
		tokens = sql.NullInt64{Int64: int64(*entry.TokensUsed), Valid: true}
	}
	var cost sql.NullFloat64
	if entry.CostUSD != nil {
		cost = sql.NullFloat64{Float64: *entry.CostUSD, Valid: true}
	}

	_, err := d.db.ExecContext(ctx, query,
		entry.ID,
		entry.QueryHash,
		string(entry.Provider),
		entry.Query,
		entry.Response,
		tokens,
		cost,
		entry.CreatedAt.UnixMilli(),
		entry.ExpiresAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert cached response: %w", err)
	}

	return nil
}

// LatestCachedResponse returns the most recent live row for the hash and
// provider, or nil when there is none. now is in Unix milliseconds. Rows with
// equal created_at are ordered by id, which callers issue as UUIDv7.
func (d *DB) LatestCachedResponse(ctx context.Context, queryHash string, provider models.Provider, now int64) (*models.CachedResponse, error) {
	query := fmt.Sprintf(`
		SELECT id, query_hash, provider, query, response, tokens_used, cost_usd, created_at, expires_at
		FROM ai_response_cache
		WHERE query_hash = %s AND provider = %s AND expires_at > %s
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		d.placeholder(1), d.placeholder(2), d.placeholder(3))

	var (
		entry      models.CachedResponse
		providerID string
		tokens     sql.NullInt64
		cost       sql.NullFloat64
		createdAt  int64
		expiresAt  int64
	)
	err := d.db.QueryRowContext(ctx, query, queryHash, string(provider), now).Scan(
		&entry.ID,
		&entry.QueryHash,
		&providerID,
		&entry.Query,
		&entry.Response,
		&tokens,
		&cost,
		&createdAt,
		&expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached response: %w", err)
	}

	entry.Provider = models.Provider(providerID)
	if tokens.Valid {
		n := int(tokens.Int64)
		entry.TokensUsed = &n
	}
	if cost.Valid {
		c := cost.Float64
		entry.CostUSD = &c
	}
	entry.CreatedAt = time.UnixMilli(createdAt)
	entry.ExpiresAt = time.UnixMilli(expiresAt)

	return &entry, nil
}

// DeleteExpiredCachedResponses removes rows with expires_at < now.
func (d *DB) DeleteExpiredCachedResponses(ctx context.Context, now int64) (int64, error) {
	query := "DELETE FROM ai_response_cache WHERE expires_at < " + d.placeholder(1)

	result, err := d.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cached responses: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted cached responses: %w", err)
	}

	return n, nil
}

func (d *DB) DeleteCachedResponsesByProvider(ctx context.Context, provider models.Provider) (int64, error) {
	query := "DELETE FROM ai_response_cache WHERE provider = " + d.placeholder(1)

	result, err := d.db.ExecContext(ctx, query, string(provider))
	if err != nil {
		return 0, fmt.Errorf("failed to delete cached responses for %s: %w", provider, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted cached responses: %w", err)
	}

	return n, nil
}

// CacheUsageByProvider aggregates row count and response byte size per provider.
func (d *DB) CacheUsageByProvider(ctx context.Context) ([]models.ProviderUsage, error) {
	query := `
		SELECT provider, COUNT(*), COALESCE(SUM(` + d.byteLength("response") + `), 0)
		FROM ai_response_cache
		GROUP BY provider
		ORDER BY provider`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate cache usage: %w", err)
	}
	defer rows.Close()

	var usage []models.ProviderUsage
	for rows.Next() {
		var (
			u        models.ProviderUsage
			provider string
		)
		if err := rows.Scan(&provider, &u.Entries, &u.Bytes); err != nil {
			return nil, fmt.Errorf("failed to scan cache usage: %w", err)
		}
		u.Provider = models.Provider(provider)
		usage = append(usage, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cache usage: %w", err)
	}

	return usage, nil
}
