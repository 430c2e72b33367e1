package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maecare/airouter/src/metrics"
	"github.com/maecare/airouter/src/models"
)

// DefaultTTL is the fixed validity window of a cached response.
const DefaultTTL = 24 * time.Hour

const bytesPerMB = 1024 * 1024

// ResponseCache is a content-addressed cache of provider responses. Storage
// faults are logged and reported as misses or false; nothing is returned
// as an error.
type ResponseCache struct {
	store   models.CacheStore
	ttl     time.Duration
	metrics *metrics.Exporter
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*ResponseCache)

// WithTTL overrides the validity window.
func WithTTL(ttl time.Duration) Option {
	return func(c *ResponseCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithMetrics(e *metrics.Exporter) Option {
	return func(c *ResponseCache) { c.metrics = e }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *ResponseCache) { c.now = now }
}

func New(store models.CacheStore, logger *slog.Logger, opts ...Option) *ResponseCache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &ResponseCache{
		store:  store,
		ttl:    DefaultTTL,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HashQuery returns sha256("{provider}:{lowercased trimmed query}") in hex.
func HashQuery(query string, provider models.Provider) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(string(provider) + ":" + normalized))
	return hex.EncodeToString(sum[:])
}

// Get returns the most recent live entry, or nil on a miss or fault.
func (c *ResponseCache) Get(ctx context.Context, query string, provider models.Provider) *models.CachedResponse {
	hash := HashQuery(query, provider)

	entry, err := c.store.LatestCachedResponse(ctx, hash, provider, c.now().UnixMilli())
	if err != nil {
		c.logger.Error("cache lookup failed", "error", err, "provider", provider, "query_hash", hash)
		c.metrics.RecordCacheLookup(provider, false)
		return nil
	}

	c.metrics.RecordCacheLookup(provider, entry != nil)
	return entry
}

// Set stores a new entry expiring after the TTL. Duplicate rows for the same
// hash are allowed; reads take the newest. Ids are UUIDv7 so rows written in
// the same millisecond still sort by insertion order.
func (c *ResponseCache) Set(ctx context.Context, query string, provider models.Provider, response string, tokensUsed *int, costUSD *float64) bool {
	id, err := uuid.NewV7()
	if err != nil {
		c.logger.Error("cache id generation failed", "error", err, "provider", provider)
		return false
	}

	now := c.now()
	entry := &models.CachedResponse{
		ID:         id.String(),
		QueryHash:  HashQuery(query, provider),
		Provider:   provider,
		Query:      query,
		Response:   response,
		TokensUsed: tokensUsed,
		CostUSD:    costUSD,
		CreatedAt:  now,
		ExpiresAt:  now.Add(c.ttl),
	}

	if err := c.store.InsertCachedResponse(ctx, entry); err != nil {
		c.logger.Error("cache write failed", "error", err, "provider", provider, "query_hash", entry.QueryHash)
		return false
	}

	return true
}

// ClearExpired deletes entries whose expiry has passed and returns how many
// were removed; 0 on fault.
func (c *ResponseCache) ClearExpired(ctx context.Context) int64 {
	n, err := c.store.DeleteExpiredCachedResponses(ctx, c.now().UnixMilli())
	if err != nil {
		c.logger.Error("cache sweep failed", "error", err)
		return 0
	}
	if n > 0 {
		c.logger.Info("expired cache entries removed", "count", n)
	}
	c.metrics.RecordSwept(n)
	return n
}

// ClearProvider deletes every entry for the provider regardless of expiry.
func (c *ResponseCache) ClearProvider(ctx context.Context, provider models.Provider) bool {
	n, err := c.store.DeleteCachedResponsesByProvider(ctx, provider)
	if err != nil {
		c.logger.Error("cache invalidation failed", "error", err, "provider", provider)
		return false
	}
	c.logger.Info("cache invalidated", "provider", provider, "count", n)
	return true
}

// Stats aggregates entry counts and approximate response size per provider.
// It returns empty stats on fault.
func (c *ResponseCache) Stats(ctx context.Context) *models.CacheStats {
	stats := &models.CacheStats{
		ByProvider: make(map[models.Provider]models.ProviderCacheStats),
	}

	usage, err := c.store.CacheUsageByProvider(ctx)
	if err != nil {
		c.logger.Error("cache stats failed", "error", err)
		return stats
	}

	var totalBytes int64
	for _, u := range usage {
		stats.TotalEntries += u.Entries
		totalBytes += u.Bytes
		stats.ByProvider[u.Provider] = models.ProviderCacheStats{
			Entries: u.Entries,
			SizeMB:  float64(u.Bytes) / bytesPerMB,
		}
	}
	stats.TotalSizeMB = float64(totalBytes) / bytesPerMB

	return stats
}
