package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maecare/airouter/src/mocks"
	"github.com/maecare/airouter/src/models"
	"github.com/maecare/airouter/src/store"
)

var errStoreDown = errors.New("connection refused")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestCache(t *testing.T) (*ResponseCache, *fakeClock) {
	db, err := store.Open(context.Background(), store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() })

	clock := &fakeClock{now: time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)}
	return New(db, discardLogger(), WithClock(clock.Now)), clock
}

func TestHashQuery_Normalization(t *testing.T) {
	base := HashQuery("Receita de mingau", models.ProviderGPT4)

	assert.Equal(t, base, HashQuery("  RECEITA DE MINGAU  ", models.ProviderGPT4))
	assert.Equal(t, base, HashQuery("\treceita de mingau\n", models.ProviderGPT4))
	assert.NotEqual(t, base, HashQuery("Receita de mingau", models.ProviderClaude), "provider is part of the key")
	assert.NotEqual(t, base, HashQuery("Receita  de mingau", models.ProviderGPT4), "inner whitespace is significant")
	assert.Len(t, base, 64)
}

func TestResponseCache_SetAndGet(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()
	tokens := 120

	ok := cache.Set(ctx, "Receita de mingau", models.ProviderGPT4, "Misture aveia e leite...", &tokens, nil)
	require.True(t, ok)

	entry := cache.Get(ctx, "  RECEITA DE MINGAU  ", models.ProviderGPT4)
	require.NotNil(t, entry)
	assert.Equal(t, "Misture aveia e leite...", entry.Response)
	assert.Equal(t, "Receita de mingau", entry.Query)
	assert.Equal(t, 120, *entry.TokensUsed)
	assert.Nil(t, entry.CostUSD)
	assert.Equal(t, DefaultTTL, entry.ExpiresAt.Sub(entry.CreatedAt))

	assert.Nil(t, cache.Get(ctx, "Receita de mingau", models.ProviderClaude), "entries are provider specific")
}

func TestResponseCache_Expiry(t *testing.T) {
	cache, clock := setupTestCache(t)
	ctx := context.Background()

	require.True(t, cache.Set(ctx, "Receita de mingau", models.ProviderGPT4, "r", nil, nil))

	clock.Advance(23 * time.Hour)
	assert.NotNil(t, cache.Get(ctx, "Receita de mingau", models.ProviderGPT4))

	clock.Advance(2 * time.Hour)
	assert.Nil(t, cache.Get(ctx, "Receita de mingau", models.ProviderGPT4))
}

func TestResponseCache_LatestWins(t *testing.T) {
	cache, clock := setupTestCache(t)
	ctx := context.Background()

	require.True(t, cache.Set(ctx, "q", models.ProviderGPT4, "first", nil, nil))
	clock.Advance(time.Second)
	require.True(t, cache.Set(ctx, "Q ", models.ProviderGPT4, "second", nil, nil))

	entry := cache.Get(ctx, "q", models.ProviderGPT4)
	require.NotNil(t, entry)
	assert.Equal(t, "second", entry.Response)
}

func TestResponseCache_LatestWinsWithinMillisecond(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.True(t, cache.Set(ctx, "q", models.ProviderGPT4, "first", nil, nil))
	require.True(t, cache.Set(ctx, "q", models.ProviderGPT4, "second", nil, nil))

	entry := cache.Get(ctx, "q", models.ProviderGPT4)
	require.NotNil(t, entry)
	assert.Equal(t, "second", entry.Response)
}

func TestResponseCache_ClearExpired(t *testing.T) {
	cache, clock := setupTestCache(t)
	ctx := context.Background()

	require.True(t, cache.Set(ctx, "old", models.ProviderGPT4, "r", nil, nil))
	clock.Advance(20 * time.Hour)
	require.True(t, cache.Set(ctx, "new", models.ProviderGPT4, "r", nil, nil))
	clock.Advance(5 * time.Hour)

	assert.Equal(t, int64(1), cache.ClearExpired(ctx))
	assert.Equal(t, int64(0), cache.ClearExpired(ctx), "repeat sweeps are no-ops")
	assert.NotNil(t, cache.Get(ctx, "new", models.ProviderGPT4))
}

func TestResponseCache_ClearProviderAndStats(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.True(t, cache.Set(ctx, "a", models.ProviderGPT4, strings.Repeat("x", 1024), nil, nil))
	require.True(t, cache.Set(ctx, "b", models.ProviderGPT4, strings.Repeat("y", 1024), nil, nil))
	require.True(t, cache.Set(ctx, "c", models.ProviderGrok, "z", nil, nil))

	stats := cache.Stats(ctx)
	assert.Equal(t, int64(3), stats.TotalEntries)
	assert.Equal(t, int64(2), stats.ByProvider[models.ProviderGPT4].Entries)
	assert.InDelta(t, 2048.0/bytesPerMB, stats.ByProvider[models.ProviderGPT4].SizeMB, 1e-12)
	assert.InDelta(t, 2049.0/bytesPerMB, stats.TotalSizeMB, 1e-12)

	assert.True(t, cache.ClearProvider(ctx, models.ProviderGPT4))
	assert.Nil(t, cache.Get(ctx, "a", models.ProviderGPT4))

	stats = cache.Stats(ctx)
	assert.Equal(t, int64(1), stats.TotalEntries)
	_, ok := stats.ByProvider[models.ProviderGPT4]
	assert.False(t, ok)
}

func TestResponseCache_StoreFaultsDegrade(t *testing.T) {
	mockStore := new(mocks.MockCacheStore)
	mockStore.On("LatestCachedResponse", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errStoreDown)
	mockStore.On("InsertCachedResponse", mock.Anything, mock.Anything).Return(errStoreDown)
	mockStore.On("DeleteExpiredCachedResponses", mock.Anything, mock.Anything).Return(int64(0), errStoreDown)
	mockStore.On("DeleteCachedResponsesByProvider", mock.Anything, mock.Anything).Return(int64(0), errStoreDown)
	mockStore.On("CacheUsageByProvider", mock.Anything).Return(nil, errStoreDown)

	cache := New(mockStore, discardLogger())
	ctx := context.Background()

	assert.Nil(t, cache.Get(ctx, "q", models.ProviderGPT4))
	assert.False(t, cache.Set(ctx, "q", models.ProviderGPT4, "r", nil, nil))
	assert.Equal(t, int64(0), cache.ClearExpired(ctx))
	assert.False(t, cache.ClearProvider(ctx, models.ProviderGPT4))

	stats := cache.Stats(ctx)
	require.NotNil(t, stats)
	assert.Zero(t, stats.TotalEntries)
	assert.Empty(t, stats.ByProvider)

	mockStore.AssertExpectations(t)
}

func TestResponseCache_WithTTL(t *testing.T) {
	mockStore := new(mocks.MockCacheStore)
	mockStore.On("InsertCachedResponse", mock.Anything, mock.MatchedBy(func(e *models.CachedResponse) bool {
		return e.ExpiresAt.Sub(e.CreatedAt) == time.Hour && e.QueryHash == HashQuery("q", models.ProviderGemini)
	})).Return(nil)

	cache := New(mockStore, discardLogger(), WithTTL(time.Hour))

	assert.True(t, cache.Set(context.Background(), "q", models.ProviderGemini, "r", nil, nil))
	mockStore.AssertExpectations(t)
}

func BenchmarkHashQuery(b *testing.B) {
	for i := 0; i < b.N; i++ {
		HashQuery("  Qual a melhor posição para amamentar?  ", models.ProviderGPT4)
	}
}
