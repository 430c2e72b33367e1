package models

import (
	"context"
)

// CredentialStore answers whether an API credential is configured for a provider.
type CredentialStore interface {
	GetCredential(p Provider) (string, bool)
	HasCredential(p Provider) bool
}

// ChatProvider is a single LLM backend client.
type ChatProvider interface {
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (*ChatResult, error)
}

// ResponseCache never returns errors; faults degrade to misses.
type ResponseCache interface {
	Get(ctx context.Context, query string, provider Provider) *CachedResponse
	Set(ctx context.Context, query string, provider Provider, response string, tokensUsed *int, costUSD *float64) bool
	ClearExpired(ctx context.Context) int64
	ClearProvider(ctx context.Context, provider Provider) bool
	Stats(ctx context.Context) *CacheStats
}

// FlagService never returns errors; faults degrade to safe defaults.
type FlagService interface {
	GetFlags(ctx context.Context, userID string) *UserFeatureFlags
	IsEnabled(ctx context.Context, userID string, flag FeatureFlag) bool
	Update(ctx context.Context, userID string, patch FlagsPatch, group *ABGroup) bool
	AssignToGroup(ctx context.Context, userID string, group ABGroup) bool
	Distribution(ctx context.Context) map[ABGroup]int64
}

// CacheStore is the persistence backing the response cache.
type CacheStore interface {
	InsertCachedResponse(ctx context.Context, entry *CachedResponse) error
	// LatestCachedResponse returns nil, nil on a miss.
	LatestCachedResponse(ctx context.Context, queryHash string, provider Provider, now int64) (*CachedResponse, error)
	DeleteExpiredCachedResponses(ctx context.Context, now int64) (int64, error)
	DeleteCachedResponsesByProvider(ctx context.Context, provider Provider) (int64, error)
	CacheUsageByProvider(ctx context.Context) ([]ProviderUsage, error)
}

// FlagStore is the persistence backing feature flags.
type FlagStore interface {
	// GetUserFeatureFlags returns nil, nil when the user has no row yet.
	GetUserFeatureFlags(ctx context.Context, userID string) (*UserFeatureFlags, error)
	UpsertUserFeatureFlags(ctx context.Context, flags *UserFeatureFlags) error
	CountUsersByGroup(ctx context.Context) (map[ABGroup]int64, error)
}
