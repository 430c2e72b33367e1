package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/maecare/airouter/src/models"
)

// Credentials is a fixed credential store keyed by provider.
type Credentials map[models.Provider]string

func (c Credentials) GetCredential(p models.Provider) (string, bool) {
	key, ok := c[p]
	return key, ok && key != ""
}

func (c Credentials) HasCredential(p models.Provider) bool {
	_, ok := c.GetCredential(p)
	return ok
}

// AllCredentials returns a store with every provider configured.
func AllCredentials() Credentials {
	creds := Credentials{}
	for _, p := range models.AllProviders {
		creds[p] = "key-" + string(p)
	}
	return creds
}

// MockProvider implements models.ChatProvider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Chat(ctx context.Context, messages []models.ChatMessage, opts models.ChatOptions) (*models.ChatResult, error) {
	args := m.Called(ctx, messages, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatResult), args.Error(1)
}

// MockResponseCache implements models.ResponseCache
type MockResponseCache struct {
	mock.Mock
}

func (m *MockResponseCache) Get(ctx context.Context, query string, provider models.Provider) *models.CachedResponse {
	args := m.Called(ctx, query, provider)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*models.CachedResponse)
}

func (m *MockResponseCache) Set(ctx context.Context, query string, provider models.Provider, response string, tokensUsed *int, costUSD *float64) bool {
	args := m.Called(ctx, query, provider, response, tokensUsed, costUSD)
	return args.Bool(0)
}

func (m *MockResponseCache) ClearExpired(ctx context.Context) int64 {
	args := m.Called(ctx)
	return args.Get(0).(int64)
}

func (m *MockResponseCache) ClearProvider(ctx context.Context, provider models.Provider) bool {
	args := m.Called(ctx, provider)
	return args.Bool(0)
}

func (m *MockResponseCache) Stats(ctx context.Context) *models.CacheStats {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*models.CacheStats)
}

// MockFlagService implements models.FlagService
type MockFlagService struct {
	mock.Mock
}

func (m *MockFlagService) GetFlags(ctx context.Context, userID string) *models.UserFeatureFlags {
	args := m.Called(ctx, userID)
	return args.Get(0).(*models.UserFeatureFlags)
}

func (m *MockFlagService) IsEnabled(ctx context.Context, userID string, flag models.FeatureFlag) bool {
	args := m.Called(ctx, userID, flag)
	return args.Bool(0)
}

func (m *MockFlagService) Update(ctx context.Context, userID string, patch models.FlagsPatch, group *models.ABGroup) bool {
	args := m.Called(ctx, userID, patch, group)
	return args.Bool(0)
}

func (m *MockFlagService) AssignToGroup(ctx context.Context, userID string, group models.ABGroup) bool {
	args := m.Called(ctx, userID, group)
	return args.Bool(0)
}

func (m *MockFlagService) Distribution(ctx context.Context) map[models.ABGroup]int64 {
	args := m.Called(ctx)
	return args.Get(0).(map[models.ABGroup]int64)
}

// MockCacheStore implements models.CacheStore
type MockCacheStore struct {
	mock.Mock
}

func (m *MockCacheStore) InsertCachedResponse(ctx context.Context, entry *models.CachedResponse) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockCacheStore) LatestCachedResponse(ctx context.Context, queryHash string, provider models.Provider, now int64) (*models.CachedResponse, error) {
	args := m.Called(ctx, queryHash, provider, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CachedResponse), args.Error(1)
}

func (m *MockCacheStore) DeleteExpiredCachedResponses(ctx context.Context, now int64) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCacheStore) DeleteCachedResponsesByProvider(ctx context.Context, provider models.Provider) (int64, error) {
	args := m.Called(ctx, provider)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCacheStore) CacheUsageByProvider(ctx context.Context) ([]models.ProviderUsage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ProviderUsage), args.Error(1)
}

// MockFlagStore implements models.FlagStore
type MockFlagStore struct {
	mock.Mock
}

func (m *MockFlagStore) GetUserFeatureFlags(ctx context.Context, userID string) (*models.UserFeatureFlags, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserFeatureFlags), args.Error(1)
}

func (m *MockFlagStore) UpsertUserFeatureFlags(ctx context.Context, flags *models.UserFeatureFlags) error {
	args := m.Called(ctx, flags)
	return args.Error(0)
}

func (m *MockFlagStore) CountUsersByGroup(ctx context.Context) (map[models.ABGroup]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.ABGroup]int64), args.Error(1)
}
