package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maecare/airouter/src/chat"
	"github.com/maecare/airouter/src/inference"
	"github.com/maecare/airouter/src/middleware"
	"github.com/maecare/airouter/src/mocks"
	"github.com/maecare/airouter/src/models"
	"github.com/maecare/airouter/src/router"
)

const testUser = "user-1"

type testEnv struct {
	engine        *gin.Engine
	cache         *mocks.MockResponseCache
	flags         *mocks.MockFlagService
	provider      *mocks.MockProvider
	conversations *chat.SessionStore
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func withUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	}
}

func setupTestEnv(t *testing.T, creds mocks.Credentials, flags models.Flags) *testEnv {
	gin.SetMode(gin.TestMode)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	env := &testEnv{
		cache:         new(mocks.MockResponseCache),
		flags:         new(mocks.MockFlagService),
		provider:      new(mocks.MockProvider),
		conversations: chat.NewSessionStore(client, time.Hour),
	}
	env.flags.On("GetFlags", mock.Anything, testUser).Return(&models.UserFeatureFlags{
		UserID:      testUser,
		Flags:       flags,
		ABTestGroup: models.GroupControl,
	})

	registry := inference.NewRegistry()
	for p := range creds {
		registry.Register(p, env.provider)
	}

	queryRouter := router.NewQueryRouter(creds, env.flags, nil, discardLogger())
	chatHandler := NewChatHandler(queryRouter, registry, env.cache, env.flags, env.conversations, nil, discardLogger())
	routeHandler := NewRouteHandler(queryRouter, registry)
	flagsHandler := NewFlagsHandler(env.flags)
	adminHandler := NewAdminHandler(env.cache, env.flags, discardLogger())

	r := gin.New()
	r.GET("/health", routeHandler.HealthCheck)
	api := r.Group("", withUser(testUser))
	api.POST("/chat", chatHandler.HandleChat)
	api.POST("/route", routeHandler.HandleRoute)
	api.GET("/conversations/:id", chatHandler.GetConversation)
	api.DELETE("/conversations/:id", chatHandler.DeleteConversation)
	api.GET("/flags", flagsHandler.GetFlags)
	api.PATCH("/flags", flagsHandler.UpdateFlags)
	r.POST("/admin/flags/:user_id/group", adminHandler.AssignGroup)
	r.GET("/admin/flags/distribution", adminHandler.Distribution)
	r.GET("/admin/cache/stats", adminHandler.CacheStats)
	r.POST("/admin/cache/sweep", adminHandler.SweepCache)
	r.DELETE("/admin/cache/:provider", adminHandler.ClearProvider)
	env.engine = r

	return env
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	e.engine.ServeHTTP(w, req)
	return w
}

func TestChatHandler_CacheMissCallsProvider(t *testing.T) {
	env := setupTestEnv(t, mocks.AllCredentials(), models.Flags{})

	env.cache.On("Get", mock.Anything, "Estou muito cansada", models.ProviderClaude).Return(nil)
	env.provider.On("Chat", mock.Anything, mock.Anything, mock.Anything).Return(&models.ChatResult{
		Text:  "Sinto muito, você não está sozinha.",
		Usage: &models.TokenUsage{InputTokens: 40, OutputTokens: 12},
	}, nil)
	env.cache.On("Set", mock.Anything, "Estou muito cansada", models.ProviderClaude,
		"Sinto muito, você não está sozinha.", mock.Anything, (*float64)(nil)).Return(true)

	w := env.do("POST", "/chat", models.ChatRequest{Message: "Estou muito cansada"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, models.ProviderClaude, resp.Provider)
	assert.Equal(t, models.QueryEmpathetic, resp.QueryType)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, 52, resp.TokensUsed)
	assert.Nil(t, resp.CostUSD, "cost is hidden without cost_tracking")
	assert.Equal(t, 2, resp.MessageCount)
	assert.NotEmpty(t, resp.ConversationID)

	messages := env.provider.Calls[0].Arguments.Get(1).([]models.ChatMessage)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "Estou muito cansada", messages[len(messages)-1].Content)

	conv, err := env.conversations.Get(t.Context(), testUser, resp.ConversationID)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 2)

	env.cache.AssertExpectations(t)
	env.provider.AssertExpectations(t)
}

func TestChatHandler_CacheHitSkipsProvider(t *testing.T) {
	env := setupTestEnv(t, mocks.AllCredentials(), models.Flags{})

	tokens := 30
	env.cache.On("Get", mock.Anything, "Receita de mingau", models.ProviderGPT4).Return(&models.CachedResponse{
		Provider:   models.ProviderGPT4,
		Response:   "Mingau de aveia...",
		TokensUsed: &tokens,
	})

	w := env.do("POST", "/chat", models.ChatRequest{Message: "Receita de mingau"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.True(t, resp.CacheHit)
	assert.Equal(t, "Mingau de aveia...", resp.Response)
	assert.Equal(t, 30, resp.TokensUsed)
	env.provider.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything, mock.Anything)
}

func TestChatHandler_CostTracking(t *testing.T) {
	env := setupTestEnv(t, mocks.AllCredentials(), models.Flags{CostTracking: true})

	env.cache.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	env.provider.On("Chat", mock.Anything, mock.Anything, mock.Anything).Return(&models.ChatResult{
		Text:  "ok",
		Usage: &models.TokenUsage{InputTokens: 1000, OutputTokens: 1000},
	}, nil)
	env.cache.On("Set", mock.Anything, mock.Anything, models.ProviderGPT4, "ok", mock.Anything,
		mock.MatchedBy(func(c *float64) bool { return c != nil && *c > 0 })).Return(true)

	w := env.do("POST", "/chat", models.ChatRequest{Message: "Receita de mingau"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.CostUSD)
	assert.InDelta(t, 0.0125, *resp.CostUSD, 1e-9)
	env.cache.AssertExpectations(t)
}

func TestChatHandler_NoProviderAvailable(t *testing.T) {
	env := setupTestEnv(t, mocks.Credentials{}, models.Flags{})

	w := env.do("POST", "/chat", models.ChatRequest{Message: "Receita de mingau"})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	env.cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

func TestChatHandler_LoadsFlagsOnce(t *testing.T) {
	env := setupTestEnv(t, mocks.AllCredentials(), models.Flags{CostTracking: true, EnhancedAnalytics: true})

	env.cache.On("Get", mock.Anything, "Receita de mingau", models.ProviderGPT4).Return(nil)
	env.provider.On("Chat", mock.Anything, mock.Anything, mock.Anything).Return(&models.ChatResult{Text: "Aveia e leite."}, nil)
	env.cache.On("Set", mock.Anything, "Receita de mingau", models.ProviderGPT4,
		"Aveia e leite.", mock.Anything, mock.Anything).Return(true)

	w := env.do("POST", "/chat", models.ChatRequest{Message: "Receita de mingau"})

	require.Equal(t, http.StatusOK, w.Code)
	env.flags.AssertNumberOfCalls(t, "GetFlags", 1)
}

func TestChatHandler_FallbackHonoursFlags(t *testing.T) {
	env := setupTestEnv(t, mocks.Credentials{models.ProviderGemini: "key"}, models.Flags{})

	w := env.do("POST", "/chat", models.ChatRequest{Message: "Receita de mingau"})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	env.provider.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything, mock.Anything)
	env.flags.AssertNumberOfCalls(t, "GetFlags", 1)
}

func TestChatHandler_ProviderFailure(t *testing.T) {
	env := setupTestEnv(t, mocks.AllCredentials(), models.Flags{})

	env.cache.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	env.provider.On("Chat", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("upstream 500"))

	w := env.do("POST", "/chat", models.ChatRequest{Message: "Receita de mingau"})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	env.cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestChatHandler_BadRequestAndForeignConversation(t *testing.T) {
	env := setupTestEnv(t, mocks.AllCredentials(), models.Flags{})

	w := env.do("POST", "/chat", gin.H{"message": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	conv, err := env.conversations.Create(t.Context(), "someone-else")
	require.NoError(t, err)

	w = env.do("POST", "/chat", models.ChatRequest{ConversationID: conv.ID, Message: "oi"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do("GET", "/conversations/"+conv.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do("DELETE", "/conversations/"+conv.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatHandler_ConversationLifecycle(t *testing.T) {
	env := setupTestEnv(t, mocks.AllCredentials(), models.Flags{})

	conv, err := env.conversations.Create(t.Context(), testUser)
	require.NoError(t, err)

	w := env.do("GET", "/conversations/"+conv.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("DELETE", "/conversations/"+conv.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("GET", "/conversations/"+conv.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouteHandler(t *testing.T) {
	env := setupTestEnv(t, mocks.AllCredentials(), models.Flags{})

	w := env.do("POST", "/route", models.RouteRequest{Message: "Isso está viral no TikTok"})

	require.Equal(t, http.StatusOK, w.Code)
	var decision models.RoutingDecision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decision))
	assert.Equal(t, models.ProviderGPT4, decision.Provider)
	assert.Equal(t, models.QueryTrends, decision.QueryType)
	assert.Equal(t, "feature flag override: grok not enabled", decision.Reason)

	w = env.do("POST", "/route", gin.H{"message": "oi", "history_length": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouteHandler_UnavailableDecision(t *testing.T) {
	env := setupTestEnv(t, mocks.Credentials{}, models.Flags{})

	w := env.do("POST", "/route", models.RouteRequest{Message: "Receita de mingau"})

	require.Equal(t, http.StatusOK, w.Code)
	var decision models.RoutingDecision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decision))
	assert.False(t, decision.Available)
}

func TestHealthCheck(t *testing.T) {
	env := setupTestEnv(t, mocks.Credentials{models.ProviderGPT4: "sk"}, models.Flags{})

	w := env.do("GET", "/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"providers":["gpt4"]`)
}

func TestFlagsHandler(t *testing.T) {
	env := setupTestEnv(t, mocks.AllCredentials(), models.Flags{})

	w := env.do("GET", "/flags", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ab_test_group":"control"`)

	enabled := true
	group := models.GroupGrok
	env.flags.On("Update", mock.Anything, testUser, models.FlagsPatch{UseGrok: &enabled}, &group).Return(true)

	w = env.do("PATCH", "/flags", gin.H{"flags": gin.H{"use_grok": true}, "ab_test_group": "grok"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("PATCH", "/flags", gin.H{"ab_test_group": "beta"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.flags.AssertExpectations(t)
}

func TestAdminHandler(t *testing.T) {
	env := setupTestEnv(t, mocks.AllCredentials(), models.Flags{})

	env.flags.On("AssignToGroup", mock.Anything, testUser, models.GroupSmart).Return(true)
	w := env.do("POST", "/admin/flags/"+testUser+"/group", models.AssignGroupRequest{Group: models.GroupSmart})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("POST", "/admin/flags/"+testUser+"/group", gin.H{"group": "beta"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.flags.On("Distribution", mock.Anything).Return(map[models.ABGroup]int64{
		models.GroupControl: 3, models.GroupGrok: 0, models.GroupGemini: 1, models.GroupSmart: 1,
	})
	w = env.do("GET", "/admin/flags/distribution", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"control":3`)

	env.cache.On("Stats", mock.Anything).Return(&models.CacheStats{
		TotalEntries: 2,
		ByProvider:   map[models.Provider]models.ProviderCacheStats{models.ProviderGPT4: {Entries: 2}},
	})
	w = env.do("GET", "/admin/cache/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_entries":2`)

	env.cache.On("ClearExpired", mock.Anything).Return(int64(4))
	w = env.do("POST", "/admin/cache/sweep", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":4}`, w.Body.String())

	env.cache.On("ClearProvider", mock.Anything, models.ProviderGrok).Return(true)
	w = env.do("DELETE", "/admin/cache/grok", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("DELETE", "/admin/cache/bard", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.flags.AssertExpectations(t)
	env.cache.AssertExpectations(t)
}
