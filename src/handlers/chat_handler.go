package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maecare/airouter/src/chat"
	"github.com/maecare/airouter/src/inference"
	"github.com/maecare/airouter/src/metrics"
	"github.com/maecare/airouter/src/middleware"
	"github.com/maecare/airouter/src/models"
	"github.com/maecare/airouter/src/router"
	"github.com/maecare/airouter/src/utils"
)

// ProviderSource resolves a routed provider to its client.
type ProviderSource interface {
	Get(p models.Provider) (models.ChatProvider, error)
}

// ConversationStore keeps per-user chat history.
type ConversationStore interface {
	GetOrCreate(ctx context.Context, userID, id string) (*models.Conversation, error)
	Get(ctx context.Context, userID, id string) (*models.Conversation, error)
	AppendExchange(ctx context.Context, conv *models.Conversation, userMessage, reply string) error
	Delete(ctx context.Context, userID, id string) error
}

type ChatHandler struct {
	queryRouter   *router.QueryRouter
	providers     ProviderSource
	cache         models.ResponseCache
	flags         models.FlagService
	conversations ConversationStore
	metrics       *metrics.Exporter
	logger        *slog.Logger
}

func NewChatHandler(
	queryRouter *router.QueryRouter,
	providers ProviderSource,
	cache models.ResponseCache,
	flags models.FlagService,
	conversations ConversationStore,
	exporter *metrics.Exporter,
	logger *slog.Logger,
) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{
		queryRouter:   queryRouter,
		providers:     providers,
		cache:         cache,
		flags:         flags,
		conversations: conversations,
		metrics:       exporter,
		logger:        logger,
	}
}

// HandleChat routes the message, answers from cache or the chosen provider
// and records the exchange in the conversation.
func (h *ChatHandler) HandleChat(c *gin.Context) {
	startTime := time.Now()

	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	conv, err := h.conversations.GetOrCreate(ctx, userID, req.ConversationID)
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
			return
		}
		h.logger.Error("failed to load conversation", "error", err, "conversation_id", req.ConversationID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load conversation"})
		return
	}

	userFlags := h.flags.GetFlags(ctx, userID)
	decision, err := h.queryRouter.RouteWithFlags(req.Message, conv.MessageCount, userFlags)
	if err != nil {
		if errors.Is(err, router.ErrNoProviderAvailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":    "No AI provider available",
				"decision": decision,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Routing failed"})
		return
	}

	if userFlags.Flags.EnhancedAnalytics {
		h.metrics.RecordGroupRequest(userFlags.ABTestGroup, decision.QueryType)
	}
	trackCost := userFlags.Flags.CostTracking

	var (
		response   string
		tokensUsed int
		costUSD    *float64
		cacheHit   bool
	)

	if cached := h.cache.Get(ctx, req.Message, decision.Provider); cached != nil {
		cacheHit = true
		response = cached.Response
		if cached.TokensUsed != nil {
			tokensUsed = *cached.TokensUsed
		}
		if trackCost {
			// Nothing was spent on a cache hit
			zero := 0.0
			costUSD = &zero
		}
	} else {
		client, err := h.providers.Get(decision.Provider)
		if err != nil {
			h.logger.Error("provider client missing", "error", err, "provider", decision.Provider)
			c.JSON(http.StatusBadGateway, gin.H{"error": "AI provider unavailable"})
			return
		}

		messages := inference.BuildMessages(decision.QueryType, conv.Messages, req.Message)
		callStart := time.Now()
		result, err := client.Chat(ctx, messages, models.ChatOptions{
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		})
		h.metrics.RecordProviderCall(decision.Provider, err, time.Since(callStart).Seconds())
		if err != nil {
			h.logger.Error("provider call failed", "error", err, "provider", decision.Provider)
			c.JSON(http.StatusBadGateway, gin.H{"error": "AI provider request failed"})
			return
		}

		response = result.Text
		usage := utils.UsageOrEstimate(result.Usage, messages, result.Text)
		tokensUsed = usage.Total()
		if trackCost {
			cost := utils.CalculateCost(decision.Provider, usage.InputTokens, usage.OutputTokens)
			costUSD = &cost
		}

		h.cache.Set(ctx, req.Message, decision.Provider, response, &tokensUsed, costUSD)
	}

	if err := h.conversations.AppendExchange(ctx, conv, req.Message, response); err != nil {
		h.logger.Warn("failed to save conversation", "error", err, "conversation_id", conv.ID)
	}

	c.JSON(http.StatusOK, models.ChatResponse{
		ConversationID: conv.ID,
		Response:       response,
		Provider:       decision.Provider,
		QueryType:      decision.QueryType,
		RoutingReason:  decision.Reason,
		Available:      decision.Available,
		CacheHit:       cacheHit,
		TokensUsed:     tokensUsed,
		CostUSD:        costUSD,
		Latency:        time.Since(startTime),
		Timestamp:      time.Now(),
		MessageCount:   conv.MessageCount,
	})
}

// GetConversation returns the caller's conversation
func (h *ChatHandler) GetConversation(c *gin.Context) {
	conv, err := h.conversations.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		h.conversationError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// DeleteConversation deletes the caller's conversation
func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	if err := h.conversations.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		h.conversationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted successfully"})
}

func (h *ChatHandler) conversationError(c *gin.Context, err error) {
	if errors.Is(err, chat.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}
	h.logger.Error("conversation store failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Conversation store unavailable"})
}
