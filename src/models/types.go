package models

import (
	"fmt"
	"time"
)

// Provider identifies one of the supported LLM backends.
type Provider string

const (
	ProviderClaude     Provider = "claude"
	ProviderGPT4       Provider = "gpt4"
	ProviderGemini     Provider = "gemini"
	ProviderGrok       Provider = "grok"
	ProviderPerplexity Provider = "perplexity"
)

// AllProviders lists every provider in a stable order.
var AllProviders = []Provider{
	ProviderClaude,
	ProviderGPT4,
	ProviderGemini,
	ProviderGrok,
	ProviderPerplexity,
}

func (p Provider) Valid() bool {
	switch p {
	case ProviderClaude, ProviderGPT4, ProviderGemini, ProviderGrok, ProviderPerplexity:
		return true
	}
	return false
}

// ParseProvider rejects names outside the closed provider set.
func ParseProvider(s string) (Provider, error) {
	p := Provider(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown provider %q", s)
	}
	return p, nil
}

// QueryType tags the intent category of an inbound message.
type QueryType string

const (
	QueryEmpathetic QueryType = "empathetic"
	QueryGeneral    QueryType = "general"
	QueryContextual QueryType = "contextual"
	QueryTrends     QueryType = "trends"
	QueryResearch   QueryType = "research"
)

type RoutingDecision struct {
	Provider  Provider  `json:"provider"`
	QueryType QueryType `json:"query_type"`
	Reason    string    `json:"reason"`
	Available bool      `json:"available"`
}

type CachedResponse struct {
	ID         string    `json:"id"`
	QueryHash  string    `json:"query_hash"`
	Provider   Provider  `json:"provider"`
	Query      string    `json:"query"`
	Response   string    `json:"response"`
	TokensUsed *int      `json:"tokens_used,omitempty"`
	CostUSD    *float64  `json:"cost_usd,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ProviderCacheStats is the per-provider slice of CacheStats.
type ProviderCacheStats struct {
	Entries int64   `json:"entries"`
	SizeMB  float64 `json:"size_mb"`
}

type CacheStats struct {
	TotalEntries int64                           `json:"total_entries"`
	TotalSizeMB  float64                         `json:"total_size_mb"`
	ByProvider   map[Provider]ProviderCacheStats `json:"by_provider"`
}

// ProviderUsage is a raw aggregate row read from the cache table.
type ProviderUsage struct {
	Provider Provider
	Entries  int64
	Bytes    int64
}

// Chat types exchanged with provider clients.

type ChatMessage struct {
	Role      string    `json:"role"` // "system", "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatOptions struct {
	MaxTokens   int
	Temperature float32
}

type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

type ChatResult struct {
	Text  string
	Usage *TokenUsage
}

// Conversation is the per-user chat history kept between requests.
type Conversation struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	Messages        []ChatMessage `json:"messages"`
	MessageCount    int           `json:"message_count"`
	CreatedAt       time.Time     `json:"created_at"`
	LastInteraction time.Time     `json:"last_interaction"`
}

type ChatRequest struct {
	ConversationID string  `json:"conversation_id,omitempty"`
	Message        string  `json:"message" binding:"required"`
	MaxTokens      int     `json:"max_tokens,omitempty"`
	Temperature    float32 `json:"temperature,omitempty"`
}

type ChatResponse struct {
	ConversationID string        `json:"conversation_id"`
	Response       string        `json:"response"`
	Provider       Provider      `json:"provider"`
	QueryType      QueryType     `json:"query_type"`
	RoutingReason  string        `json:"routing_reason"`
	Available      bool          `json:"available"`
	CacheHit       bool          `json:"cache_hit"`
	TokensUsed     int           `json:"tokens_used"`
	CostUSD        *float64      `json:"cost_usd,omitempty"`
	Latency        time.Duration `json:"latency"`
	Timestamp      time.Time     `json:"timestamp"`
	MessageCount   int           `json:"message_count"`
}

type RouteRequest struct {
	Message       string `json:"message" binding:"required"`
	HistoryLength int    `json:"history_length,omitempty"`
}
