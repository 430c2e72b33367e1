package inference

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/maecare/airouter/src/config"
	"github.com/maecare/airouter/src/models"
)

// OpenAIClient talks to OpenAI and to OpenAI-compatible APIs (xAI, Perplexity).
type OpenAIClient struct {
	name      models.Provider
	client    *openai.Client
	model     string
	maxTokens int
	limiter   *limiter
}

func NewOpenAIClient(name models.Provider, apiKey string, cfg *config.ProviderConfig) *OpenAIClient {
	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		name:      name,
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		limiter:   newLimiter(cfg.MaxConcurrent, cfg.Timeout),
	}
}

func (c *OpenAIClient) Chat(ctx context.Context, messages []models.ChatMessage, opts models.ChatOptions) (*models.ChatResult, error) {
	callCtx, release, err := c.limiter.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		MaxTokens:   resolveMaxTokens(opts.MaxTokens, c.maxTokens),
		Temperature: resolveTemperature(opts.Temperature),
	}

	resp, err := c.client.CreateChatCompletion(callCtx, req)
	if err != nil {
		return nil, fmt.Errorf("%s chat completion failed: %w", c.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New(string(c.name) + " returned no choices")
	}

	result := &models.ChatResult{Text: resp.Choices[0].Message.Content}
	if resp.Usage.TotalTokens > 0 {
		result.Usage = &models.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
	}

	return result, nil
}

func toOpenAIMessages(messages []models.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case "system":
			role = openai.ChatMessageRoleSystem
		case "assistant":
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
