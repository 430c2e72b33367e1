package inference

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/maecare/airouter/src/config"
	"github.com/maecare/airouter/src/models"
)

// LangChainClient wraps a langchaingo model for the native Anthropic and
// Google AI APIs.
type LangChainClient struct {
	name      models.Provider
	llm       llms.Model
	maxTokens int
	limiter   *limiter
	// foldSystem merges system prompts into the first user turn for
	// backends without a system role.
	foldSystem bool
}

func NewAnthropicClient(apiKey string, cfg *config.ProviderConfig) (*LangChainClient, error) {
	opts := []anthropic.Option{
		anthropic.WithToken(apiKey),
		anthropic.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}

	llm, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Anthropic client: %w", err)
	}

	return newLangChainClient(models.ProviderClaude, llm, cfg, false), nil
}

func NewGoogleAIClient(ctx context.Context, apiKey string, cfg *config.ProviderConfig) (*LangChainClient, error) {
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(cfg.Model),
		googleai.WithDefaultMaxTokens(cfg.MaxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google AI client: %w", err)
	}

	return newLangChainClient(models.ProviderGemini, llm, cfg, true), nil
}

func newLangChainClient(name models.Provider, llm llms.Model, cfg *config.ProviderConfig, foldSystem bool) *LangChainClient {
	return &LangChainClient{
		name:       name,
		llm:        llm,
		maxTokens:  cfg.MaxTokens,
		limiter:    newLimiter(cfg.MaxConcurrent, cfg.Timeout),
		foldSystem: foldSystem,
	}
}

func (c *LangChainClient) Chat(ctx context.Context, messages []models.ChatMessage, opts models.ChatOptions) (*models.ChatResult, error) {
	callCtx, release, err := c.limiter.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if c.foldSystem {
		messages = foldSystemPrompt(messages)
	}

	resp, err := c.llm.GenerateContent(callCtx, toLangChainMessages(messages),
		llms.WithMaxTokens(resolveMaxTokens(opts.MaxTokens, c.maxTokens)),
		llms.WithTemperature(float64(resolveTemperature(opts.Temperature))),
	)
	if err != nil {
		return nil, fmt.Errorf("%s generation failed: %w", c.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", c.name)
	}

	choice := resp.Choices[0]
	return &models.ChatResult{
		Text:  choice.Content,
		Usage: usageFromGenerationInfo(choice.GenerationInfo),
	}, nil
}

func toLangChainMessages(messages []models.ChatMessage) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case "system":
			role = llms.ChatMessageTypeSystem
		case "assistant":
			role = llms.ChatMessageTypeAI
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}

// foldSystemPrompt prepends system content to the first user message.
func foldSystemPrompt(messages []models.ChatMessage) []models.ChatMessage {
	var system string
	rest := make([]models.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			system += m.Content + "\n\n"
			continue
		}
		rest = append(rest, m)
	}
	if system == "" {
		return messages
	}
	for i := range rest {
		if rest[i].Role == "user" {
			rest[i].Content = system + rest[i].Content
			return rest
		}
	}
	return append([]models.ChatMessage{{Role: "user", Content: system}}, rest...)
}

// usageFromGenerationInfo reads token counts; key names differ per backend.
func usageFromGenerationInfo(info map[string]any) *models.TokenUsage {
	input, okIn := firstInt(info, "InputTokens", "input_tokens", "PromptTokens")
	output, okOut := firstInt(info, "OutputTokens", "output_tokens", "CompletionTokens")
	if !okIn && !okOut {
		return nil
	}
	return &models.TokenUsage{InputTokens: input, OutputTokens: output}
}

func firstInt(info map[string]any, keys ...string) (int, bool) {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return v, true
		case int32:
			return int(v), true
		case int64:
			return int(v), true
		case float64:
			return int(v), true
		}
	}
	return 0, false
}
