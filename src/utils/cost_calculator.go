package utils

import (
	"strings"

	"github.com/maecare/airouter/src/models"
)

// Pricing per 1M tokens (as of 2025)
type tokenPrice struct {
	InputPer1M  float64
	OutputPer1M float64
}

var providerPricing = map[models.Provider]tokenPrice{
	models.ProviderClaude:     {InputPer1M: 3.00, OutputPer1M: 15.00}, // Claude 3.5 Sonnet
	models.ProviderGPT4:       {InputPer1M: 2.50, OutputPer1M: 10.00}, // GPT-4o
	models.ProviderGemini:     {InputPer1M: 1.25, OutputPer1M: 5.00},  // Gemini 1.5 Pro
	models.ProviderGrok:       {InputPer1M: 5.00, OutputPer1M: 15.00}, // grok-beta
	models.ProviderPerplexity: {InputPer1M: 1.00, OutputPer1M: 1.00},  // sonar large online
}

// EstimateTokenCount estimates token count from text (rough approximation)
// More accurate: ~1 token per 4 characters for English
func EstimateTokenCount(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}

	// Count runes, accented Portuguese text is multi-byte
	tokenCount := len([]rune(text)) / 4

	// Add some buffer for special tokens
	if tokenCount < 10 {
		tokenCount = 10
	}

	return tokenCount
}

// CalculateCost returns the USD cost of a call. Unknown providers cost zero.
func CalculateCost(provider models.Provider, inputTokens, outputTokens int) float64 {
	price, ok := providerPricing[provider]
	if !ok {
		return 0
	}
	inputCost := float64(inputTokens) * price.InputPer1M / 1000000
	outputCost := float64(outputTokens) * price.OutputPer1M / 1000000
	return inputCost + outputCost
}

// UsageOrEstimate returns the provider-reported usage, or an estimate from
// the prompt and reply text when the backend reported none.
func UsageOrEstimate(usage *models.TokenUsage, messages []models.ChatMessage, reply string) models.TokenUsage {
	if usage != nil {
		return *usage
	}

	input := 0
	for _, m := range messages {
		input += EstimateTokenCount(m.Content)
	}
	return models.TokenUsage{
		InputTokens:  input,
		OutputTokens: EstimateTokenCount(reply),
	}
}
