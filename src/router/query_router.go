package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maecare/airouter/src/metrics"
	"github.com/maecare/airouter/src/models"
)

// ErrNoProviderAvailable is returned when neither the chosen provider nor
// any of its fallbacks has a credential.
var ErrNoProviderAvailable = errors.New("no AI provider available")

type QueryRouter struct {
	classifier  *Classifier
	credentials models.CredentialStore
	flags       models.FlagService
	metrics     *metrics.Exporter
	logger      *slog.Logger
}

// NewQueryRouter wires the classifier, credential store and flag service.
// flags and exporter may be nil.
func NewQueryRouter(credentials models.CredentialStore, flags models.FlagService, exporter *metrics.Exporter, logger *slog.Logger) *QueryRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryRouter{
		classifier:  NewClassifier(DefaultRules, credentials),
		credentials: credentials,
		flags:       flags,
		metrics:     exporter,
		logger:      logger,
	}
}

// Classify runs only the keyword classifier.
func (r *QueryRouter) Classify(message string, historyLength int) *models.RoutingDecision {
	return r.classifier.Classify(message, historyLength)
}

// Route loads the user's flags and routes the message with them. An empty
// userID skips flag gating.
func (r *QueryRouter) Route(ctx context.Context, userID, message string, historyLength int) (*models.RoutingDecision, error) {
	var userFlags *models.UserFeatureFlags
	if userID != "" && r.flags != nil {
		userFlags = r.flags.GetFlags(ctx, userID)
	}
	return r.RouteWithFlags(message, historyLength, userFlags)
}

// RouteWithFlags classifies the message, applies the user's provider flags
// and substitutes a fallback when the chosen provider has no credential.
// Fallback candidates are subject to the same flags. nil userFlags skips
// gating. On ErrNoProviderAvailable the returned decision still describes
// the unavailable choice.
func (r *QueryRouter) RouteWithFlags(message string, historyLength int, userFlags *models.UserFeatureFlags) (*models.RoutingDecision, error) {
	decision := r.classifier.Classify(message, historyLength)

	permitted := func(p models.Provider) bool {
		return userFlags == nil || ProviderPermitted(p, userFlags.Flags)
	}

	if !permitted(decision.Provider) {
		r.logger.Info("provider not enabled for user",
			"user_id", userFlags.UserID,
			"provider", decision.Provider,
			"ab_test_group", userFlags.ABTestGroup)
		r.metrics.RecordFlagOverride(decision.Provider)
		decision.Reason = fmt.Sprintf("feature flag override: %s not enabled", decision.Provider)
		decision.Provider = models.ProviderGPT4
		decision.Available = IsAvailable(r.credentials, decision.Provider)
	}

	if !decision.Available {
		original := decision.Provider
		substitute, ok := ResolveFallbackWhere(r.credentials, original, permitted)
		r.metrics.RecordFallback(original, substitute)
		if !ok {
			r.logger.Warn("no provider available", "provider", original, "query_type", decision.QueryType)
			return decision, ErrNoProviderAvailable
		}
		decision.Provider = substitute
		decision.Available = true
		decision.Reason = fmt.Sprintf("%s (fallback from %s)", decision.Reason, original)
	}

	r.metrics.RecordRouting(decision)
	return decision, nil
}

// ProviderPermitted reports whether flags allow routing to p. claude and
// gpt4 are always permitted.
func ProviderPermitted(p models.Provider, flags models.Flags) bool {
	switch p {
	case models.ProviderGrok:
		return flags.UseGrok
	case models.ProviderGemini:
		return flags.UseGeminiPro
	case models.ProviderPerplexity:
		return flags.SmartRouting
	}
	return true
}
