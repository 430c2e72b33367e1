package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/maecare/airouter/src/config"
	"github.com/maecare/airouter/src/models"
)

// ErrProviderNotConfigured is returned for a provider with no client.
var ErrProviderNotConfigured = errors.New("provider not configured")

// Registry holds one client per configured provider. It is built once at
// startup and passed to handlers.
type Registry struct {
	mu      sync.RWMutex
	clients map[models.Provider]models.ChatProvider
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[models.Provider]models.ChatProvider)}
}

// NewRegistryFromConfig creates clients for every provider that has a
// credential. Providers without one are skipped.
func NewRegistryFromConfig(ctx context.Context, cfg *config.ProvidersConfig, credentials models.CredentialStore, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := NewRegistry()

	for _, p := range models.AllProviders {
		apiKey, ok := credentials.GetCredential(p)
		if !ok {
			logger.Info("provider disabled, no credential", "provider", p)
			continue
		}

		client, err := newClient(ctx, p, apiKey, cfg.For(p))
		if err != nil {
			return nil, err
		}
		r.Register(p, client)
		logger.Info("provider ready", "provider", p, "model", cfg.For(p).Model)
	}

	return r, nil
}

func newClient(ctx context.Context, p models.Provider, apiKey string, cfg *config.ProviderConfig) (models.ChatProvider, error) {
	switch p {
	case models.ProviderClaude:
		return NewAnthropicClient(apiKey, cfg)
	case models.ProviderGemini:
		return NewGoogleAIClient(ctx, apiKey, cfg)
	case models.ProviderGPT4, models.ProviderGrok, models.ProviderPerplexity:
		return NewOpenAIClient(p, apiKey, cfg), nil
	}
	return nil, fmt.Errorf("unknown provider %q", p)
}

func (r *Registry) Register(p models.Provider, client models.ChatProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[p] = client
}

func (r *Registry) Get(p models.Provider) (models.ChatProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, p)
	}
	return client, nil
}

// Providers lists registered providers in the canonical order.
func (r *Registry) Providers() []models.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Provider
	for _, p := range models.AllProviders {
		if _, ok := r.clients[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
