package router

import "github.com/maecare/airouter/src/models"

// fallbackChains is the static preference table; each provider has at most
// two candidates and never lists itself.
var fallbackChains = map[models.Provider][]models.Provider{
	models.ProviderClaude:     {models.ProviderGPT4, models.ProviderGemini},
	models.ProviderGPT4:       {models.ProviderClaude, models.ProviderGemini},
	models.ProviderGemini:     {models.ProviderGPT4, models.ProviderClaude},
	models.ProviderGrok:       {models.ProviderPerplexity, models.ProviderGPT4},
	models.ProviderPerplexity: {models.ProviderGPT4, models.ProviderClaude},
}

// FallbackCandidates returns a copy of the provider's fallback list.
func FallbackCandidates(p models.Provider) []models.Provider {
	return append([]models.Provider(nil), fallbackChains[p]...)
}

// ResolveFallback returns the first available candidate for original, or
// false when none is available. It does not cascade past the table.
func ResolveFallback(credentials models.CredentialStore, original models.Provider) (models.Provider, bool) {
	return ResolveFallbackWhere(credentials, original, nil)
}

// ResolveFallbackWhere is ResolveFallback restricted to candidates accepted
// by permit. A nil permit accepts every candidate.
func ResolveFallbackWhere(credentials models.CredentialStore, original models.Provider, permit func(models.Provider) bool) (models.Provider, bool) {
	for _, candidate := range fallbackChains[original] {
		if permit != nil && !permit(candidate) {
			continue
		}
		if IsAvailable(credentials, candidate) {
			return candidate, true
		}
	}
	return "", false
}
