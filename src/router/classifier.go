package router

import (
	"strings"

	"github.com/maecare/airouter/src/models"
)

// contextualHistoryThreshold is the number of prior turns above which
// contextual keywords route to the long-context provider.
const contextualHistoryThreshold = 10

// Rule is one row of the classification table. Rules are evaluated in
// order and the first match wins.
type Rule struct {
	QueryType models.QueryType
	Provider  models.Provider
	Reason    string
	Keywords  []string
	// MinHistory, when positive, additionally requires historyLength > MinHistory.
	MinHistory int
}

// Matches reports whether the lowercased message satisfies the rule.
func (r Rule) Matches(lower string, historyLength int) bool {
	if r.MinHistory > 0 && historyLength <= r.MinHistory {
		return false
	}
	for _, kw := range r.Keywords {
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

var empatheticKeywords = []string{
	"ansiosa", "ansiedade", "triste", "tristeza", "sozinha",
	"cansada", "exausta", "chorando", "desesperada", "não aguento mais",
	"socorro", "medo", "culpa", "culpada", "deprimida",
	"depressão", "angústia", "sobrecarregada", "insegura", "frustrada",
	"estressada", "preocupada", "nervosa", "perdida", "me sinto",
}

var researchKeywords = []string{
	"pesquisa", "estudo", "oms", "ciência", "científic",
	"evidência", "artigo", "estatística", "comprovad", "segundo especialistas",
	"sociedade brasileira de pediatria", "ministério da saúde", "recomendação oficial", "diretriz", "referência",
}

var trendKeywords = []string{
	"tendência", "tendências", "viral", "twitter", "tiktok",
	"instagram", "redes sociais", "meme", "hashtag", "trend",
	"moda", "popular", "influencer", "bombando", "em alta",
}

var contextualKeywords = []string{
	"como eu disse", "lembra", "anteriormente", "antes", "conversamos",
	"você mencionou", "continuando", "sobre aquilo", "de novo", "mais uma vez",
}

// DefaultRules is the ordered classification table.
var DefaultRules = []Rule{
	{
		QueryType: models.QueryEmpathetic,
		Provider:  models.ProviderClaude,
		Reason:    "Emotional support query routed to the most empathetic model",
		Keywords:  empatheticKeywords,
	},
	{
		QueryType: models.QueryResearch,
		Provider:  models.ProviderPerplexity,
		Reason:    "Research query routed to the search-grounded model",
		Keywords:  researchKeywords,
	},
	{
		QueryType: models.QueryTrends,
		Provider:  models.ProviderGrok,
		Reason:    "Trend query routed to the real-time social model",
		Keywords:  trendKeywords,
	},
	{
		QueryType:  models.QueryContextual,
		Provider:   models.ProviderGemini,
		Reason:     "Long conversation routed to the long-context model",
		Keywords:   contextualKeywords,
		MinHistory: contextualHistoryThreshold,
	},
}

const defaultReason = "General query routed to the default model"

// Classifier maps a message to a routing decision using an ordered rule table.
type Classifier struct {
	rules       []Rule
	credentials models.CredentialStore
}

func NewClassifier(rules []Rule, credentials models.CredentialStore) *Classifier {
	return &Classifier{
		rules:       rules,
		credentials: credentials,
	}
}

// Classify is pure apart from the credential presence check used to fill Available.
func (c *Classifier) Classify(message string, historyLength int) *models.RoutingDecision {
	lower := strings.ToLower(message)

	for _, rule := range c.rules {
		if rule.Matches(lower, historyLength) {
			return &models.RoutingDecision{
				Provider:  rule.Provider,
				QueryType: rule.QueryType,
				Reason:    rule.Reason,
				Available: IsAvailable(c.credentials, rule.Provider),
			}
		}
	}

	return &models.RoutingDecision{
		Provider:  models.ProviderGPT4,
		QueryType: models.QueryGeneral,
		Reason:    defaultReason,
		Available: IsAvailable(c.credentials, models.ProviderGPT4),
	}
}

// IsAvailable reports whether a credential is configured for the provider.
func IsAvailable(credentials models.CredentialStore, p models.Provider) bool {
	if credentials == nil {
		return false
	}
	return credentials.HasCredential(p)
}
