package inference

import "github.com/maecare/airouter/src/models"

const basePrompt = "Você é uma assistente de apoio materno. Responda em português do Brasil, " +
	"com acolhimento e clareza. Você não substitui atendimento médico: em sinais de risco " +
	"para a mãe ou o bebê, oriente a procurar um profissional de saúde imediatamente."

var queryPrompts = map[models.QueryType]string{
	models.QueryEmpathetic: "A mãe está emocionalmente vulnerável. Valide os sentimentos dela antes de " +
		"qualquer orientação, evite julgamentos e, se houver sinais de depressão pós-parto, " +
		"sugira com delicadeza buscar apoio profissional (CVV: 188).",
	models.QueryResearch: "Baseie a resposta em evidências científicas e recomendações oficiais " +
		"(OMS, Ministério da Saúde, Sociedade Brasileira de Pediatria) e cite as fontes.",
	models.QueryTrends: "Resuma o que está em discussão nas redes sociais sobre maternidade, " +
		"separando tendências de recomendações seguras.",
	models.QueryContextual: "Leve em conta todo o histórico da conversa e retome o que já foi dito.",
	models.QueryGeneral:    "Dê respostas práticas e objetivas.",
}

// SystemPrompt returns the system instruction for a query type.
func SystemPrompt(qt models.QueryType) string {
	if extra, ok := queryPrompts[qt]; ok {
		return basePrompt + "\n\n" + extra
	}
	return basePrompt
}

// BuildMessages assembles system prompt, prior history and the new user message.
func BuildMessages(qt models.QueryType, history []models.ChatMessage, message string) []models.ChatMessage {
	messages := make([]models.ChatMessage, 0, len(history)+2)
	messages = append(messages, models.ChatMessage{Role: "system", Content: SystemPrompt(qt)})
	for _, m := range history {
		if m.Role == "user" || m.Role == "assistant" {
			messages = append(messages, m)
		}
	}
	return append(messages, models.ChatMessage{Role: "user", Content: message})
}
