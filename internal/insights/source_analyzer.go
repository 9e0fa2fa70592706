package insights

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agendadigital/agenda-platform/internal/conversation"
	"github.com/agendadigital/agenda-platform/pkg/logging"
)

const sourceSystemPrompt = `Voce e um especialista em marketing e analise de dados para clinicas medicas.

OBJETIVO:
Analisar a conversa e identificar COMO O PACIENTE CONHECEU A CLINICA (Origem/Canal de Aquisicao).

CATEGORIAS POSSIVEIS:
- Instagram (Anuncio ou perfil)
- Facebook (Anuncio ou perfil)
- Google (Pesquisa, Site, Maps)
- Indicacao (Amigos, familiares, outro medico)
- TikTok
- Passante (Passou na frente)
- Ja e Paciente (Retorno, ja tem cadastro antigo)
- Indefinido (Nao foi mencionado na conversa)

FORMATO DE RESPOSTA OBRIGATORIO (JSON):
{"source": "Nome da Categoria", "confidence": "alta" | "media" | "baixa", "reason": "Breve justificativa"}

IMPORTANTE:
- Se o paciente nao mencionar nada sobre como chegou, responda "Indefinido".
- Responda APENAS o JSON, sem markdown (backticks).`

// SourceAnalysis is the inferred acquisition channel of one patient.
type SourceAnalysis struct {
	Source     string `json:"source"`
	Confidence string `json:"confidence"`
	Reason     string `json:"reason"`
}

// SourceAnalyzer infers the marketing channel from conversation history.
type SourceAnalyzer struct {
	llm    LLMClient
	logger *logging.Logger
}

func NewSourceAnalyzer(llm LLMClient, logger *logging.Logger) *SourceAnalyzer {
	if llm == nil {
		panic("insights: llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SourceAnalyzer{llm: llm, logger: logger}
}

// AnalyzeSource classifies one phone's conversation. Long histories are
// trimmed to the first 15 and last 10 turns: the patient usually says where
// they came from right at the start. An unparseable model answer returns
// (nil, nil).
func (a *SourceAnalyzer) AnalyzeSource(ctx context.Context, history []conversation.Message) (*SourceAnalysis, error) {
	if len(history) == 0 {
		return nil, nil
	}

	selected := history
	if len(history) > 25 {
		selected = make([]conversation.Message, 0, 25)
		selected = append(selected, history[:15]...)
		selected = append(selected, history[len(history)-10:]...)
	}

	messages := make([]ChatMessage, 0, len(selected))
	for _, m := range selected {
		role := ChatRoleUser
		if m.Role == conversation.RoleAssistant || m.Role == conversation.RoleAdmin {
			role = ChatRoleAssistant
		}
		messages = append(messages, ChatMessage{Role: role, Content: m.Content})
	}

	resp, err := a.llm.Complete(ctx, LLMRequest{
		System:      []string{sourceSystemPrompt},
		Messages:    messages,
		MaxTokens:   256,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("insights: analyze patient source: %w", err)
	}

	var out SourceAnalysis
	if err := json.Unmarshal([]byte(stripFences(resp.Text)), &out); err != nil {
		a.logger.Warn("source analyzer returned unparseable response", "response", resp.Text, "error", err)
		return nil, nil
	}
	return &out, nil
}
