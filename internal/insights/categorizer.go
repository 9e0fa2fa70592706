package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agendadigital/agenda-platform/internal/scheduling"
	"github.com/agendadigital/agenda-platform/pkg/logging"
)

const categorizerSystemPrompt = `Voce e um assistente medico especializado em triagem de pacientes.

Dada a observacao sobre um paciente, determine a categoria mais adequada
(ex: "Consulta de rotina", "Urgente", "Retorno") e justifique brevemente.

FORMATO DE RESPOSTA OBRIGATORIO (JSON):
{"category": "Nome da Categoria", "reason": "Breve justificativa"}

Responda APENAS o JSON, sem markdown (backticks).`

// Categorizer labels booking observations for triage.
type Categorizer struct {
	llm    LLMClient
	logger *logging.Logger
}

func NewCategorizer(llm LLMClient, logger *logging.Logger) *Categorizer {
	if llm == nil {
		panic("insights: llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Categorizer{llm: llm, logger: logger}
}

// Categorize labels one observation text. Empty observations and answers the
// model could not categorize both yield (nil, nil): the booking proceeds
// without a label rather than failing.
func (c *Categorizer) Categorize(ctx context.Context, observations string) (*scheduling.Categorization, error) {
	if strings.TrimSpace(observations) == "" {
		return nil, nil
	}

	resp, err := c.llm.Complete(ctx, LLMRequest{
		System:      []string{categorizerSystemPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: observations}},
		MaxTokens:   256,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("insights: categorize observations: %w", err)
	}

	var out scheduling.Categorization
	if err := json.Unmarshal([]byte(stripFences(resp.Text)), &out); err != nil {
		c.logger.Warn("categorizer returned unparseable response", "response", resp.Text, "error", err)
		return nil, nil
	}
	if isUnusableCategory(out.Category) {
		return nil, nil
	}
	return &out, nil
}

func isUnusableCategory(category string) bool {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "", "desconhecido", "unknown", "n/a", "indefinido":
		return true
	}
	return false
}

// stripFences removes markdown code fences models sometimes wrap around JSON.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
