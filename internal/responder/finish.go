package responder

import (
	"context"
	"fmt"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
)

// Finish closes the conversation.
type Finish struct{}

func (Finish) CanHandle(t domain.Target) bool {
	return t == domain.TargetFinish
}

func (Finish) Handle(_ context.Context, _ *Env, state *domain.DialogueState) (string, error) {
	state.Stage = domain.StageFinished
	return ClosingText(state), nil
}

// ClosingText is the thank-you and next-steps message.
func ClosingText(state *domain.DialogueState) string {
	name := clientName(state.Profile)
	if q, ok := state.RecommendedQuote(); ok && state.LastIntent != domain.IntentRejects {
		return fmt.Sprintf("¡Gracias por usar iAgente_Vida! Próximos pasos: envía a %s la propuesta %s (%s/mes, cobertura de %s) y agenda la firma. Escribe 'reiniciar' para empezar con otro cliente.",
			name, q.PlanName, domain.FormatEurosCents(q.MonthlyPremium), domain.FormatEuros(q.CoverageAmount))
	}
	return fmt.Sprintf("¡Gracias por usar iAgente_Vida! Dejamos la conversación sobre %s aquí. Escribe 'reiniciar' cuando quieras empezar con otro cliente.", name)
}
