package responder

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/instructions"
	"github.com/boddenberg/iagente-vida-go/internal/quoting"
)

const noQuotesText = "Permíteme generar las cotizaciones para ti..."

// Presenter coaches the agent through questions, objections and closing.
type Presenter struct{}

func (Presenter) CanHandle(t domain.Target) bool {
	return t == domain.TargetPresenter
}

func (Presenter) Handle(ctx context.Context, env *Env, state *domain.DialogueState) (string, error) {
	ctx, span := tracer.Start(ctx, "Presenter.Handle")
	defer span.End()

	if !state.HasQuotes() {
		state.NextResponder = domain.TargetQuote
		return noQuotesText, nil
	}

	state.Stage = domain.StagePresentation
	if state.LastIntent.In(domain.IntentAccepts, domain.IntentRejects) {
		state.Stage = domain.StageFinished
	}

	reply, err := env.generate(ctx, presenterPrompt(env, state), agentSystem)
	if err != nil {
		return presenterFallback(state), nil
	}
	return reply, nil
}

func presenterPrompt(env *Env, state *domain.DialogueState) string {
	var b strings.Builder
	b.WriteString(env.prompt(instructions.Presenter))
	b.WriteString(`

=== CONTEXTO CRÍTICO ===
Estás hablando con un AGENTE DE SEGUROS, NO con el cliente final.
Tu trabajo es ASESORAR AL AGENTE sobre cómo presentar y cerrar la venta.

=== CONTEXTO DE PRESENTACIÓN ===
`)
	fmt.Fprintf(&b, "CLIENTE DEL AGENTE: %s\n", state.Profile.Summary())
	fmt.Fprintf(&b, "COTIZACIONES CALCULADAS:%s\n", quoteLines(state.Quotes))

	if q, ok := state.RecommendedQuote(); ok {
		s := quoting.CompetitorSavings(q)
		fmt.Fprintf(&b, "AHORRO FRENTE A LA COMPETENCIA (opción recomendada): %s/mes, %s/año (%.1f%%)\n",
			domain.FormatEurosCents(s.Monthly), domain.FormatEurosCents(s.Annual), s.Percent)
	}
	fmt.Fprintf(&b, "INTENCIÓN DETECTADA: %s\n", state.LastIntent)
	fmt.Fprintf(&b, "ÚLTIMO MENSAJE DEL AGENTE: %q\n", state.LastUserMessage)
	if instr := state.Context.Instructions; instr != "" {
		fmt.Fprintf(&b, "INSTRUCCIONES DEL ORQUESTADOR:\n%s\n", instr)
	}
	b.WriteString(`
=== TU TAREA ===
- Si pregunta por detalles, dale argumentos para explicar las diferencias.
- Si menciona dudas u objeciones, dale un guion concreto para manejarlas.
- Si el cliente muestra interés, guía al agente hacia el cierre.

IMPORTANTE:
- Usa "te sugiero", "deberías decirle", "explícale que".
- Máximo 6 líneas por respuesta.`)
	return b.String()
}

func presenterFallback(state *domain.DialogueState) string {
	name := clientName(state.Profile)
	q, _ := state.RecommendedQuote()

	switch state.LastIntent {
	case domain.IntentObjection, domain.IntentPriceObjection:
		s := quoting.CompetitorSavings(q)
		return fmt.Sprintf("Te sugiero reconocer la preocupación de %s y recordarle que la opción recomendada cuesta %s/mes, %s menos al año que la competencia. Si aun así le parece alto, puedo preparar una opción más económica.",
			name, domain.FormatEurosCents(q.MonthlyPremium), domain.FormatEurosCents(s.Annual))
	case domain.IntentDoubts, domain.IntentQuestion, domain.IntentPriceQuestion, domain.IntentAmountQuestion:
		return fmt.Sprintf("Te sugiero repasar con %s las %d opciones empezando por la recomendada: %s por %s/mes con una cobertura de %s. Pregúntale qué aspecto le genera más dudas.",
			name, len(state.Quotes), q.PlanName, domain.FormatEurosCents(q.MonthlyPremium), domain.FormatEuros(q.CoverageAmount))
	case domain.IntentAccepts:
		return fmt.Sprintf("¡Excelente! Te sugiero confirmar con %s la opción elegida y pasar a recopilar los datos para la solicitud de la póliza.", name)
	case domain.IntentRejects:
		return fmt.Sprintf("Te sugiero agradecer a %s su tiempo y dejar la puerta abierta para retomar la propuesta más adelante.", name)
	}
	return fmt.Sprintf("Te sugiero presentar las %d opciones a %s destacando los beneficios de cada una. ¿Qué reacción tuvo al ver las cifras?", len(state.Quotes), name)
}
