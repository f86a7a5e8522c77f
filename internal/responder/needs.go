package responder

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/instructions"
	"github.com/boddenberg/iagente-vida-go/internal/quoting"
	"github.com/boddenberg/iagente-vida-go/internal/router"

	"go.uber.org/zap"
)

const agentSystem = "Eres iAgente_Vida, asistente de un agente de seguros de vida. Hablas SIEMPRE al agente, nunca al cliente final."

// WelcomeText opens a conversation.
const WelcomeText = "¡Hola! Soy tu asistente para seguros de vida. Cuéntame sobre tu cliente y te ayudo a crear la propuesta perfecta."

var fieldQuestions = map[domain.Field]string{
	domain.FieldName:          "¿Cómo se llama tu cliente?",
	domain.FieldAge:           "¿Qué edad tiene tu cliente?",
	domain.FieldDependents:    "¿Tiene hijos u otras personas que dependan de sus ingresos?",
	domain.FieldMonthlyIncome: "¿Cuáles son sus ingresos mensuales aproximados?",
	domain.FieldProfession:    "¿A qué se dedica?",
}

// materialFields trigger a new recommendation when they change.
var materialFields = []domain.Field{
	domain.FieldAge, domain.FieldDependents, domain.FieldMonthlyIncome, domain.FieldProfession,
}

// NeedsBasedSelling gathers the client profile and produces the
// recommendation once every essential field is known.
type NeedsBasedSelling struct{}

func (NeedsBasedSelling) CanHandle(t domain.Target) bool {
	return t == domain.TargetNeedsBasedSelling
}

func (NeedsBasedSelling) Handle(ctx context.Context, env *Env, state *domain.DialogueState) (string, error) {
	ctx, span := tracer.Start(ctx, "NeedsBasedSelling.Handle")
	defer span.End()

	before := state.Profile
	if env.Extractor != nil {
		if updated, changed := env.Extractor.Extract(ctx, state.Profile, state.LastUserMessage, &state.Context); changed {
			state.Profile = updated
		}
	}

	comp := router.Score(state.Profile)
	state.Completeness = comp.Percent

	if comp.Essentials() && (!state.HasRecommendation() || materialChange(before, state.Profile)) {
		rec, err := env.Engine.Recommend(state.Profile)
		if err != nil {
			env.Logger.Warn("recommendation failed", zap.Error(err))
		} else {
			if state.HasQuotes() {
				state.PreviousQuotes = state.Quotes
				state.Quotes = nil
			}
			state.Recommendation = &rec
			env.Logger.Info("recommendation generated",
				zap.String("user_id", state.UserID),
				zap.String("tier", string(rec.Tier)),
				zap.Float64("amount", rec.Amount),
			)
		}
	}

	if state.HasRecommendation() {
		state.Stage = domain.StageQuotation
	} else {
		state.Stage = domain.StageNeedsAnalysis
	}

	sc := &state.Context
	if sc.Waiting() && state.Profile.Has(sc.PendingField) {
		sc.Reset()
	}
	if len(comp.MissingEssential) > 0 {
		field := comp.MissingEssential[0]
		question := fieldQuestions[field]
		if sc.PendingField == field {
			sc.LastQuestion = question
		} else {
			sc.Await(field, question)
		}
	}

	reply, err := env.generate(ctx, needsPrompt(env, state), agentSystem)
	if err != nil {
		return needsFallback(state), nil
	}
	return reply, nil
}

func materialChange(before, after domain.ClientProfile) bool {
	changed := domain.DiffProfiles(before, after)
	for _, f := range changed {
		for _, m := range materialFields {
			if f == m {
				return true
			}
		}
	}
	return false
}

func needsPrompt(env *Env, state *domain.DialogueState) string {
	var b strings.Builder
	b.WriteString(env.prompt(instructions.NeedsBased))
	b.WriteString("\n\n=== CONTEXTO ACTUAL ===\n")
	fmt.Fprintf(&b, "DATOS DEL CLIENTE HASTA AHORA:\n%s\n\n", state.Profile.Summary())
	fmt.Fprintf(&b, "ÚLTIMO MENSAJE DEL AGENTE:\n%q\n\n", state.LastUserMessage)
	fmt.Fprintf(&b, "ETAPA ACTUAL: %s\n\n", state.Stage)
	fmt.Fprintf(&b, "HISTORIAL RECIENTE:\n%s\n", recentHistory(state, 3))

	if rec := state.Recommendation; rec != nil {
		fmt.Fprintf(&b, "\nRECOMENDACIÓN CALCULADA: protección %s (%s) de %s, %d años de ingresos. %s\n",
			rec.Tier, rec.Coverage, domain.FormatEuros(rec.Amount), rec.Years, rec.Rationale)
	}
	if q := state.Context.LastQuestion; q != "" {
		fmt.Fprintf(&b, "\nDATO PENDIENTE: %s\n", q)
	}
	if instr := state.Context.Instructions; instr != "" {
		fmt.Fprintf(&b, "\nINSTRUCCIONES DEL ORQUESTADOR:\n%s\n", instr)
	}

	b.WriteString(`
=== TU TAREA ===
1. Si es el primer contacto, saluda y genera confianza.
2. Si faltan datos, pregunta uno solo de forma conversacional.
3. Si hay una recomendación calculada, explícasela al agente con las cifras exactas.
4. Si hay objeciones, manéjalas con empatía.

IMPORTANTE:
- Habla SIEMPRE al agente, nunca al cliente final.
- Máximo 4-5 líneas por respuesta.
- No inventes cifras distintas de las calculadas.`)
	return b.String()
}

func needsFallback(state *domain.DialogueState) string {
	p := state.Profile
	msg := strings.ToLower(state.LastUserMessage)

	switch {
	case strings.Contains(msg, "hola") && p.Name == "":
		return WelcomeText
	case state.LastIntent == domain.IntentAmountQuestion || containsAny(msg, "seguro", "precio", "cuánto", "cuanto"):
		return pricingFallback(p)
	case p.Name == "":
		return WelcomeText
	case p.EssentialCount() < 3:
		text := fmt.Sprintf("Perfecto, ya tengo información de %s. ¿Puedes contarme un poco más sobre su situación para personalizar mejor la recomendación?", p.Name)
		if q := state.Context.LastQuestion; q != "" {
			text += " " + q
		}
		return text
	case state.Recommendation != nil:
		rec := state.Recommendation
		return fmt.Sprintf("Excelente, con la información de %s te recomiendo una protección %s de %s (%d años de ingresos). ¿Quieres que prepare las cotizaciones?",
			p.Name, tierLabel(rec.Tier), domain.FormatEuros(rec.Amount), rec.Years)
	}
	return fmt.Sprintf("Excelente, con la información de %s puedo ayudarte. ¿Quieres que analice qué tipo de protección sería ideal?", p.Name)
}

func pricingFallback(p domain.ClientProfile) string {
	if p.MonthlyIncome == nil {
		return "Para calcular el capital y el precio del seguro necesito conocer los ingresos mensuales de tu cliente. ¿Cuánto gana aproximadamente?"
	}
	years := quoting.YearsOfIncome(p)
	capital := p.AnnualIncome() * float64(years)
	return fmt.Sprintf("Para %s recomendaría un capital de %s, equivalente a %d años de ingresos. ¿Quieres que prepare las cotizaciones con ese capital?",
		clientName(p), domain.FormatEuros(capital), years)
}

func tierLabel(t domain.CoverageTier) string {
	switch t {
	case domain.TierComplete:
		return "completa"
	case domain.TierPremium:
		return "premium"
	}
	return "básica"
}
