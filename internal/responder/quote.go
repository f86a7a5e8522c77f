package responder

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/extractor"
	"github.com/boddenberg/iagente-vida-go/internal/instructions"
	"github.com/boddenberg/iagente-vida-go/internal/quoting"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var budgetRe = regexp.MustCompile(`(\d[\d.,]*\s*(?:k\b|mil\b)?)\s*(?:€|euros?)\s*al\s*mes`)

var (
	cheaperInstructionWords = []string{"muy caro", "ajusta", "económic", "economic", "más barato", "mas barato", "reducir", "baja", "menos"}
	cheaperMessageWords     = []string{"baja", "reducir", "ajustar", "euros al mes", "€ al mes"}
)

// Quote prices the recommendation and presents the options.
type Quote struct{}

func (Quote) CanHandle(t domain.Target) bool {
	return t == domain.TargetQuote
}

func (Quote) Handle(ctx context.Context, env *Env, state *domain.DialogueState) (string, error) {
	ctx, span := tracer.Start(ctx, "Quote.Handle")
	defer span.End()

	p := state.Profile
	name := clientName(p)

	if state.Recommendation == nil {
		rec, err := env.Engine.Recommend(p)
		if err != nil {
			var ve *domain.ErrValidation
			if errors.As(err, &ve) {
				return fmt.Sprintf("Antes de cotizar necesito completar los datos de %s: falta %s.", name, fieldLabel(ve.Field)), nil
			}
			return "", err
		}
		state.Recommendation = &rec
	}

	opts := quoting.Options{
		AdjustCheaper: AdjustCheaper(state.Context.Instructions, state.LastUserMessage),
		TargetBudget:  ParseBudget(state.LastUserMessage),
	}
	span.SetAttributes(attribute.Bool("adjust_cheaper", opts.AdjustCheaper))

	quotes, err := env.Engine.Quote(p, *state.Recommendation, opts)
	if err != nil {
		state.Stage = domain.StageQuotation

		var unavailable *domain.ErrQuoteUnavailable
		if errors.As(err, &unavailable) {
			env.Logger.Info("quote unavailable", zap.String("reason", unavailable.Reason))
			return unavailable.Advice, nil
		}
		env.Logger.Error("quoting failed", zap.String("user_id", state.UserID), zap.Error(err))
		return fmt.Sprintf("Disculpa %s, estoy teniendo un problema técnico generando las cotizaciones. ¿Puedes intentarlo de nuevo en unos minutos?", name), nil
	}

	if state.HasQuotes() {
		state.PreviousQuotes = state.Quotes
	}
	state.Quotes = quotes
	state.Stage = domain.StageQuotation
	if env.Metrics != nil {
		env.Metrics.AddQuotes(len(quotes))
	}
	env.Logger.Info("quotes generated",
		zap.String("user_id", state.UserID),
		zap.Int("count", len(quotes)),
		zap.Bool("adjust_cheaper", opts.AdjustCheaper),
	)

	reply, err := env.generate(ctx, quotePrompt(env, state, opts.AdjustCheaper), agentSystem)
	if err != nil {
		return QuoteList(p, quotes), nil
	}
	return reply, nil
}

// AdjustCheaper reports whether the router handoff or the message asks for
// a cheaper offer.
func AdjustCheaper(instr, msg string) bool {
	return containsAny(strings.ToLower(instr), cheaperInstructionWords...) ||
		containsAny(strings.ToLower(msg), cheaperMessageWords...)
}

// ParseBudget reads "N euros al mes" or "N€ al mes" from a message.
func ParseBudget(msg string) *float64 {
	m := budgetRe.FindStringSubmatch(strings.ToLower(msg))
	if m == nil {
		return nil
	}
	v, ok := extractor.ParseAmount(m[1])
	if !ok || v <= 0 {
		return nil
	}
	return &v
}

// QuoteList is the plain presentation used when the LLM is unavailable.
func QuoteList(p domain.ClientProfile, quotes []domain.Quote) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Perfecto, he calculado %d opciones personalizadas para %s:\n\n", len(quotes), clientName(p))
	for i, q := range quotes {
		star := ""
		if q.Recommended {
			star = " ⭐ RECOMENDADA"
		}
		fmt.Fprintf(&b, "Opción %d: %s%s\n", i+1, q.PlanName, star)
		fmt.Fprintf(&b, "%s/mes - Cobertura: %s\n\n", domain.FormatEurosCents(q.MonthlyPremium), domain.FormatEuros(q.CoverageAmount))
	}
	b.WriteString("¿Cuál de estas opciones te parece más interesante? ¿Tienes alguna pregunta?")
	return b.String()
}

func quotePrompt(env *Env, state *domain.DialogueState, cheaper bool) string {
	p := state.Profile
	recommended := 1
	for i, q := range state.Quotes {
		if q.Recommended {
			recommended = i + 1
			break
		}
	}

	budget := "No especificado"
	if p.SavingsCapacity != nil {
		budget = domain.FormatEuros(*p.SavingsCapacity) + "/mes"
	}

	var b strings.Builder
	b.WriteString(env.prompt(instructions.Quote))
	b.WriteString("\n\n=== CONTEXTO DE PRESENTACIÓN ===\n")
	fmt.Fprintf(&b, "CLIENTE: %s\n", p.Summary())
	fmt.Fprintf(&b, "PRESUPUESTO INDICADO: %s\n", budget)
	fmt.Fprintf(&b, "\nCOTIZACIONES CALCULADAS:%s\n", quoteLines(state.Quotes))
	if cheaper && len(state.PreviousQuotes) > 0 {
		fmt.Fprintf(&b, "COTIZACIONES ANTERIORES (el cliente las consideró caras):%s\n", quoteLines(state.PreviousQuotes))
	}
	if instr := state.Context.Instructions; instr != "" {
		fmt.Fprintf(&b, "INSTRUCCIONES DEL ORQUESTADOR:\n%s\n", instr)
	}
	fmt.Fprintf(&b, `
=== TU TAREA ===
1. Explica al agente que has analizado el perfil de %s.
2. Presenta cada opción destacando su beneficio principal.
3. Recomienda específicamente la Opción %d y explica por qué.
4. Sugiere al agente cómo preguntar cuál le interesa más.

Habla SIEMPRE al agente. Usa exactamente las cifras calculadas. Máximo 8 líneas.`, clientName(p), recommended)
	return b.String()
}

func fieldLabel(f string) string {
	switch f {
	case "age":
		return "la edad"
	case "dependents":
		return "el número de dependientes"
	case "monthly_income":
		return "los ingresos mensuales"
	}
	return f
}
