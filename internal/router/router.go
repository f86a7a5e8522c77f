// Package router decides which responder handles each turn. A fixed list
// of rules runs first; only when none applies is the LLM asked, and its
// answer is checked against the known targets.
package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/infra/observability"
	"github.com/boddenberg/iagente-vida-go/internal/instructions"
	"github.com/boddenberg/iagente-vida-go/internal/port"
	"github.com/boddenberg/iagente-vida-go/internal/quoting"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("router")

// Rule numbers reported in Decision.Rule.
const (
	RuleAmountQuestion = iota + 1
	RuleCapitalRange
	RuleForceRecommendation
	RuleForceQuote
	RuleCheaperQuote
	RulePresenterQuestion
	RuleLLM
)

const (
	instrAmount         = "El cliente pide una cifra concreta: calcula y di una cifra concreta ahora, no hagas más preguntas."
	instrRecommendation = "Hay datos suficientes: genera la recomendación ahora, sin pedir más datos."
	instrCheaper        = "El cliente considera que es muy caro: ajusta y ofrece opciones más económicas."
)

const decisionSystem = "Eres el orquestador de un asistente de ventas de seguros de vida. Responde SOLO con: needs_based_selling, quote, presentador, o FINISH"

// Decision is the outcome of routing one turn.
type Decision struct {
	Target       domain.Target `json:"target"`
	Instructions string        `json:"instructions,omitempty"`
	Intent       domain.Intent `json:"intent"`
	Rule         int           `json:"rule"`
	Completeness Completeness  `json:"completeness"`
	Fallback     bool          `json:"fallback,omitempty"`
}

// Router picks the responder for a turn.
type Router struct {
	classifier *Classifier
	llm        port.Generator
	prompts    *instructions.Loader
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// New creates a Router. llm may be nil; rule 7 then always uses the
// deterministic fallback.
func New(classifier *Classifier, llm port.Generator, prompts *instructions.Loader, metrics *observability.Metrics, logger *zap.Logger) *Router {
	return &Router{
		classifier: classifier,
		llm:        llm,
		prompts:    prompts,
		metrics:    metrics,
		logger:     logger,
	}
}

// Route classifies the last user message, applies the routing rules and
// records the result on the state: LastIntent, Completeness,
// NextResponder and the handoff instructions.
func (r *Router) Route(ctx context.Context, state *domain.DialogueState) Decision {
	ctx, span := tracer.Start(ctx, "Router.Route")
	defer span.End()

	intent := r.classifier.Classify(ctx, state.LastUserMessage)
	comp := Score(state.Profile)

	d := r.decide(ctx, state, intent, comp)
	d.Intent = intent
	d.Completeness = comp

	state.LastIntent = intent
	state.Completeness = comp.Percent
	state.NextResponder = d.Target
	state.Context.Instructions = d.Instructions

	span.SetAttributes(
		attribute.String("target", d.Target.String()),
		attribute.Int("rule", d.Rule),
		attribute.Int("completeness", comp.Percent),
	)
	r.logger.Info("route decided",
		zap.String("user_id", state.UserID),
		zap.String("target", d.Target.String()),
		zap.String("intent", intent.String()),
		zap.Int("rule", d.Rule),
		zap.Int("completeness", comp.Percent),
		zap.Bool("fallback", d.Fallback),
	)
	return d
}

func (r *Router) decide(ctx context.Context, state *domain.DialogueState, intent domain.Intent, comp Completeness) Decision {
	switch {
	case intent == domain.IntentAmountQuestion:
		return Decision{Target: domain.TargetNeedsBasedSelling, Rule: RuleAmountQuestion, Instructions: instrAmount}

	case onlyCapitalMissing(comp) && !state.HasRecommendation():
		return Decision{Target: domain.TargetNeedsBasedSelling, Rule: RuleCapitalRange, Instructions: capitalRangeInstructions(state.Profile)}

	case (comp.Percent >= 80 || comp.Essentials()) && !state.HasRecommendation():
		return Decision{Target: domain.TargetNeedsBasedSelling, Rule: RuleForceRecommendation, Instructions: instrRecommendation}

	case state.HasRecommendation() && !state.HasQuotes():
		return Decision{Target: domain.TargetQuote, Rule: RuleForceQuote}

	case intent == domain.IntentPriceObjection && state.HasQuotes():
		return Decision{Target: domain.TargetQuote, Rule: RuleCheaperQuote, Instructions: instrCheaper}

	case state.HasQuotes() && intent.In(domain.IntentQuestion, domain.IntentAmountQuestion, domain.IntentPriceQuestion, domain.IntentDoubts):
		return Decision{Target: domain.TargetPresenter, Rule: RulePresenterQuestion}
	}

	target, ok := r.askLLM(ctx, state, intent, comp)
	if !ok {
		if r.metrics != nil {
			r.metrics.IncrFallback("router")
		}
		return Decision{Target: Fallback(state, intent, comp), Rule: RuleLLM, Fallback: true}
	}
	return Decision{Target: target, Rule: RuleLLM}
}

// onlyCapitalMissing reports whether every essential is known and desired
// capital is the single unknown field of the score.
func onlyCapitalMissing(c Completeness) bool {
	return c.Essentials() &&
		len(c.MissingAdditional) == 1 &&
		c.MissingAdditional[0] == domain.FieldDesiredCapital
}

func capitalRangeInstructions(p domain.ClientProfile) string {
	lo, hi := quoting.SuggestedCapitalRange(*p.MonthlyIncome)
	return fmt.Sprintf(
		"No vuelvas a preguntar el capital deseado. Propón un rango concreto de 6 a 10 años de ingresos: entre %s y %s (ingresos anuales de %s).",
		domain.FormatEuros(lo), domain.FormatEuros(hi), domain.FormatEuros(p.AnnualIncome()),
	)
}

func (r *Router) askLLM(ctx context.Context, state *domain.DialogueState, intent domain.Intent, comp Completeness) (domain.Target, bool) {
	if r.llm == nil {
		return domain.TargetUnknown, false
	}

	var guide string
	if r.prompts != nil {
		guide = r.prompts.Get(instructions.Orchestrator)
	}

	reply, err := r.llm.Generate(ctx, situationPrompt(state, intent, comp, guide), decisionSystem)
	if err != nil {
		r.logger.Warn("llm routing failed, using fallback", zap.Error(err))
		return domain.TargetUnknown, false
	}

	target := domain.ParseTarget(reply)
	if target == domain.TargetUnknown {
		r.logger.Warn("llm routing answer not recognised", zap.String("answer", reply))
		return domain.TargetUnknown, false
	}
	return target, true
}

func situationPrompt(state *domain.DialogueState, intent domain.Intent, comp Completeness, guide string) string {
	missing := comp.MissingEssential
	if len(missing) > 3 {
		missing = missing[:3]
	}
	names := make([]string, len(missing))
	for i, f := range missing {
		names[i] = string(f)
	}

	var b strings.Builder
	if guide != "" {
		b.WriteString(guide)
		b.WriteString("\n\n")
	}
	b.WriteString("=== SITUACIÓN ACTUAL ===\n")
	fmt.Fprintf(&b, "ETAPA: %s\n", state.Stage)
	fmt.Fprintf(&b, "CLIENTE: %s\n", state.Profile.Summary())
	fmt.Fprintf(&b, "DATOS COMPLETITUD: %d%%\n", comp.Percent)
	fmt.Fprintf(&b, "DATOS FALTANTES ESENCIALES: %s\n", strings.Join(names, ", "))
	fmt.Fprintf(&b, "TIENE RECOMENDACIÓN: %s\n", yesNo(state.HasRecommendation()))
	fmt.Fprintf(&b, "TIENE COTIZACIONES: %s\n", yesNo(state.HasQuotes()))
	fmt.Fprintf(&b, "INTENCIÓN CLIENTE: %s\n", intent)
	fmt.Fprintf(&b, "ÚLTIMO MENSAJE: %q\n\n", state.LastUserMessage)
	b.WriteString("¿Qué agente debe actuar? Responde SOLO con: needs_based_selling, quote, presentador, o FINISH")
	return b.String()
}

// Fallback is the deterministic choice used when the LLM cannot decide.
func Fallback(state *domain.DialogueState, intent domain.Intent, comp Completeness) domain.Target {
	switch {
	case comp.Percent < 60:
		return domain.TargetNeedsBasedSelling
	case !state.HasRecommendation():
		return domain.TargetNeedsBasedSelling
	case !state.HasQuotes():
		return domain.TargetQuote
	case intent.In(domain.IntentAccepts, domain.IntentRejects):
		return domain.TargetFinish
	}
	return domain.TargetPresenter
}

func yesNo(b bool) string {
	if b {
		return "SÍ"
	}
	return "NO"
}
