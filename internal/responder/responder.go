// Package responder holds the conversational strategies that write the
// bot reply once the router has picked a target. Every responder owns a
// templated fallback so a failing LLM never leaves a turn without an answer.
package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/extractor"
	"github.com/boddenberg/iagente-vida-go/internal/infra/observability"
	"github.com/boddenberg/iagente-vida-go/internal/instructions"
	"github.com/boddenberg/iagente-vida-go/internal/port"
	"github.com/boddenberg/iagente-vida-go/internal/quoting"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("responder")

var errEmptyReply = errors.New("empty llm reply")

// Responder writes the reply for one routing target.
type Responder interface {
	CanHandle(target domain.Target) bool
	Handle(ctx context.Context, env *Env, state *domain.DialogueState) (string, error)
}

// Env is what every responder may use during a turn.
type Env struct {
	LLM       port.Generator
	Prompts   *instructions.Loader
	Extractor *extractor.Extractor
	Engine    *quoting.Engine
	Metrics   *observability.Metrics
	Logger    *zap.Logger
}

// Defaults returns the responders in dispatch order.
func Defaults() []Responder {
	return []Responder{
		NeedsBasedSelling{},
		Quote{},
		Presenter{},
		Finish{},
	}
}

// Select returns the first responder that accepts target, or nil.
func Select(responders []Responder, target domain.Target) Responder {
	for _, r := range responders {
		if r.CanHandle(target) {
			return r
		}
	}
	return nil
}

// generate calls the LLM and trims the answer. A blank answer counts as a
// failure so the caller falls back to its template.
func (e *Env) generate(ctx context.Context, prompt, system string) (string, error) {
	if e.LLM == nil {
		return "", errEmptyReply
	}
	reply, err := e.LLM.Generate(ctx, prompt, system)
	if err == nil {
		reply = strings.TrimSpace(reply)
		if reply == "" {
			err = errEmptyReply
		}
	}
	if err != nil {
		e.Logger.Warn("llm reply failed, using template", zap.Error(err))
		if e.Metrics != nil {
			e.Metrics.IncrFallback("responder")
		}
		return "", err
	}
	return reply, nil
}

func (e *Env) prompt(name string) string {
	if e.Prompts == nil {
		return ""
	}
	return e.Prompts.Get(name)
}

func recentHistory(state *domain.DialogueState, n int) string {
	msgs := state.RecentHistory(n)
	if len(msgs) == 0 {
		return "Primera interacción"
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		who := "Usuario"
		if m.Role == domain.RoleAssistant {
			who = "Bot"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", who, m.Content))
	}
	return strings.Join(lines, "\n")
}

func quoteLines(quotes []domain.Quote) string {
	var b strings.Builder
	for i, q := range quotes {
		fmt.Fprintf(&b, "\nOpción %d: %s\n", i+1, q.PlanName)
		fmt.Fprintf(&b, "  • Prima: %s/mes\n", domain.FormatEurosCents(q.MonthlyPremium))
		fmt.Fprintf(&b, "  • Cobertura: %s\n", domain.FormatEuros(q.CoverageAmount))
		fmt.Fprintf(&b, "  • Vigencia: %d años\n", q.TermYears)
	}
	return b.String()
}

func clientName(p domain.ClientProfile) string {
	if p.Name == "" {
		return "tu cliente"
	}
	return p.Name
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
