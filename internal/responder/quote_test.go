package responder_test

import (
	"context"
	"strings"
	"testing"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/responder"
)

func juanState(msg string) *domain.DialogueState {
	s := newState(juan(), msg)
	s.Recommendation = &domain.Recommendation{
		Tier:     domain.TierBasic,
		Coverage: domain.CoverageDeath,
		Amount:   216000,
		Years:    6,
	}
	return s
}

// --- Quote ---

func TestQuote_JuanFallbackList(t *testing.T) {
	env, metrics := newEnv(down())
	s := juanState("adelante")

	reply, err := responder.Quote{}.Handle(context.Background(), env, s)

	if err != nil {
		t.Fatal(err)
	}
	if len(s.Quotes) != 1 || s.Quotes[0].MonthlyPremium != 59.85 {
		t.Fatalf("expected one quote at 59.85, got %+v", s.Quotes)
	}
	if s.Stage != domain.StageQuotation {
		t.Errorf("expected quotation stage, got %s", s.Stage)
	}
	for _, want := range []string{"⭐ RECOMENDADA", "€59,85/mes", "Cobertura: €216.000", "¿Cuál de estas opciones"} {
		if !strings.Contains(reply, want) {
			t.Errorf("reply missing %q:\n%s", want, reply)
		}
	}
	if metrics.Snapshot().QuotesGenerated != 1 {
		t.Errorf("expected quotes metric 1, got %+v", metrics.Snapshot())
	}
}

func TestQuote_CheaperWithBudget(t *testing.T) {
	env, _ := newEnv(down())
	s := juanState("puede pagar 40 euros al mes como mucho")
	s.Quotes = []domain.Quote{{MonthlyPremium: 59.85, CoverageAmount: 216000, Recommended: true}}
	s.Context.Instructions = "El cliente considera que es muy caro: ajusta y ofrece opciones más económicas."

	_, _ = responder.Quote{}.Handle(context.Background(), env, s)

	if len(s.PreviousQuotes) != 1 || s.PreviousQuotes[0].MonthlyPremium != 59.85 {
		t.Errorf("expected old quotes kept as previous, got %+v", s.PreviousQuotes)
	}
	q, ok := s.RecommendedQuote()
	if !ok || q.CoverageAmount != 137000 {
		t.Fatalf("expected coverage sized to the 40€ budget, got %+v", s.Quotes)
	}
	if q.MonthlyPremium >= 59.85 {
		t.Errorf("expected a cheaper premium, got %v", q.MonthlyPremium)
	}
}

func TestQuote_UnavailableReturnsAdvice(t *testing.T) {
	env, _ := newEnv(down())
	p := juan()
	p.MonthlyIncome = domain.Ptr(1000.0)
	p.MonthlyFixedExpenses = domain.Ptr(1200.0)
	s := newState(p, "cotiza")
	s.Recommendation = &domain.Recommendation{Tier: domain.TierBasic, Coverage: domain.CoverageDeath, Amount: 72000}

	reply, err := responder.Quote{}.Handle(context.Background(), env, s)

	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply, "no queda margen") {
		t.Errorf("expected advisory reply, got %q", reply)
	}
	if s.HasQuotes() || s.Stage != domain.StageQuotation {
		t.Errorf("expected no quotes and quotation stage, got %+v / %s", s.Quotes, s.Stage)
	}
}

func TestQuote_MissingDataBeforeRecommendation(t *testing.T) {
	env, _ := newEnv(down())
	s := newState(domain.ClientProfile{Name: "Ana"}, "cotiza ya")

	reply, _ := responder.Quote{}.Handle(context.Background(), env, s)

	if !strings.Contains(reply, "la edad") || s.HasQuotes() {
		t.Errorf("unexpected reply %q with quotes %+v", reply, s.Quotes)
	}
}

func TestQuote_LLMPresentation(t *testing.T) {
	llm := &mockLLM{reply: "Te sugiero presentar la opción recomendada primero."}
	env, _ := newEnv(llm)
	s := juanState("ok")

	reply, _ := responder.Quote{}.Handle(context.Background(), env, s)

	if reply != "Te sugiero presentar la opción recomendada primero." {
		t.Errorf("unexpected reply: %q", reply)
	}
	if p := llm.lastPrompt(); !strings.Contains(p, "Opción 1") || !strings.Contains(p, "Máximo 8 líneas") {
		t.Errorf("unexpected prompt:\n%s", p)
	}
}

func TestAdjustCheaper(t *testing.T) {
	cases := []struct {
		instr, msg string
		want       bool
	}{
		{"El cliente considera que es muy caro", "", true},
		{"", "¿se puede reducir?", true},
		{"", "mejor 30 euros al mes", true},
		{"genera la recomendación", "perfecto", false},
	}
	for _, tc := range cases {
		if got := responder.AdjustCheaper(tc.instr, tc.msg); got != tc.want {
			t.Errorf("AdjustCheaper(%q, %q) = %v", tc.instr, tc.msg, got)
		}
	}
}

func TestParseBudget(t *testing.T) {
	if b := responder.ParseBudget("Puede pagar 45 euros al mes"); b == nil || *b != 45 {
		t.Errorf("expected 45, got %v", b)
	}
	if b := responder.ParseBudget("45 euro al mes"); b == nil || *b != 45 {
		t.Errorf("expected 45 for singular, got %v", b)
	}
	if b := responder.ParseBudget("unos 45 al mes"); b != nil {
		t.Errorf("expected nil without currency, got %v", *b)
	}
}

func TestParseBudget_SeparatorsAndEuroSign(t *testing.T) {
	cases := map[string]float64{
		"puede pagar 1.000 euros al mes": 1000,
		"máximo 50€ al mes":              50,
		"unos 62,50 € al mes":            62.5,
		"hasta 1,5k euros al mes":        1500,
	}
	for msg, want := range cases {
		if b := responder.ParseBudget(msg); b == nil || *b != want {
			t.Errorf("%q: expected %v, got %v", msg, want, b)
		}
	}
	if !responder.AdjustCheaper("", "solo puede 50€ al mes") {
		t.Error("expected a euro-sign budget to ask for a cheaper offer")
	}
}

// --- Presenter ---

func TestPresenter_NoQuotesHandsBackToQuote(t *testing.T) {
	env, _ := newEnv(down())
	s := juanState("¿y eso qué cubre?")

	reply, _ := responder.Presenter{}.Handle(context.Background(), env, s)

	if reply != "Permíteme generar las cotizaciones para ti..." || s.NextResponder != domain.TargetQuote {
		t.Errorf("unexpected reply %q next=%v", reply, s.NextResponder)
	}
}

func TestPresenter_Fallbacks(t *testing.T) {
	cases := []struct {
		intent domain.Intent
		want   string
		stage  domain.Stage
	}{
		{domain.IntentPriceObjection, "menos al año que la competencia", domain.StagePresentation},
		{domain.IntentDoubts, "qué aspecto le genera más dudas", domain.StagePresentation},
		{domain.IntentAccepts, "confirmar con Juan", domain.StageFinished},
		{domain.IntentRejects, "dejar la puerta abierta", domain.StageFinished},
		{domain.IntentInterested, "Te sugiero presentar las 1 opciones a Juan", domain.StagePresentation},
	}
	for _, tc := range cases {
		env, _ := newEnv(down())
		s := juanState("mensaje")
		s.Quotes = []domain.Quote{{MonthlyPremium: 100, CoverageAmount: 216000, PlanName: "Protección Básica", Recommended: true}}
		s.LastIntent = tc.intent

		reply, _ := responder.Presenter{}.Handle(context.Background(), env, s)
		if !strings.Contains(reply, tc.want) {
			t.Errorf("%s: expected %q in %q", tc.intent, tc.want, reply)
		}
		if s.Stage != tc.stage {
			t.Errorf("%s: expected stage %s, got %s", tc.intent, tc.stage, s.Stage)
		}
	}
}

func TestPresenter_PromptCarriesSavings(t *testing.T) {
	llm := &mockLLM{reply: "Te sugiero destacar el ahorro."}
	env, _ := newEnv(llm)
	s := juanState("¿por qué esta?")
	s.Quotes = []domain.Quote{{MonthlyPremium: 100, CoverageAmount: 216000, PlanName: "Protección Básica", Recommended: true}}
	s.LastIntent = domain.IntentQuestion

	_, _ = responder.Presenter{}.Handle(context.Background(), env, s)

	p := llm.lastPrompt()
	for _, want := range []string{"AHORRO FRENTE A LA COMPETENCIA", "€15,00/mes", "€180,00/año", "INTENCIÓN DETECTADA: question"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
}

// --- Finish ---

func TestFinish(t *testing.T) {
	s := juanState("gracias")
	s.Quotes = []domain.Quote{{MonthlyPremium: 59.85, CoverageAmount: 216000, PlanName: "Protección Básica", Recommended: true}}

	reply, err := responder.Finish{}.Handle(context.Background(), nil, s)

	if err != nil || s.Stage != domain.StageFinished {
		t.Fatalf("unexpected result: %v / %s", err, s.Stage)
	}
	if !strings.Contains(reply, "Protección Básica") || !strings.Contains(reply, "reiniciar") {
		t.Errorf("unexpected closing text: %q", reply)
	}
}
