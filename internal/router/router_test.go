package router_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/infra/observability"
	"github.com/boddenberg/iagente-vida-go/internal/router"

	"go.uber.org/zap"
)

// --- Mocks ---

// scriptedLLM answers the intent prompt with intent and the routing prompt
// with target. err makes every call fail.
type scriptedLLM struct {
	intent string
	target string
	err    error
	calls  int
}

func (m *scriptedLLM) Generate(_ context.Context, prompt, _ string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if strings.Contains(prompt, "SITUACIÓN ACTUAL") {
		return m.target, nil
	}
	return m.intent, nil
}

func newRouter(llm *scriptedLLM) *router.Router {
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	return router.New(router.NewClassifier(llm, metrics, logger), llm, nil, metrics, logger)
}

func juan() domain.ClientProfile {
	return domain.ClientProfile{
		ID:            "p",
		Name:          "Juan",
		Age:           domain.Ptr(45),
		Dependents:    domain.Ptr(2),
		MonthlyIncome: domain.Ptr(3000.0),
		Profession:    "ingeniero",
	}
}

func stateWith(p domain.ClientProfile, msg string) *domain.DialogueState {
	s := domain.NewDialogueState("34600000000")
	s.Profile = p
	s.LastUserMessage = msg
	return s
}

// --- Completeness ---

func TestScore(t *testing.T) {
	c := router.Score(domain.ClientProfile{})
	if c.Percent != 0 || len(c.MissingEssential) != 5 || len(c.MissingAdditional) != 4 {
		t.Errorf("unexpected empty score: %+v", c)
	}

	c = router.Score(juan())
	if c.Percent != 55 || !c.Essentials() {
		t.Errorf("expected 55%% with essentials, got %+v", c)
	}

	p := juan()
	p.MaritalStatus = "casado"
	p.HasLifeInsurance = domain.Ptr(false)
	p.InsuranceAttitude = "interesado"
	p.DesiredCapital = domain.Ptr(200000.0)
	if c := router.Score(p); c.Percent != 100 {
		t.Errorf("expected 100%%, got %d", c.Percent)
	}
}

// --- Rules ---

func TestRoute_Rule1AmountQuestion(t *testing.T) {
	r := newRouter(&scriptedLLM{intent: "consulta_monto"})
	s := stateWith(domain.ClientProfile{}, "¿cuánto capital necesita?")

	d := r.Route(context.Background(), s)

	if d.Target != domain.TargetNeedsBasedSelling || d.Rule != router.RuleAmountQuestion {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if s.Context.Instructions == "" || !strings.Contains(s.Context.Instructions, "cifra concreta") {
		t.Errorf("expected handoff instructions on the state, got %q", s.Context.Instructions)
	}
	if s.NextResponder != domain.TargetNeedsBasedSelling || s.LastIntent != domain.IntentAmountQuestion {
		t.Errorf("state not updated: next=%v intent=%v", s.NextResponder, s.LastIntent)
	}
}

func TestRoute_Rule2CapitalRange(t *testing.T) {
	p := juan()
	p.MaritalStatus = "casado"
	p.HasLifeInsurance = domain.Ptr(false)
	p.InsuranceAttitude = "interesado"
	r := newRouter(&scriptedLLM{intent: "datos"})

	d := r.Route(context.Background(), stateWith(p, "no sé cuánto"))

	if d.Rule != router.RuleCapitalRange || d.Target != domain.TargetNeedsBasedSelling {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if !strings.Contains(d.Instructions, "€216.000") || !strings.Contains(d.Instructions, "€360.000") {
		t.Errorf("expected computed range in instructions, got %q", d.Instructions)
	}
}

func TestRoute_Rule3ForceRecommendation(t *testing.T) {
	p := juan()
	p.MaritalStatus = "casado"
	p.HasLifeInsurance = domain.Ptr(false)
	p.DesiredCapital = domain.Ptr(200000.0)
	r := newRouter(&scriptedLLM{intent: "neutral"})

	d := r.Route(context.Background(), stateWith(p, "vale"))

	if d.Rule != router.RuleForceRecommendation || d.Target != domain.TargetNeedsBasedSelling {
		t.Errorf("unexpected decision: %+v", d)
	}
	if d.Completeness.Percent != 88 {
		t.Errorf("expected 88%%, got %d", d.Completeness.Percent)
	}
}

func TestRoute_Rule4QuoteAfterRecommendation(t *testing.T) {
	s := stateWith(juan(), "perfecto")
	s.Recommendation = &domain.Recommendation{Tier: domain.TierBasic, Amount: 216000}
	r := newRouter(&scriptedLLM{intent: "interesado"})

	d := r.Route(context.Background(), s)

	if d.Rule != router.RuleForceQuote || d.Target != domain.TargetQuote {
		t.Errorf("unexpected decision: %+v", d)
	}
}

func TestRoute_Rule5PriceObjection(t *testing.T) {
	s := stateWith(juan(), "es muy caro")
	s.Recommendation = &domain.Recommendation{Amount: 216000}
	s.Quotes = []domain.Quote{{MonthlyPremium: 63, Recommended: true}}
	r := newRouter(&scriptedLLM{intent: "objecion"})

	d := r.Route(context.Background(), s)

	if d.Rule != router.RuleCheaperQuote || d.Target != domain.TargetQuote {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if d.Intent != domain.IntentPriceObjection {
		t.Errorf("expected objection upgraded to price objection, got %v", d.Intent)
	}
	if !strings.Contains(d.Instructions, "económicas") {
		t.Errorf("unexpected instructions: %q", d.Instructions)
	}
}

func TestRoute_Rule6PresenterForQuestions(t *testing.T) {
	s := stateWith(juan(), "¿y qué cubre exactamente?")
	s.Recommendation = &domain.Recommendation{Amount: 216000}
	s.Quotes = []domain.Quote{{MonthlyPremium: 63}}
	r := newRouter(&scriptedLLM{intent: "dudas"})

	d := r.Route(context.Background(), s)

	if d.Rule != router.RulePresenterQuestion || d.Target != domain.TargetPresenter {
		t.Errorf("unexpected decision: %+v", d)
	}
}

// --- Rule 7 ---

func TestRoute_Rule7UsesLLMAnswer(t *testing.T) {
	s := stateWith(juan(), "genial")
	s.Recommendation = &domain.Recommendation{Amount: 216000}
	s.Quotes = []domain.Quote{{MonthlyPremium: 63}}
	r := newRouter(&scriptedLLM{intent: "interesado", target: "Presentador."})

	d := r.Route(context.Background(), s)

	if d.Rule != router.RuleLLM || d.Target != domain.TargetPresenter || d.Fallback {
		t.Errorf("unexpected decision: %+v", d)
	}
}

func TestRoute_Rule7InvalidAnswerFallsBack(t *testing.T) {
	s := stateWith(domain.ClientProfile{}, "hola")
	r := newRouter(&scriptedLLM{intent: "saludo", target: "llamar al supervisor"})

	d := r.Route(context.Background(), s)

	if !d.Fallback || d.Target != domain.TargetNeedsBasedSelling {
		t.Errorf("expected fallback to needs_based_selling, got %+v", d)
	}
}

func TestRoute_LLMDownUsesKeywordsAndFallback(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("provider down")}
	s := stateWith(juan(), "acepto, quiero contratar")
	s.Recommendation = &domain.Recommendation{Amount: 216000}
	s.Quotes = []domain.Quote{{MonthlyPremium: 63}}
	p := s.Profile
	p.MaritalStatus = "casado"
	p.HasLifeInsurance = domain.Ptr(false)
	p.DesiredCapital = domain.Ptr(216000.0)
	s.Profile = p

	d := newRouter(llm).Route(context.Background(), s)

	if d.Intent != domain.IntentAccepts {
		t.Errorf("expected keyword intent accepts, got %v", d.Intent)
	}
	if !d.Fallback || d.Target != domain.TargetFinish {
		t.Errorf("expected fallback finish, got %+v", d)
	}
	if llm.calls != 2 {
		t.Errorf("expected one classifier and one routing call, got %d", llm.calls)
	}
}

func TestRoute_JuanScenario(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("offline")}
	r := newRouter(llm)

	// first contact: nothing known yet
	s := stateWith(domain.ClientProfile{}, "Mi cliente se llama Juan, tiene 45 años, 2 hijos, gana 3000 euros al mes y es ingeniero")
	if d := r.Route(context.Background(), s); d.Target != domain.TargetNeedsBasedSelling {
		t.Fatalf("turn 1: expected needs_based_selling, got %+v", d)
	}

	// every essential known, no recommendation yet
	s.Profile = juan()
	s.Stage = domain.StageNeedsAnalysis
	s.LastUserMessage = "eso es todo"
	if d := r.Route(context.Background(), s); d.Target != domain.TargetNeedsBasedSelling || d.Rule != router.RuleForceRecommendation {
		t.Fatalf("turn 2: expected forced recommendation, got %+v", d)
	}

	// after needs analysis the recommendation exists
	s.Recommendation = &domain.Recommendation{Tier: domain.TierBasic, Amount: 216000, Years: 6}
	s.LastUserMessage = "ok, sigue"
	if d := r.Route(context.Background(), s); d.Target != domain.TargetQuote || d.Rule != router.RuleForceQuote {
		t.Fatalf("turn 3: expected forced quote, got %+v", d)
	}
}

func TestFallback(t *testing.T) {
	rec := &domain.Recommendation{Amount: 1}
	quotes := []domain.Quote{{MonthlyPremium: 1}}
	full := router.Completeness{Percent: 80}

	cases := []struct {
		name   string
		state  *domain.DialogueState
		intent domain.Intent
		comp   router.Completeness
		want   domain.Target
	}{
		{"incomplete", &domain.DialogueState{}, domain.IntentNeutral, router.Completeness{Percent: 40}, domain.TargetNeedsBasedSelling},
		{"no recommendation", &domain.DialogueState{}, domain.IntentNeutral, full, domain.TargetNeedsBasedSelling},
		{"no quotes", &domain.DialogueState{Recommendation: rec}, domain.IntentNeutral, full, domain.TargetQuote},
		{"rejects", &domain.DialogueState{Recommendation: rec, Quotes: quotes}, domain.IntentRejects, full, domain.TargetFinish},
		{"otherwise", &domain.DialogueState{Recommendation: rec, Quotes: quotes}, domain.IntentInterested, full, domain.TargetPresenter},
	}
	for _, tc := range cases {
		if got := router.Fallback(tc.state, tc.intent, tc.comp); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}
