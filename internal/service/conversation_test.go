package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/extractor"
	"github.com/boddenberg/iagente-vida-go/internal/infra/events"
	"github.com/boddenberg/iagente-vida-go/internal/infra/observability"
	"github.com/boddenberg/iagente-vida-go/internal/infra/statestore"
	"github.com/boddenberg/iagente-vida-go/internal/port"
	"github.com/boddenberg/iagente-vida-go/internal/quoting"
	"github.com/boddenberg/iagente-vida-go/internal/responder"
	"github.com/boddenberg/iagente-vida-go/internal/router"
	"github.com/boddenberg/iagente-vida-go/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

// downLLM fails every call, so every component takes its deterministic path.
type downLLM struct{}

func (downLLM) Generate(context.Context, string, string) (string, error) {
	return "", errors.New("provider down")
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads []any
	err      error
}

func (p *recordingPublisher) Publish(subject string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return p.err
}

func (p *recordingPublisher) count(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.subjects {
		if s == subject {
			n++
		}
	}
	return n
}

type failingStore struct {
	port.StateStore
	err error
}

func (f *failingStore) Get(context.Context, string) (*domain.DialogueState, error) {
	return nil, f.err
}

// --- Helpers ---

type fixture struct {
	conv      *service.Conversation
	store     port.StateStore
	publisher *recordingPublisher
	metrics   *observability.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	llm := downLLM{}

	store := statestore.NewMemory(time.Hour, metrics)
	t.Cleanup(func() { store.Close() })

	env := &responder.Env{
		LLM:       llm,
		Extractor: extractor.New(llm, metrics, logger),
		Engine:    quoting.NewEngine(),
		Metrics:   metrics,
		Logger:    logger,
	}
	rt := router.New(router.NewClassifier(llm, metrics, logger), llm, nil, metrics, logger)
	pub := &recordingPublisher{}

	return &fixture{
		conv:      service.NewConversation(store, rt, env, pub, metrics, logger),
		store:     store,
		publisher: pub,
		metrics:   metrics,
	}
}

func (f *fixture) say(t *testing.T, userID, text string) *domain.TurnResult {
	t.Helper()
	res, err := f.conv.ProcessMessage(context.Background(), userID, text, service.InboundMeta{Channel: "test"})
	if err != nil {
		t.Fatalf("ProcessMessage(%q): %v", text, err)
	}
	return res
}

// --- Tests ---

func TestProcessMessage_JuanScenario(t *testing.T) {
	f := newFixture(t)
	const user = "34600000000"

	// Turn 1: every essential in one message.
	res := f.say(t, user, "Mi cliente se llama Juan, tiene 45 años, 2 hijos, gana 3000 euros al mes y es ingeniero")
	if res.Target != domain.TargetNeedsBasedSelling || !strings.Contains(res.Reply, "€216.000") {
		t.Fatalf("turn 1: unexpected result %+v", res)
	}
	if res.Stage != domain.StageQuotation || res.Completeness != 55 {
		t.Errorf("turn 1: expected quotation at 55%%, got %s at %d", res.Stage, res.Completeness)
	}

	// Turn 2: recommendation without quotes goes to quoting.
	res = f.say(t, user, "perfecto, adelante")
	if res.Target != domain.TargetQuote || len(res.Quotes) != 1 || res.Quotes[0].MonthlyPremium != 59.85 {
		t.Fatalf("turn 2: unexpected result %+v", res)
	}
	if !strings.Contains(res.Reply, "€59,85/mes") {
		t.Errorf("turn 2: expected quote list, got %q", res.Reply)
	}

	// Turn 3: price objection asks for a cheaper offer.
	res = f.say(t, user, "le parece caro")
	if res.Target != domain.TargetQuote || res.Intent != domain.IntentPriceObjection {
		t.Fatalf("turn 3: unexpected result %+v", res)
	}
	if len(res.Quotes) == 0 || res.Quotes[0].MonthlyPremium >= 59.85 {
		t.Errorf("turn 3: expected a cheaper quote, got %+v", res.Quotes)
	}

	state, err := f.conv.GetState(context.Background(), user)
	if err != nil {
		t.Fatal(err)
	}
	if len(state.PreviousQuotes) != 1 || len(state.History) != 6 || state.LastBotReply != res.Reply {
		t.Errorf("unexpected stored state: previous=%d history=%d", len(state.PreviousQuotes), len(state.History))
	}
	if state.Profile.Phone != user || state.Profile.Name != "Juan" {
		t.Errorf("unexpected profile %+v", state.Profile)
	}

	if got := f.publisher.count(events.SubjectTurnCompleted); got != 3 {
		t.Errorf("expected 3 turn events, got %d", got)
	}
	if got := f.publisher.count(events.SubjectQuotesGenerated); got != 2 {
		t.Errorf("expected 2 quote events, got %d", got)
	}

	snap := f.metrics.Snapshot()
	if snap.TotalTurns != 3 || snap.TurnsByTarget["quote"] != 2 || snap.QuotesGenerated < 2 {
		t.Errorf("unexpected metrics %+v", snap)
	}
}

func TestProcessMessage_Commands(t *testing.T) {
	f := newFixture(t)
	const user = "34600000001"

	res := f.say(t, user, "¡Hola!")
	if res.Command != "greeting" || res.Reply != responder.WelcomeText {
		t.Errorf("expected welcome, got %+v", res)
	}

	res = f.say(t, user, "Ayuda")
	if res.Command != "help" || !strings.Contains(res.Reply, "Comandos disponibles") {
		t.Errorf("expected help, got %+v", res)
	}

	res = f.say(t, user, "se llama Ana y tiene 30 años")
	if res.Command != "" {
		t.Fatalf("data message treated as command %q", res.Command)
	}

	res = f.say(t, user, "hola")
	if res.Command != "" {
		t.Errorf("greeting mid-conversation should be routed, got command %q", res.Command)
	}

	res = f.say(t, user, "reiniciar")
	if res.Command != "restart" || !strings.HasPrefix(res.Reply, "¡Perfecto! Empezamos de nuevo.") {
		t.Errorf("expected restart, got %+v", res)
	}
	state, _ := f.conv.GetState(context.Background(), user)
	if state.Profile.Name != "" || state.Stage != domain.StageStart || len(state.History) != 1 {
		t.Errorf("restart should wipe progress, got %+v", state)
	}

	res = f.say(t, user, "salir")
	if res.Command != "stop" || res.Stage != domain.StageFinished {
		t.Errorf("expected stop, got %+v", res)
	}
}

func TestProcessMessage_GreetingWithDataIsRouted(t *testing.T) {
	f := newFixture(t)

	res := f.say(t, "34600000002", "Hola, mi cliente se llama Pedro")
	if res.Command != "" || res.Target != domain.TargetNeedsBasedSelling {
		t.Errorf("expected routing to needs analysis, got %+v", res)
	}
}

func TestProcessMessage_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.conv.ProcessMessage(context.Background(), " ", "hola", service.InboundMeta{})
	var ve *domain.ErrValidation
	if !errors.As(err, &ve) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestProcessMessage_StoreFailure(t *testing.T) {
	metrics := observability.NewMetrics()
	store := &failingStore{err: errors.New("disk full")}
	conv := service.NewConversation(store, nil, nil, nil, metrics, zap.NewNop())

	if _, err := conv.ProcessMessage(context.Background(), "34600000003", "hola", service.InboundMeta{}); err == nil {
		t.Error("expected store error")
	}
}

func TestProcessMessage_PublishFailureIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("nats down")

	if res := f.say(t, "34600000004", "hola"); res.Reply == "" {
		t.Error("expected a reply despite publish failure")
	}
}

func TestResetAndLookups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.say(t, "34600000010", "hola")
	time.Sleep(2 * time.Millisecond)
	f.say(t, "34600000011", "mi cliente se llama Luis")

	list, err := f.conv.ListConversations(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("expected 2 conversations, got %v / %v", list, err)
	}
	if list[0].UserID != "34600000011" || list[0].Name != "Luis" {
		t.Errorf("expected most recent first, got %+v", list)
	}
	if n, _ := f.conv.ActiveCount(ctx); n != 2 {
		t.Errorf("expected 2 active, got %d", n)
	}

	if err := f.conv.Reset(ctx, "34600000010"); err != nil {
		t.Fatal(err)
	}
	var nf *domain.ErrNotFound
	if err := f.conv.Reset(ctx, "34600000010"); !errors.As(err, &nf) {
		t.Errorf("expected not found on second reset, got %v", err)
	}
	if _, err := f.conv.GetState(ctx, "34600000010"); !errors.As(err, &nf) {
		t.Errorf("expected not found, got %v", err)
	}
}
