package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/infra/observability"
	"github.com/boddenberg/iagente-vida-go/internal/service"

	"go.uber.org/zap"
)

type mockSender struct {
	mu     sync.Mutex
	sent   []string
	failAt int // 1-based part that fails; 0 never fails
}

func (m *mockSender) SendText(_ context.Context, _, body string) domain.SendResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, body)
	if m.failAt == len(m.sent) {
		return domain.SendResult{Status: "failed", Error: "HTTP 401: unauthorized"}
	}
	return domain.SendResult{Success: true, MessageID: "wamid.1", Status: "sent", Parts: 1}
}

type mockCRM struct {
	mu         sync.Mutex
	inbound    []*domain.InboundMessage
	outbound   []string
	profile    domain.ClientProfile
	inboundErr error
}

func (m *mockCRM) MirrorInbound(_ context.Context, msg *domain.InboundMessage) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbound = append(m.inbound, msg)
	if m.inboundErr != nil {
		return 0, m.inboundErr
	}
	return 42, nil
}

func (m *mockCRM) MirrorOutbound(_ context.Context, convID int, reply string, profile domain.ClientProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbound = append(m.outbound, reply)
	m.profile = profile
	return nil
}

func inbound(text string) *domain.InboundMessage {
	return &domain.InboundMessage{
		From:        "34611222333",
		Type:        "text",
		Content:     text,
		ID:          "wamid.in",
		ContactName: "Laura G.",
		Timestamp:   time.Now(),
	}
}

func TestHandleInbound_SendsAndMirrors(t *testing.T) {
	f := newFixture(t)
	sender := &mockSender{}
	crm := &mockCRM{}
	svc := service.NewChannelService(f.conv, sender, crm, f.metrics, zap.NewNop())

	res, err := svc.HandleInbound(context.Background(), inbound("Mi cliente se llama Marta y tiene 38 años"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Parts != 1 || len(sender.sent) != 1 {
		t.Fatalf("unexpected send result %+v (%d sent)", res, len(sender.sent))
	}
	if strings.Contains(sender.sent[0], "**") {
		t.Errorf("markdown not converted: %q", sender.sent[0])
	}
	if len(crm.inbound) != 1 || len(crm.outbound) != 1 {
		t.Fatalf("expected both sides mirrored, got %d/%d", len(crm.inbound), len(crm.outbound))
	}
	if crm.profile.Name != "Marta" || crm.profile.Age == nil || *crm.profile.Age != 38 {
		t.Errorf("expected stored profile in CRM note, got %+v", crm.profile)
	}
}

func TestHandleInbound_CRMFailureIgnored(t *testing.T) {
	f := newFixture(t)
	sender := &mockSender{}
	crm := &mockCRM{inboundErr: errors.New("chatwoot down")}
	svc := service.NewChannelService(f.conv, sender, crm, f.metrics, zap.NewNop())

	res, err := svc.HandleInbound(context.Background(), inbound("hola"))
	if err != nil || !res.Success {
		t.Fatalf("expected delivery despite CRM failure, got %+v / %v", res, err)
	}
	if len(crm.outbound) != 0 {
		t.Error("outbound should be skipped without a conversation id")
	}
}

func TestHandleInbound_SendFailureReported(t *testing.T) {
	f := newFixture(t)
	sender := &mockSender{failAt: 1}
	svc := service.NewChannelService(f.conv, sender, nil, f.metrics, zap.NewNop())

	res, err := svc.HandleInbound(context.Background(), inbound("hola"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Error == "" || res.Parts != 0 {
		t.Errorf("expected failed result, got %+v", res)
	}
}

func TestHandleInbound_StoreErrorReturned(t *testing.T) {
	metrics := observability.NewMetrics()
	conv := service.NewConversation(&failingStore{err: errors.New("locked")}, nil, nil, nil, metrics, zap.NewNop())
	sender := &mockSender{}
	svc := service.NewChannelService(conv, sender, nil, metrics, zap.NewNop())

	if _, err := svc.HandleInbound(context.Background(), inbound("hola")); err == nil {
		t.Error("expected error")
	}
	if len(sender.sent) != 0 {
		t.Error("nothing should be sent when the turn fails")
	}
}

func TestFormatWhatsApp(t *testing.T) {
	got := service.FormatWhatsApp("  **Plan Básico** y __nota__\n")
	if got != "*Plan Básico* y _nota_" {
		t.Errorf("got %q", got)
	}
}

func TestSplitMessage(t *testing.T) {
	if parts := service.SplitMessage("corto", 10); len(parts) != 1 || parts[0] != "corto" {
		t.Errorf("short text should be one part, got %q", parts)
	}

	text := "Primera frase aquí. Segunda frase aquí. Tercera."
	parts := service.SplitMessage(text, 25)
	if len(parts) != 3 || parts[0] != "Primera frase aquí." || parts[2] != "Tercera." {
		t.Errorf("unexpected split %q", parts)
	}

	long := strings.Repeat("ñ", 30)
	parts = service.SplitMessage(long, 25)
	for _, p := range parts {
		if len(p) > 25 || !strings.HasPrefix(p, "ñ") {
			t.Errorf("bad hard cut %q", p)
		}
	}
	if strings.Join(parts, "") != long {
		t.Error("hard cut lost characters")
	}
}
