package chatwoot

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/iagente-vida-go/internal/domain"

	"go.uber.org/zap"
)

var baseLabels = []string{"whatsapp", "iagente_vida"}

// Sync mirrors WhatsApp traffic into Chatwoot.
type Sync struct {
	client *Client
	logger *zap.Logger
}

// NewSync creates a new Sync.
func NewSync(client *Client, logger *zap.Logger) *Sync {
	return &Sync{client: client, logger: logger}
}

// MirrorInbound records an inbound WhatsApp message and returns the id of
// the Chatwoot conversation that holds it. An open or pending conversation
// of the contact is reused.
func (s *Sync) MirrorInbound(ctx context.Context, msg *domain.InboundMessage) (int, error) {
	name := msg.ContactName
	if name == "" {
		name = "Cliente " + lastDigits(msg.From, 4)
	}

	contact, err := s.client.CreateContact(ctx, msg.From, name, map[string]any{
		"whatsapp_number":   msg.From,
		"last_message_type": msg.Type,
		"source":            "whatsapp_iagente_vida",
	})
	if err != nil {
		return 0, fmt.Errorf("upsert contact: %w", err)
	}

	convs, err := s.client.ConversationsByContact(ctx, contact.ID)
	if err != nil {
		return 0, fmt.Errorf("list conversations: %w", err)
	}

	var active *Conversation
	for i := range convs {
		if convs[i].Status == "open" || convs[i].Status == "pending" {
			active = &convs[i]
			break
		}
	}
	if active == nil {
		if active, err = s.client.CreateConversation(ctx, contact.ID); err != nil {
			return 0, fmt.Errorf("create conversation: %w", err)
		}
	}

	if _, err := s.client.SendMessage(ctx, active.ID, msg.Content, Incoming); err != nil {
		return active.ID, fmt.Errorf("post inbound message: %w", err)
	}

	labels := append([]string{}, baseLabels...)
	if msg.Type != "" && msg.Type != "text" {
		labels = append(labels, "media_"+msg.Type)
	}
	if err := s.client.AddLabels(ctx, active.ID, labels); err != nil {
		s.logger.Warn("chatwoot labels not applied", zap.Int("conversation_id", active.ID), zap.Error(err))
	}

	return active.ID, nil
}

// MirrorOutbound posts the bot reply followed by the client data gathered so far.
func (s *Sync) MirrorOutbound(ctx context.Context, conversationID int, reply string, profile domain.ClientProfile) error {
	_, err := s.client.SendMessage(ctx, conversationID, FormatAgentReply(reply, profile), Outgoing)
	return err
}

// FormatAgentReply prefixes the bot signature and appends the client data
// block when any of the main fields is known.
func FormatAgentReply(reply string, p domain.ClientProfile) string {
	var b strings.Builder
	b.WriteString("🤖 *iAgente_Vida*\n\n")
	b.WriteString(reply)

	var lines []string
	if p.Name != "" {
		lines = append(lines, "• Nombre: "+p.Name)
	}
	if p.Age != nil {
		lines = append(lines, fmt.Sprintf("• Edad: %d años", *p.Age))
	}
	if p.Dependents != nil && *p.Dependents > 0 {
		lines = append(lines, fmt.Sprintf("• Dependientes: %d", *p.Dependents))
	}
	if p.MonthlyIncome != nil {
		lines = append(lines, "• Ingresos: "+domain.FormatEuros(*p.MonthlyIncome)+"/mes")
	}
	if p.Profession != "" {
		lines = append(lines, "• Profesión: "+p.Profession)
	}
	if len(lines) > 0 {
		b.WriteString("\n\n📊 *Datos del cliente:*\n")
		b.WriteString(strings.Join(lines, "\n"))
	}
	return b.String()
}

func lastDigits(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
