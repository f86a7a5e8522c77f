package service

import (
	"context"
	"strings"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/infra/observability"
	"github.com/boddenberg/iagente-vida-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MaxWhatsAppLength is the longest text sent as a single message.
const MaxWhatsAppLength = 4000

// ChannelService connects the WhatsApp webhook to the conversation: it
// runs the turn, sends the reply and mirrors both sides to the CRM.
type ChannelService struct {
	conversation *Conversation
	sender       port.MessageSender
	crm          port.CRMSync
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// NewChannelService creates the channel service. crm may be nil when no
// helpdesk is configured.
func NewChannelService(conv *Conversation, sender port.MessageSender, crm port.CRMSync, metrics *observability.Metrics, logger *zap.Logger) *ChannelService {
	return &ChannelService{
		conversation: conv,
		sender:       sender,
		crm:          crm,
		metrics:      metrics,
		logger:       logger,
	}
}

// HandleInbound processes one WhatsApp message end to end. A CRM failure
// never affects the result; a send failure is reported in it.
func (s *ChannelService) HandleInbound(ctx context.Context, msg *domain.InboundMessage) (domain.SendResult, error) {
	ctx, span := tracer.Start(ctx, "ChannelService.HandleInbound")
	defer span.End()
	span.SetAttributes(attribute.String("message.type", msg.Type))

	turn, err := s.conversation.ProcessMessage(ctx, msg.From, msg.Content, InboundMeta{
		Channel:     "whatsapp",
		ContactName: msg.ContactName,
	})
	if err != nil {
		span.RecordError(err)
		return domain.SendResult{}, err
	}

	var result domain.SendResult
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		result = s.send(gCtx, msg.From, FormatWhatsApp(turn.Reply))
		return nil
	})

	if s.crm != nil {
		g.Go(func() error {
			s.mirror(gCtx, msg, turn.Reply)
			return nil
		})
	}

	_ = g.Wait()

	if !result.Success {
		s.logger.Error("reply not delivered",
			zap.String("user_id", msg.From),
			zap.String("error", result.Error),
		)
	}
	return result, nil
}

// send delivers text, split into parts when it is too long for a single
// WhatsApp message. It stops at the first failed part.
func (s *ChannelService) send(ctx context.Context, to, text string) domain.SendResult {
	parts := SplitMessage(text, MaxWhatsAppLength)

	var last domain.SendResult
	for i, part := range parts {
		last = s.sender.SendText(ctx, to, part)
		if !last.Success {
			last.Parts = i
			return last
		}
	}
	last.Parts = len(parts)
	return last
}

func (s *ChannelService) mirror(ctx context.Context, msg *domain.InboundMessage, reply string) {
	convID, err := s.crm.MirrorInbound(ctx, msg)
	if err != nil {
		s.metrics.IncrExternalError("crm_sync")
		s.logger.Warn("crm inbound mirror failed", zap.String("user_id", msg.From), zap.Error(err))
		if convID == 0 {
			return
		}
	}

	var profile domain.ClientProfile
	if state, err := s.conversation.GetState(ctx, msg.From); err == nil {
		profile = state.Profile
	}
	if err := s.crm.MirrorOutbound(ctx, convID, reply, profile); err != nil {
		s.metrics.IncrExternalError("crm_sync")
		s.logger.Warn("crm outbound mirror failed", zap.String("user_id", msg.From), zap.Error(err))
	}
}

// FormatWhatsApp converts markdown emphasis to WhatsApp markup.
func FormatWhatsApp(text string) string {
	text = strings.ReplaceAll(text, "**", "*")
	text = strings.ReplaceAll(text, "__", "_")
	return strings.TrimSpace(text)
}

// SplitMessage cuts text into parts of at most limit bytes, breaking after
// sentence ends (". ") when possible. A single sentence longer than limit
// is hard-cut.
func SplitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var (
		parts   []string
		current strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			parts = append(parts, s)
		}
		current.Reset()
	}

	sentences := strings.SplitAfter(text, ". ")
	for _, sentence := range sentences {
		if current.Len()+len(sentence) > limit {
			flush()
		}
		for len(sentence) > limit {
			cut := safeCut(sentence, limit)
			parts = append(parts, strings.TrimSpace(sentence[:cut]))
			sentence = sentence[cut:]
		}
		current.WriteString(sentence)
	}
	flush()
	return parts
}

// safeCut backs off to a UTF-8 rune boundary.
func safeCut(s string, n int) int {
	for n > 0 && n < len(s) && s[n]&0xC0 == 0x80 {
		n--
	}
	return n
}
