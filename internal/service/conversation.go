package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/infra/events"
	"github.com/boddenberg/iagente-vida-go/internal/infra/observability"
	"github.com/boddenberg/iagente-vida-go/internal/port"
	"github.com/boddenberg/iagente-vida-go/internal/responder"
	"github.com/boddenberg/iagente-vida-go/internal/router"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/conversation")

const errorReply = "Disculpa, hubo un problema procesando tu mensaje. ¿Puedes intentar de nuevo?"

// InboundMeta is what the channel knows about a message besides its text.
type InboundMeta struct {
	Channel     string
	ContactName string
}

// Conversation runs one turn of the sales dialogue per inbound message:
// load state, route, respond, save.
type Conversation struct {
	store      port.StateStore
	router     *router.Router
	responders []responder.Responder
	env        *responder.Env
	events     port.EventPublisher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewConversation creates the conversation service with all dependencies injected.
func NewConversation(
	store port.StateStore,
	rt *router.Router,
	env *responder.Env,
	publisher port.EventPublisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Conversation {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Conversation{
		store:      store,
		router:     rt,
		responders: responder.Defaults(),
		env:        env,
		events:     publisher,
		metrics:    metrics,
		logger:     logger,
	}
}

// ProcessMessage handles one user message and returns the bot reply with
// the resulting conversation snapshot. LLM and responder failures degrade
// the reply; only state store failures are returned as errors.
func (c *Conversation) ProcessMessage(ctx context.Context, userID, text string, meta InboundMeta) (*domain.TurnResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(userID) == "" {
		return nil, &domain.ErrValidation{Field: "user_id", Message: "required"}
	}

	ctx, span := tracer.Start(ctx, "Conversation.ProcessMessage")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("channel", meta.Channel))

	start := time.Now()
	text = strings.TrimSpace(text)

	state, err := c.store.Get(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load state: %w", err)
	}
	isNew := state == nil
	if isNew {
		state = domain.NewDialogueState(userID)
		state.Profile.Phone = userID
		c.logger.Info("new conversation",
			zap.String("user_id", userID),
			zap.String("channel", meta.Channel),
			zap.String("contact_name", meta.ContactName),
		)
	}

	state.LastUserMessage = text
	state.AppendMessage(domain.RoleUser, text)

	result := &domain.TurnResult{UserID: userID}
	quotesBefore := state.Quotes

	if cmd, ok := detectCommand(text, state); ok {
		result.Command = string(cmd)
		result.Reply = c.runCommand(cmd, state)
		result.Target = domain.TargetUnknown
	} else {
		d := c.router.Route(ctx, state)
		result.Target = d.Target
		result.Intent = d.Intent
		result.Fallback = d.Fallback

		if !router.ValidateTransition(state.Stage, d.Target) {
			c.logger.Warn("unexpected stage transition",
				zap.String("user_id", userID),
				zap.String("stage", string(state.Stage)),
				zap.String("target", d.Target.String()),
			)
		}
		c.logger.Debug(router.Summary(state, d), zap.String("user_id", userID))

		result.Reply = c.respond(ctx, state, d.Target)
	}

	state.LastBotReply = result.Reply
	state.AppendMessage(domain.RoleAssistant, result.Reply)
	state.Completeness = router.Score(state.Profile).Percent
	state.UpdatedAt = time.Now().UTC()

	if err := c.store.Save(ctx, state); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("save state: %w", err)
	}

	result.Stage = state.Stage
	result.Completeness = state.Completeness
	result.Quotes = state.Quotes

	label := result.Target.String()
	if result.Command != "" {
		label = "command"
	}
	c.metrics.RecordTurn(label, time.Since(start))
	span.SetAttributes(
		attribute.String("target", label),
		attribute.String("stage", string(state.Stage)),
		attribute.Int("completeness", state.Completeness),
	)

	c.publish(state, result, quotesBefore)

	c.logger.Info("turn processed",
		zap.String("user_id", userID),
		zap.String("target", label),
		zap.String("intent", result.Intent.String()),
		zap.String("stage", string(state.Stage)),
		zap.Int("completeness", state.Completeness),
		zap.Bool("new", isNew),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// respond dispatches to the responder for target. Unknown targets go to
// needs analysis; responder errors become the generic apology.
func (c *Conversation) respond(ctx context.Context, state *domain.DialogueState, target domain.Target) string {
	r := responder.Select(c.responders, target)
	if r == nil {
		r = responder.NeedsBasedSelling{}
		target = domain.TargetNeedsBasedSelling
	}
	state.ActiveResponder = target

	reply, err := r.Handle(ctx, c.env, state)
	if err != nil || strings.TrimSpace(reply) == "" {
		c.logger.Error("responder failed",
			zap.String("user_id", state.UserID),
			zap.String("target", target.String()),
			zap.Error(err),
		)
		c.metrics.IncrFallback("conversation")
		return errorReply
	}
	return reply
}

func (c *Conversation) publish(state *domain.DialogueState, result *domain.TurnResult, quotesBefore []domain.Quote) {
	now := time.Now().UTC()

	turn := domain.TurnEvent{
		EventID:      uuid.NewString(),
		UserID:       state.UserID,
		ProfileID:    state.Profile.ID,
		Stage:        state.Stage,
		Target:       result.Target,
		Intent:       result.Intent,
		Completeness: state.Completeness,
		QuoteCount:   len(state.Quotes),
		Fallback:     result.Fallback,
		At:           now,
	}
	if err := c.events.Publish(events.SubjectTurnCompleted, turn); err != nil {
		c.logger.Warn("turn event not published", zap.String("user_id", state.UserID), zap.Error(err))
	}

	if len(state.Quotes) == 0 || slices.Equal(state.Quotes, quotesBefore) {
		return
	}
	adjusted := slices.ContainsFunc(state.Quotes, func(q domain.Quote) bool { return q.BudgetAdjusted })
	quotes := domain.QuotesEvent{
		EventID:   uuid.NewString(),
		UserID:    state.UserID,
		ProfileID: state.Profile.ID,
		Quotes:    state.Quotes,
		Adjusted:  adjusted || len(state.PreviousQuotes) > 0,
		At:        now,
	}
	if err := c.events.Publish(events.SubjectQuotesGenerated, quotes); err != nil {
		c.logger.Warn("quotes event not published", zap.String("user_id", state.UserID), zap.Error(err))
	}
}

// GetState returns the stored conversation of userID.
func (c *Conversation) GetState(ctx context.Context, userID string) (*domain.DialogueState, error) {
	ctx, span := tracer.Start(ctx, "Conversation.GetState")
	defer span.End()

	state, err := c.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if state == nil {
		return nil, &domain.ErrNotFound{Resource: "conversation", ID: userID}
	}
	return state, nil
}

// Reset deletes the conversation of userID.
func (c *Conversation) Reset(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "Conversation.Reset")
	defer span.End()

	deleted, err := c.store.Delete(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	if !deleted {
		return &domain.ErrNotFound{Resource: "conversation", ID: userID}
	}
	c.logger.Info("conversation reset", zap.String("user_id", userID))
	return nil
}

// ListConversations summarizes every live conversation, most recent first.
func (c *Conversation) ListConversations(ctx context.Context) ([]domain.ConversationSummary, error) {
	ctx, span := tracer.Start(ctx, "Conversation.ListConversations")
	defer span.End()

	states, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	slices.SortFunc(states, func(a, b *domain.DialogueState) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})

	out := make([]domain.ConversationSummary, 0, len(states))
	for _, s := range states {
		out = append(out, s.Summary())
	}
	return out, nil
}

// ActiveCount returns how many conversations are live.
func (c *Conversation) ActiveCount(ctx context.Context) (int, error) {
	return c.store.Count(ctx)
}

// Sweep removes conversations idle for longer than ttl.
func (c *Conversation) Sweep(ctx context.Context, ttl time.Duration) (int, error) {
	n, err := c.store.Cleanup(ctx, ttl)
	if err != nil {
		return 0, fmt.Errorf("cleanup states: %w", err)
	}
	if n > 0 {
		c.logger.Info("expired conversations removed", zap.Int("count", n))
	}
	return n, nil
}
