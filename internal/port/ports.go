// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the conversation
// logic from the LLM provider, the messaging platform, the CRM and the
// state backend.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
)

// Generator produces text from a prompt. Implementations may fail; every
// caller owns a deterministic fallback.
type Generator interface {
	Generate(ctx context.Context, prompt, system string) (string, error)
}

// StateStore persists one DialogueState per user. Get returns
// (nil, nil) when the user has no live conversation.
type StateStore interface {
	Get(ctx context.Context, userID string) (*domain.DialogueState, error)
	Save(ctx context.Context, state *domain.DialogueState) error
	Delete(ctx context.Context, userID string) (bool, error)
	List(ctx context.Context) ([]*domain.DialogueState, error)
	Count(ctx context.Context) (int, error)
	Cleanup(ctx context.Context, ttl time.Duration) (int, error)
	Ping(ctx context.Context) error
}

// MessageSender delivers text to a messaging platform user.
type MessageSender interface {
	SendText(ctx context.Context, to, body string) domain.SendResult
}

// CRMSync mirrors conversation traffic into the helpdesk. Best effort.
type CRMSync interface {
	MirrorInbound(ctx context.Context, msg *domain.InboundMessage) (int, error)
	MirrorOutbound(ctx context.Context, conversationID int, reply string, profile domain.ClientProfile) error
}

// EventPublisher emits conversation events to the message bus.
type EventPublisher interface {
	Publish(subject string, data any) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
