// Package statestore persists one DialogueState per user. Three backends
// share the same behaviour: an in-process cache, a SQLite file and
// PostgreSQL.
package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/infra/observability"
	"github.com/boddenberg/iagente-vida-go/internal/port"

	"go.uber.org/zap"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// DefaultTTL is how long an idle conversation is kept.
const DefaultTTL = 24 * time.Hour

// Store is a StateStore that owns resources.
type Store interface {
	port.StateStore
	Close() error
}

// Options selects and configures the backend.
type Options struct {
	Backend     string
	TTL         time.Duration
	SQLitePath  string
	DatabaseURL string
}

// Open builds the configured backend.
func Open(ctx context.Context, opts Options, metrics *observability.Metrics, logger *zap.Logger) (Store, error) {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}

	switch opts.Backend {
	case "", BackendMemory:
		logger.Info("state store: memory", zap.Duration("ttl", opts.TTL))
		return NewMemory(opts.TTL, metrics), nil
	case BackendSQLite:
		logger.Info("state store: sqlite", zap.String("path", opts.SQLitePath))
		s, err := NewSQLite(opts.SQLitePath, opts.TTL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendPostgres:
		logger.Info("state store: postgres")
		p, err := NewPostgres(ctx, opts.DatabaseURL, opts.TTL)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, &domain.ErrValidation{Field: "STATE_BACKEND", Message: fmt.Sprintf("unknown backend %q", opts.Backend)}
	}
}

func encode(s *domain.DialogueState) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state %s: %w", s.UserID, err)
	}
	return raw, nil
}

func decode(raw []byte) (*domain.DialogueState, error) {
	var s domain.DialogueState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &s, nil
}

func validate(s *domain.DialogueState) error {
	if s == nil || s.UserID == "" {
		return &domain.ErrValidation{Field: "user_id", Message: "state without user id"}
	}
	return nil
}
