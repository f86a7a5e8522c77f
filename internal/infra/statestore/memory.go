package statestore

import (
	"context"
	"time"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/infra/cache"
	"github.com/boddenberg/iagente-vida-go/internal/infra/observability"
)

// Memory keeps states in a TTL cache. States are copied on the way in and
// out so callers never share a pointer with the store.
type Memory struct {
	cache   *cache.InMemory[*domain.DialogueState]
	metrics *observability.Metrics
}

// NewMemory creates an in-memory store whose entries expire ttl after the
// last Save.
func NewMemory(ttl time.Duration, metrics *observability.Metrics) *Memory {
	return &Memory{cache: cache.New[*domain.DialogueState](ttl), metrics: metrics}
}

func (m *Memory) Get(_ context.Context, userID string) (*domain.DialogueState, error) {
	s, ok := m.cache.Get(userID)
	if !ok {
		if m.metrics != nil {
			m.metrics.IncrCacheMiss("state")
		}
		return nil, nil
	}
	if m.metrics != nil {
		m.metrics.IncrCacheHit("state")
	}
	return clone(s)
}

func (m *Memory) Save(_ context.Context, s *domain.DialogueState) error {
	if err := validate(s); err != nil {
		return err
	}
	c, err := clone(s)
	if err != nil {
		return err
	}
	m.cache.Set(s.UserID, c)
	return nil
}

func (m *Memory) Delete(_ context.Context, userID string) (bool, error) {
	return m.cache.Remove(userID), nil
}

func (m *Memory) List(_ context.Context) ([]*domain.DialogueState, error) {
	values := m.cache.Values()
	out := make([]*domain.DialogueState, 0, len(values))
	for _, v := range values {
		c, err := clone(v)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *Memory) Count(_ context.Context) (int, error) {
	return m.cache.Len(), nil
}

// Cleanup drops expired entries. Expiry is fixed by the cache TTL, so ttl
// is ignored.
func (m *Memory) Cleanup(_ context.Context, _ time.Duration) (int, error) {
	return m.cache.Sweep(), nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// Close stops the background sweep.
func (m *Memory) Close() error {
	m.cache.Stop()
	return nil
}

func clone(s *domain.DialogueState) (*domain.DialogueState, error) {
	raw, err := encode(s)
	if err != nil {
		return nil, err
	}
	return decode(raw)
}
