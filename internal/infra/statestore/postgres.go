package statestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/iagente-vida-go/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS dialogue_states (
	user_id    TEXT PRIMARY KEY,
	state_json JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_dialogue_states_updated ON dialogue_states(updated_at);
`

// Postgres stores states as JSONB rows.
type Postgres struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewPostgres connects, pings and creates the table when missing.
func NewPostgres(ctx context.Context, databaseURL string, ttl time.Duration) (*Postgres, error) {
	if databaseURL == "" {
		return nil, &domain.ErrValidation{Field: "DATABASE_URL", Message: "required for the postgres backend"}
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Postgres{pool: pool, ttl: ttl}, nil
}

func (p *Postgres) cutoff() time.Time {
	return time.Now().Add(-p.ttl)
}

func (p *Postgres) Get(ctx context.Context, userID string) (*domain.DialogueState, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT state_json FROM dialogue_states WHERE user_id = $1 AND updated_at >= $2`,
		userID, p.cutoff(),
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get state %s: %w", userID, err)
	}
	return decode(raw)
}

func (p *Postgres) Save(ctx context.Context, s *domain.DialogueState) error {
	if err := validate(s); err != nil {
		return err
	}
	raw, err := encode(s)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO dialogue_states (user_id, state_json, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (user_id) DO UPDATE SET
			state_json = EXCLUDED.state_json,
			updated_at = now()`,
		s.UserID, raw,
	)
	if err != nil {
		return fmt.Errorf("save state %s: %w", s.UserID, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, userID string) (bool, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM dialogue_states WHERE user_id = $1 AND updated_at >= $2`, userID, p.cutoff())
	if err != nil {
		return false, fmt.Errorf("delete state %s: %w", userID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) List(ctx context.Context) ([]*domain.DialogueState, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT state_json FROM dialogue_states WHERE updated_at >= $1 ORDER BY updated_at DESC`, p.cutoff())
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	defer rows.Close()

	var out []*domain.DialogueState
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan state row: %w", err)
		}
		s, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM dialogue_states WHERE updated_at >= $1`, p.cutoff()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count states: %w", err)
	}
	return n, nil
}

func (p *Postgres) Cleanup(ctx context.Context, ttl time.Duration) (int, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM dialogue_states WHERE updated_at < $1`, time.Now().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("cleanup states: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
