package statestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boddenberg/iagente-vida-go/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLite stores states as JSON documents in a single table. Rows older
// than the TTL are invisible to reads and removed by Cleanup.
type SQLite struct {
	db  *sql.DB
	ttl time.Duration
}

// NewSQLite opens (or creates) the database file in WAL mode.
func NewSQLite(dbPath string, ttl time.Duration) (*SQLite, error) {
	if dbPath == "" {
		return nil, &domain.ErrValidation{Field: "SQLITE_PATH", Message: "required for the sqlite backend"}
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal=WAL&_sync=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLite{db: db, ttl: ttl}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	_, err := s.db.Exec(`
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS dialogue_states (
		user_id TEXT PRIMARY KEY,
		state_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_dialogue_states_updated ON dialogue_states(updated_at);
	`)
	return err
}

func (s *SQLite) cutoff() int64 {
	return time.Now().Add(-s.ttl).UnixMilli()
}

func (s *SQLite) Get(ctx context.Context, userID string) (*domain.DialogueState, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json FROM dialogue_states WHERE user_id = ? AND updated_at >= ?`,
		userID, s.cutoff(),
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get state %s: %w", userID, err)
	}
	return decode([]byte(raw))
}

func (s *SQLite) Save(ctx context.Context, st *domain.DialogueState) error {
	if err := validate(st); err != nil {
		return err
	}
	raw, err := encode(st)
	if err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	_, err = s.db.ExecContext(ctx, `
	INSERT INTO dialogue_states (user_id, state_json, created_at, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		state_json = excluded.state_json,
		updated_at = excluded.updated_at`,
		st.UserID, string(raw), now, now,
	)
	if err != nil {
		return fmt.Errorf("save state %s: %w", st.UserID, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM dialogue_states WHERE user_id = ? AND updated_at >= ?`, userID, s.cutoff())
	if err != nil {
		return false, fmt.Errorf("delete state %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLite) List(ctx context.Context) ([]*domain.DialogueState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT state_json FROM dialogue_states WHERE updated_at >= ? ORDER BY updated_at DESC`, s.cutoff())
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	defer rows.Close()

	var out []*domain.DialogueState
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan state row: %w", err)
		}
		st, err := decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dialogue_states WHERE updated_at >= ?`, s.cutoff()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count states: %w", err)
	}
	return n, nil
}

// Cleanup deletes rows idle for longer than ttl.
func (s *SQLite) Cleanup(ctx context.Context, ttl time.Duration) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM dialogue_states WHERE updated_at < ?`, time.Now().Add(-ttl).UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("cleanup states: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
