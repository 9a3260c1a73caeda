package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/opsrig/rootcause/internal/trace"
)

// Store wraps the Postgres connection used for durable state: user accounts
// for the API and the traces table behind the Postgres trace backend.
type Store struct {
	DB *sql.DB
}

// NewWithDSN opens a Postgres connection and verifies it.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// CreateUser inserts a user with a bcrypt password hash.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO users (email, password_hash) VALUES ($1, $2)`, email, passwordHash)
	return err
}

// GetUserByEmail returns the user id and password hash for an email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (string, string, error) {
	var id, hash string
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, password_hash FROM users WHERE email = $1`, email).Scan(&id, &hash)
	if err != nil {
		return "", "", err
	}
	return id, hash, nil
}

// SaveTrace upserts the full trace document keyed by trace id.
func (s *Store) SaveTrace(ctx context.Context, t *trace.Trace) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding trace %s: %w", t.TraceID, err)
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO traces (id, query, payload, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			query = EXCLUDED.query,
			payload = EXCLUDED.payload,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at`,
		t.TraceID, t.Query, payload, t.StartTime, t.EndTime)
	if err != nil {
		return fmt.Errorf("saving trace %s: %w", t.TraceID, err)
	}
	return nil
}

// GetTrace returns the stored trace document, or nil when absent.
func (s *Store) GetTrace(ctx context.Context, traceID string) (*trace.Trace, error) {
	var payload []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT payload FROM traces WHERE id = $1`, traceID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching trace %s: %w", traceID, err)
	}
	var t trace.Trace
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, fmt.Errorf("decoding trace %s: %w", traceID, err)
	}
	return &t, nil
}

// RecentTraces returns up to limit trace documents ordered by start time
// descending.
func (s *Store) RecentTraces(ctx context.Context, limit int) ([]*trace.Trace, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT payload FROM traces ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing traces: %w", err)
	}
	defer rows.Close()

	var out []*trace.Trace
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var t trace.Trace
		if err := json.Unmarshal(payload, &t); err != nil {
			continue // tolerate individually corrupt rows
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
