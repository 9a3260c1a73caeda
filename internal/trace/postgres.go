package trace

import (
	"context"
)

// TraceStore is the slice of the Postgres store the backend needs. Declared
// here so the trace package does not import the store package.
type TraceStore interface {
	SaveTrace(ctx context.Context, t *Trace) error
	GetTrace(ctx context.Context, traceID string) (*Trace, error)
	RecentTraces(ctx context.Context, limit int) ([]*Trace, error)
}

// PostgresBackend adapts the Postgres store to the Backend contract.
type PostgresBackend struct {
	store TraceStore
}

func NewPostgresBackend(store TraceStore) *PostgresBackend {
	return &PostgresBackend{store: store}
}

func (p *PostgresBackend) Store(ctx context.Context, t *Trace) error {
	return p.store.SaveTrace(ctx, t)
}

func (p *PostgresBackend) Get(ctx context.Context, traceID string) (*Trace, error) {
	return p.store.GetTrace(ctx, traceID)
}

func (p *PostgresBackend) Recent(ctx context.Context, limit int) ([]*Trace, error) {
	return p.store.RecentTraces(ctx, limit)
}
