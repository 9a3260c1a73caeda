package trace

import "context"

// Backend is a persistence target for traces. Store is best-effort
// telemetry: implementations return errors, the Tracker logs them and keeps
// going, and a failing backend never aborts the request that produced the
// trace. Get returns (nil, nil) when the trace is absent.
type Backend interface {
	Store(ctx context.Context, t *Trace) error
	Get(ctx context.Context, traceID string) (*Trace, error)
}

// Lister is an optional backend capability for enumerating stored traces,
// most recent first. Backends without an efficient listing path simply do
// not implement it and the Tracker falls back to its in-memory cache.
type Lister interface {
	Recent(ctx context.Context, limit int) ([]*Trace, error)
}
