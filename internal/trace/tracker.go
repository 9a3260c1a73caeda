package trace

import (
	"context"
	"log"
	"sort"
	"sync"
)

// warmLimit bounds how much durable history a newly registered backend
// hydrates into the completed cache.
const warmLimit = 100

// Tracker is the registry of in-flight and completed traces. It owns all
// trace mutation and is the synchronization point every other component
// calls into: a trace is only ever mutated by the request that started it,
// but the registries themselves are shared across requests and guarded by
// the tracker's mutex.
//
// Every operation on an unknown trace id is a non-throwing no-op. Tracing
// is observability; it must never fail the pipeline it observes.
type Tracker struct {
	mu            sync.RWMutex
	active        map[string]*Trace
	completed     []*Trace
	completedByID map[string]*Trace
	backends      []Backend
	logger        *log.Logger
}

// StepHandle identifies one step of one trace for the begin/end API. The
// zero value is not a valid handle.
type StepHandle struct {
	traceID string
	index   int
}

func NewTracker() *Tracker {
	return &Tracker{
		active:        make(map[string]*Trace),
		completedByID: make(map[string]*Trace),
		logger:        log.New(log.Writer(), "[TRACE] ", log.LstdFlags),
	}
}

// RegisterBackend adds a persistence target for sealed traces. Backends that
// can list are eagerly hydrated so the recent-traces view reflects durable
// history, not just this process.
func (tr *Tracker) RegisterBackend(ctx context.Context, b Backend) {
	tr.mu.Lock()
	tr.backends = append(tr.backends, b)
	tr.mu.Unlock()

	lister, ok := b.(Lister)
	if !ok {
		return
	}
	history, err := lister.Recent(ctx, warmLimit)
	if err != nil {
		tr.logger.Printf("warn: loading history from backend failed: %v", err)
		return
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for i := len(history) - 1; i >= 0; i-- { // oldest first to keep insertion order sane
		t := history[i]
		if t == nil || t.TraceID == "" {
			continue
		}
		if _, seen := tr.completedByID[t.TraceID]; seen {
			continue
		}
		if _, live := tr.active[t.TraceID]; live {
			continue
		}
		tr.completed = append(tr.completed, t)
		tr.completedByID[t.TraceID] = t
	}
}

// StartTrace opens a trace for the query and returns its id.
func (tr *Tracker) StartTrace(query string, metadata map[string]interface{}) string {
	t := New(query, metadata)
	tr.mu.Lock()
	tr.active[t.TraceID] = t
	tr.mu.Unlock()
	return t.TraceID
}

// BeginStep appends a step with the given inputs to an active trace and
// returns a handle for EndStep. The second return is false if the trace is
// not active. Unlike TrackStep, beginning a step twice with the same name
// records two distinct steps.
func (tr *Tracker) BeginStep(traceID, stepName string, inputs map[string]interface{}) (StepHandle, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	t, ok := tr.active[traceID]
	if !ok {
		return StepHandle{}, false
	}
	t.AddStep(stepName, inputs)
	return StepHandle{traceID: traceID, index: len(t.Steps) - 1}, true
}

// EndStep completes the step identified by the handle, filling outputs and
// merging metadata. Returns false if the owning trace is no longer active.
func (tr *Tracker) EndStep(h StepHandle, outputs, metadata map[string]interface{}) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	t, ok := tr.active[h.traceID]
	if !ok || h.index < 0 || h.index >= len(t.Steps) {
		return false
	}
	step := t.Steps[h.index]
	t.CompleteStep(step, outputs)
	mergeMetadata(step, metadata)
	return true
}

// TrackStep records a pipeline step using create-or-update semantics keyed
// by step name: the first call for a name creates the record and stamps it
// complete with the given outputs; a later call with the same name updates
// the outputs, advances the end time (duration stays relative to the
// original start), and merges metadata. This supports the caller pattern of
// pre-registering a step's inputs before doing the work, then calling again
// afterwards with the results. Returns false if the trace is not active.
func (tr *Tracker) TrackStep(traceID, stepName string, inputs, outputs, metadata map[string]interface{}) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	t, ok := tr.active[traceID]
	if !ok {
		return false
	}
	step := t.Step(stepName)
	if step == nil {
		step = t.AddStep(stepName, inputs)
	}
	t.CompleteStep(step, outputs)
	mergeMetadata(step, metadata)
	return true
}

func mergeMetadata(step *StepRecord, metadata map[string]interface{}) {
	if len(metadata) == 0 {
		return
	}
	if step.Metadata == nil {
		step.Metadata = map[string]interface{}{}
	}
	for k, v := range metadata {
		step.Metadata[k] = v
	}
}

// CompleteTrace seals the trace, moves it from active to completed, and
// fans it out to every registered backend. Backend failures are logged and
// do not abort the fan-out. Returns the sealed trace, or nil if the id was
// not active.
func (tr *Tracker) CompleteTrace(ctx context.Context, traceID, finalResponse string) *Trace {
	tr.mu.Lock()
	t, ok := tr.active[traceID]
	if !ok {
		tr.mu.Unlock()
		return nil
	}
	delete(tr.active, traceID)
	t.Seal(finalResponse)
	tr.completed = append(tr.completed, t)
	tr.completedByID[traceID] = t
	backends := make([]Backend, len(tr.backends))
	copy(backends, tr.backends)
	tr.mu.Unlock()

	for _, b := range backends {
		if err := b.Store(ctx, t); err != nil {
			tr.logger.Printf("warn: storing trace %s failed: %v", traceID, err)
		}
	}
	return t
}

// GetTrace resolves a trace id: active registry first, then the completed
// cache, then the first backend that has it (caching the hit). Returns nil
// when nothing knows the id.
func (tr *Tracker) GetTrace(ctx context.Context, traceID string) *Trace {
	tr.mu.RLock()
	if t, ok := tr.active[traceID]; ok {
		tr.mu.RUnlock()
		return t
	}
	if t, ok := tr.completedByID[traceID]; ok {
		tr.mu.RUnlock()
		return t
	}
	backends := make([]Backend, len(tr.backends))
	copy(backends, tr.backends)
	tr.mu.RUnlock()

	for _, b := range backends {
		t, err := b.Get(ctx, traceID)
		if err != nil {
			tr.logger.Printf("warn: backend lookup for %s failed: %v", traceID, err)
			continue
		}
		if t == nil {
			continue
		}
		tr.mu.Lock()
		if _, seen := tr.completedByID[traceID]; !seen {
			tr.completed = append(tr.completed, t)
			tr.completedByID[traceID] = t
		}
		tr.mu.Unlock()
		return t
	}
	return nil
}

// RecentTraces refreshes the completed cache from listing backends and
// returns up to limit completed traces ordered by start time descending,
// ties broken by insertion order.
func (tr *Tracker) RecentTraces(ctx context.Context, limit int) []*Trace {
	tr.mu.RLock()
	backends := make([]Backend, len(tr.backends))
	copy(backends, tr.backends)
	tr.mu.RUnlock()

	for _, b := range backends {
		lister, ok := b.(Lister)
		if !ok {
			continue
		}
		history, err := lister.Recent(ctx, warmLimit)
		if err != nil {
			tr.logger.Printf("warn: refreshing recent traces failed: %v", err)
			continue
		}
		tr.mu.Lock()
		for i := len(history) - 1; i >= 0; i-- {
			t := history[i]
			if t == nil || t.TraceID == "" {
				continue
			}
			if _, seen := tr.completedByID[t.TraceID]; seen {
				continue
			}
			if _, live := tr.active[t.TraceID]; live {
				continue
			}
			tr.completed = append(tr.completed, t)
			tr.completedByID[t.TraceID] = t
		}
		tr.mu.Unlock()
	}

	tr.mu.RLock()
	defer tr.mu.RUnlock()
	out := make([]*Trace, len(tr.completed))
	copy(out, tr.completed)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// ActiveCount reports how many traces are currently open.
func (tr *Tracker) ActiveCount() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return len(tr.active)
}
