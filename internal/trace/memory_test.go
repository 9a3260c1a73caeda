package trace

import (
	"context"
	"fmt"
	"testing"
)

func TestMemoryBackendEvictsOldest(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend(3)

	ids := make([]string, 5)
	for i := range ids {
		tr := New(fmt.Sprintf("query %d", i), nil)
		ids[i] = tr.TraceID
		if err := m.Store(ctx, tr); err != nil {
			t.Fatalf("store: %v", err)
		}
	}

	if m.Len() != 3 {
		t.Fatalf("expected capacity 3 to be enforced, got %d", m.Len())
	}
	for _, id := range ids[:2] {
		got, err := m.Get(ctx, id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got != nil {
			t.Fatalf("expected evicted trace %s to be gone", id)
		}
	}
	for _, id := range ids[2:] {
		got, err := m.Get(ctx, id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got == nil {
			t.Fatalf("expected trace %s to survive", id)
		}
	}
}

func TestMemoryBackendRestoreDoesNotDuplicate(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend(3)
	tr := New("q", nil)
	if err := m.Store(ctx, tr); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := m.Store(ctx, tr); err != nil {
		t.Fatalf("store again: %v", err)
	}
	if m.Len() != 1 {
		t.Fatalf("storing the same id twice must not consume capacity, got len %d", m.Len())
	}
}

func TestMemoryBackendRecentIsReverseInsertion(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend(0) // default capacity

	var ids []string
	for i := 0; i < 4; i++ {
		tr := New(fmt.Sprintf("query %d", i), nil)
		ids = append(ids, tr.TraceID)
		if err := m.Store(ctx, tr); err != nil {
			t.Fatalf("store: %v", err)
		}
	}

	recent, err := m.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 traces, got %d", len(recent))
	}
	if recent[0].TraceID != ids[3] || recent[1].TraceID != ids[2] {
		t.Fatalf("expected newest first, got %s then %s", recent[0].TraceID, recent[1].TraceID)
	}

	all, err := m.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("limit 0 should return everything, got %d", len(all))
	}
}
