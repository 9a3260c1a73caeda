package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
)

// FileBackend persists one JSON document per trace under a directory,
// keyed by trace id. Listing is reconstructed from the directory, so traces
// written by previous processes are visible too.
type FileBackend struct {
	dir    string
	logger *log.Logger
	stop   chan struct{}
}

// NewFileBackend creates the directory if needed and returns a backend
// writing into it.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		dir = "traces"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating trace directory %s: %w", dir, err)
	}
	return &FileBackend{
		dir:    dir,
		logger: log.New(log.Writer(), "[TRACE-FILE] ", log.LstdFlags),
		stop:   make(chan struct{}),
	}, nil
}

func (f *FileBackend) path(traceID string) string {
	return filepath.Join(f.dir, traceID+".json")
}

func (f *FileBackend) Store(_ context.Context, t *Trace) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding trace %s: %w", t.TraceID, err)
	}
	tmp := f.path(t.TraceID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing trace %s: %w", t.TraceID, err)
	}
	return os.Rename(tmp, f.path(t.TraceID))
}

func (f *FileBackend) Get(_ context.Context, traceID string) (*Trace, error) {
	data, err := os.ReadFile(f.path(traceID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading trace %s: %w", traceID, err)
	}
	var t Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decoding trace %s: %w", traceID, err)
	}
	return &t, nil
}

// Recent scans the directory sorted by modification time descending.
// Unreadable or corrupt files are skipped with a warning rather than
// aborting the whole listing.
func (f *FileBackend) Recent(_ context.Context, limit int) ([]*Trace, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("scanning trace directory %s: %w", f.dir, err)
	}

	type candidate struct {
		name  string
		mtime time.Time
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			f.logger.Printf("warn: stat %s: %v", e.Name(), err)
			continue
		}
		candidates = append(candidates, candidate{name: e.Name(), mtime: info.ModTime()})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].mtime.After(candidates[j].mtime) })

	var out []*Trace
	for _, c := range candidates {
		if limit > 0 && len(out) >= limit {
			break
		}
		data, err := os.ReadFile(filepath.Join(f.dir, c.name))
		if err != nil {
			f.logger.Printf("warn: read %s: %v", c.name, err)
			continue
		}
		var t Trace
		if err := json.Unmarshal(data, &t); err != nil {
			f.logger.Printf("warn: decode %s: %v", c.name, err)
			continue
		}
		out = append(out, &t)
	}
	return out, nil
}

// Prune removes trace files older than maxAge and returns how many were
// deleted.
func (f *FileBackend) Prune(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return 0, fmt.Errorf("scanning trace directory %s: %w", f.dir, err)
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(f.dir, e.Name())); err != nil {
				f.logger.Printf("warn: prune %s: %v", e.Name(), err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// StartPruneLoop prunes traces older than maxAge on the given cron
// schedule until Close is called.
func (f *FileBackend) StartPruneLoop(spec string, maxAge time.Duration) error {
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", spec, err)
	}
	go func() {
		for {
			next := expr.Next(time.Now())
			if next.IsZero() {
				return
			}
			select {
			case <-time.After(time.Until(next)):
				n, err := f.Prune(maxAge)
				if err != nil {
					f.logger.Printf("prune failed: %v", err)
				} else if n > 0 {
					f.logger.Printf("pruned %d trace(s) older than %v", n, maxAge)
				}
			case <-f.stop:
				return
			}
		}
	}()
	return nil
}

// Close stops the prune loop if one is running.
func (f *FileBackend) Close() {
	select {
	case <-f.stop:
	default:
		close(f.stop)
	}
}
