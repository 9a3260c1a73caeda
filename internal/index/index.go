package index

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/blevesearch/bleve"
	"github.com/google/uuid"

	"github.com/opsrig/rootcause/internal/agent"
)

// IndexedDocument is a unit of ingested context: a log excerpt, incident
// report, or runbook fragment.
type IndexedDocument struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Source     string    `json:"source"`
	Content    string    `json:"content"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Index is a bleve-backed document index implementing the retrieval stage.
// With an empty path it lives in memory; with a path it persists on disk
// and reopens across processes.
type Index struct {
	idx  bleve.Index
	topK int
	mu   sync.RWMutex
}

// Open opens or creates an index. path == "" builds a memory-only index.
func Open(path string, topK int) (*Index, error) {
	if topK <= 0 {
		topK = 10
	}
	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(bleve.NewIndexMapping())
	} else if _, statErr := os.Stat(path); statErr == nil {
		idx, err = bleve.Open(path)
	} else {
		idx, err = bleve.New(path, bleve.NewIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("opening index %q: %w", path, err)
	}
	return &Index{idx: idx, topK: topK}, nil
}

// Add indexes a document, assigning an id when none is given.
func (ix *Index) Add(doc IndexedDocument) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = time.Now()
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.idx.Index(doc.ID, doc); err != nil {
		return "", fmt.Errorf("indexing document %s: %w", doc.ID, err)
	}
	return doc.ID, nil
}

// Count reports how many documents the index holds.
func (ix *Index) Count() (uint64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.idx.DocCount()
}

// Retrieve runs a BM25 query-string search and maps hits to pipeline
// documents, best first.
func (ix *Index) Retrieve(ctx context.Context, query string) ([]agent.Document, error) {
	q := bleve.NewQueryStringQuery(query)
	req := bleve.NewSearchRequestOptions(q, ix.topK, 0, false)
	req.Fields = []string{"content", "title", "source"}

	ix.mu.RLock()
	res, err := ix.idx.SearchInContext(ctx, req)
	ix.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	out := make([]agent.Document, 0, len(res.Hits))
	for _, hit := range res.Hits {
		content, _ := hit.Fields["content"].(string)
		meta := map[string]interface{}{}
		if title, ok := hit.Fields["title"].(string); ok && title != "" {
			meta["title"] = title
		}
		if source, ok := hit.Fields["source"].(string); ok && source != "" {
			meta["source"] = source
		}
		out = append(out, agent.Document{
			ID:       hit.ID,
			Content:  content,
			Score:    hit.Score,
			Metadata: meta,
		})
	}
	return out, nil
}

func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.idx.Close()
}
