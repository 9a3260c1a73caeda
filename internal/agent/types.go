package agent

import "context"

// Document is one retrieved unit of context: an indexed log excerpt,
// incident report, or runbook fragment with its retrieval score.
type Document struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Generation is the response generator's output: an answer, the indices of
// the documents it cites, and a confidence in [0,1].
type Generation struct {
	Response        string  `json:"response"`
	CitationIndices []int   `json:"citation_indices"`
	Confidence      float64 `json:"confidence_score"`
}

// Retriever returns ranked candidate documents for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]Document, error)
}

// Ranker reorders candidate documents by relevance to the query.
type Ranker interface {
	Rank(ctx context.Context, query string, docs []Document) ([]Document, error)
}

// Generator produces a cited natural-language answer from the query and the
// ranked documents.
type Generator interface {
	Generate(ctx context.Context, query string, docs []Document) (Generation, error)
}

// Result is what a successful pipeline run hands back to the caller,
// including the trace id for later inspection.
type Result struct {
	Query           string     `json:"query"`
	TraceID         string     `json:"trace_id"`
	Response        string     `json:"response"`
	CitationIndices []int      `json:"citation_indices"`
	Documents       []Document `json:"documents"`
	Confidence      float64    `json:"confidence_score"`
}
