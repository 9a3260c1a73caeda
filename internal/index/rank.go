package index

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/opsrig/rootcause/internal/agent"
)

const rrfK = 60 // reciprocal-rank-fusion constant

// HeuristicRanker reorders documents without any network calls: the BM25
// retrieval score is boosted by the fraction of query terms the document
// actually contains. Ordering is stable, so documents the heuristic cannot
// separate keep their retrieval order.
type HeuristicRanker struct{}

func (HeuristicRanker) Rank(_ context.Context, query string, docs []agent.Document) ([]agent.Document, error) {
	terms := strings.Fields(strings.ToLower(query))
	type scored struct {
		doc   agent.Document
		score float64
	}
	scoredDocs := make([]scored, len(docs))
	for i, d := range docs {
		content := strings.ToLower(d.Content)
		matched := 0
		for _, term := range terms {
			if strings.Contains(content, term) {
				matched++
			}
		}
		overlap := 0.0
		if len(terms) > 0 {
			overlap = float64(matched) / float64(len(terms))
		}
		scoredDocs[i] = scored{doc: d, score: d.Score * (1 + overlap)}
	}
	sort.SliceStable(scoredDocs, func(i, j int) bool { return scoredDocs[i].score > scoredDocs[j].score })

	out := make([]agent.Document, len(scoredDocs))
	for i, s := range scoredDocs {
		s.doc.Score = s.score
		out[i] = s.doc
	}
	return out, nil
}

// Embedder is the embedding slice of the LLM provider.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingRanker fuses the BM25 retrieval order with a cosine-similarity
// order over provider embeddings using reciprocal rank fusion.
type EmbeddingRanker struct {
	Embedder Embedder
}

func (r EmbeddingRanker) Rank(ctx context.Context, query string, docs []agent.Document) ([]agent.Document, error) {
	if len(docs) == 0 {
		return docs, nil
	}
	texts := make([]string, 0, len(docs)+1)
	texts = append(texts, query)
	for _, d := range docs {
		texts = append(texts, d.Content)
	}
	vecs, err := r.Embedder.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(docs)+1 {
		return docs, nil // provider returned an unexpected shape; keep retrieval order
	}
	qvec := vecs[0]

	type ranked struct {
		idx    int
		cosine float64
	}
	byCosine := make([]ranked, len(docs))
	for i := range docs {
		byCosine[i] = ranked{idx: i, cosine: cosine(qvec, vecs[i+1])}
	}
	sort.SliceStable(byCosine, func(i, j int) bool { return byCosine[i].cosine > byCosine[j].cosine })

	// docs arrive in BM25 order, so position is the BM25 rank.
	fused := make([]float64, len(docs))
	for bm25Rank := range docs {
		fused[bm25Rank] += 1.0 / float64(rrfK+bm25Rank+1)
	}
	for cosRank, r := range byCosine {
		fused[r.idx] += 1.0 / float64(rrfK+cosRank+1)
	}

	order := make([]int, len(docs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return fused[order[i]] > fused[order[j]] })

	out := make([]agent.Document, len(docs))
	for i, idx := range order {
		d := docs[idx]
		d.Score = fused[idx]
		out[i] = d
	}
	return out, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
