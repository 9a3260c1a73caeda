package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/opsrig/rootcause/internal/agent"
	"github.com/opsrig/rootcause/provider"
)

const systemPrompt = `You are a root cause analysis assistant. You answer questions about
incidents using only the numbered context documents provided. Cite the
documents you relied on by their zero-based index.

Respond ONLY with valid JSON in the following format:
{
  "response": "your answer",
  "citation_indices": [0, 2],
  "confidence_score": 0.0
}
confidence_score is your confidence in the answer between 0 and 1. If the
documents do not contain the answer, say so in response and use a low
confidence_score.`

// Generator produces cited answers from ranked documents via the LLM
// provider.
type Generator struct {
	llm provider.Provider
}

func New(llm provider.Provider) *Generator {
	return &Generator{llm: llm}
}

func (g *Generator) Generate(ctx context.Context, query string, docs []agent.Document) (agent.Generation, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nContext documents:\n", query)
	for i, d := range docs {
		title := ""
		if t, ok := d.Metadata["title"].(string); ok && t != "" {
			title = " (" + t + ")"
		}
		fmt.Fprintf(&b, "[%d]%s %s\n\n", i, title, d.Content)
	}

	raw, err := g.llm.Complete(ctx, systemPrompt, b.String())
	if err != nil {
		return agent.Generation{}, fmt.Errorf("completion failed: %w", err)
	}

	gen, err := parseGeneration(raw, len(docs))
	if err != nil {
		return agent.Generation{}, fmt.Errorf("parsing model output: %w", err)
	}
	return gen, nil
}

// parseGeneration decodes the model's JSON reply, tolerating markdown code
// fences, clamping confidence to [0,1] and dropping out-of-range citation
// indices.
func parseGeneration(raw string, docCount int) (agent.Generation, error) {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	var gen agent.Generation
	if err := json.Unmarshal([]byte(cleaned), &gen); err != nil {
		return agent.Generation{}, err
	}
	if gen.Response == "" {
		return agent.Generation{}, fmt.Errorf("empty response field")
	}
	if gen.Confidence < 0 {
		gen.Confidence = 0
	}
	if gen.Confidence > 1 {
		gen.Confidence = 1
	}
	valid := gen.CitationIndices[:0]
	for _, idx := range gen.CitationIndices {
		if idx >= 0 && idx < docCount {
			valid = append(valid, idx)
		}
	}
	gen.CitationIndices = valid
	return gen, nil
}
