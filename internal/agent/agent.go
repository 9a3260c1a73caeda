package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/opsrig/rootcause/internal/trace"
)

// Stage names in pipeline order. Step records on a trace appear in exactly
// this order for a successful run.
const (
	StageRetrieve = "retrieve"
	StageRank     = "rank"
	StageGenerate = "generate"
	StepError     = "error"
)

var agentTracer oteltrace.Tracer = otel.Tracer("rootcause/internal/agent")

// Agent sequences the retrieve → rank → generate pipeline, instrumenting
// every stage through the workflow tracker. It does no retrying of its own;
// retry and backoff belong to the tools behind the interfaces.
type Agent struct {
	retriever Retriever
	ranker    Ranker
	generator Generator
	tracker   *trace.Tracker
	logger    *log.Logger
}

// New wires an agent from its collaborators. All of them are required.
func New(retriever Retriever, ranker Ranker, generator Generator, tracker *trace.Tracker) *Agent {
	return &Agent{
		retriever: retriever,
		ranker:    ranker,
		generator: generator,
		tracker:   tracker,
		logger:    log.New(log.Writer(), "[AGENT] ", log.LstdFlags),
	}
}

// Process runs the full pipeline for one query. On success the returned
// Result carries the trace id; on failure the trace records an error step
// and is sealed before the original stage error is returned. Partial stage
// output never leaks into the error path's return value, only into the
// trace.
func (a *Agent) Process(ctx context.Context, query string) (Result, error) {
	started := time.Now()
	ctx, span := agentTracer.Start(ctx, "agent.process",
		oteltrace.WithAttributes(attribute.Int("query.length", len(query))))
	defer span.End()

	traceID := a.tracker.StartTrace(query, nil)
	span.SetAttributes(attribute.String("trace.id", traceID))

	var toolsUsed []string
	fail := func(stage string, err error) (Result, error) {
		a.tracker.TrackStep(traceID, StepError,
			map[string]interface{}{"query": query},
			map[string]interface{}{"error": err.Error()},
			map[string]interface{}{
				"error_type":   fmt.Sprintf("%T", err),
				"failed_stage": stage,
				"tools_used":   toolsUsed,
			})
		a.tracker.CompleteTrace(ctx, traceID, "Error: "+err.Error())
		queriesTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, fmt.Errorf("%s failed: %w", stage, err)
	}

	// Stage 1: retrieve
	retrieveInputs := map[string]interface{}{"query": query}
	a.tracker.TrackStep(traceID, StageRetrieve, retrieveInputs,
		map[string]interface{}{}, map[string]interface{}{"tool_name": StageRetrieve})

	stageStart := time.Now()
	docs, err := a.retriever.Retrieve(ctx, query)
	if err != nil {
		return fail(StageRetrieve, err)
	}
	stageDuration.WithLabelValues(StageRetrieve).Observe(time.Since(stageStart).Seconds())
	documentsRetrieved.Observe(float64(len(docs)))

	a.tracker.TrackStep(traceID, StageRetrieve, retrieveInputs,
		map[string]interface{}{"documents": docs},
		map[string]interface{}{"tool_name": StageRetrieve, "document_count": len(docs)})
	toolsUsed = append(toolsUsed, StageRetrieve)

	// Stage 2: rank
	rankInputs := map[string]interface{}{"query": query, "document_count": len(docs)}
	a.tracker.TrackStep(traceID, StageRank, rankInputs,
		map[string]interface{}{}, map[string]interface{}{"tool_name": StageRank})

	stageStart = time.Now()
	ranked, err := a.ranker.Rank(ctx, query, docs)
	if err != nil {
		return fail(StageRank, err)
	}
	stageDuration.WithLabelValues(StageRank).Observe(time.Since(stageStart).Seconds())

	a.tracker.TrackStep(traceID, StageRank, rankInputs,
		map[string]interface{}{"documents": ranked},
		map[string]interface{}{"tool_name": StageRank, "document_count": len(ranked)})
	toolsUsed = append(toolsUsed, StageRank)

	// Stage 3: generate
	generateInputs := map[string]interface{}{"query": query, "document_count": len(ranked)}
	a.tracker.TrackStep(traceID, StageGenerate, generateInputs,
		map[string]interface{}{}, map[string]interface{}{"tool_name": StageGenerate})

	stageStart = time.Now()
	gen, err := a.generator.Generate(ctx, query, ranked)
	if err != nil {
		return fail(StageGenerate, err)
	}
	stageDuration.WithLabelValues(StageGenerate).Observe(time.Since(stageStart).Seconds())

	a.tracker.TrackStep(traceID, StageGenerate, generateInputs,
		map[string]interface{}{
			"response":         gen.Response,
			"citation_indices": gen.CitationIndices,
			"confidence_score": gen.Confidence,
		},
		map[string]interface{}{"tool_name": StageGenerate})
	toolsUsed = append(toolsUsed, StageGenerate)

	a.tracker.CompleteTrace(ctx, traceID, gen.Response)
	queriesTotal.WithLabelValues("ok").Inc()
	span.SetAttributes(
		attribute.Int("documents.count", len(ranked)),
		attribute.Float64("confidence", gen.Confidence),
	)
	span.SetStatus(codes.Ok, "completed")
	a.logger.Printf("processed query in %v (trace %s, %d documents)", time.Since(started), traceID, len(ranked))

	return Result{
		Query:           query,
		TraceID:         traceID,
		Response:        gen.Response,
		CitationIndices: gen.CitationIndices,
		Documents:       ranked,
		Confidence:      gen.Confidence,
	}, nil
}
