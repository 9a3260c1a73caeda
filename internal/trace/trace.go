package trace

import (
	"time"

	"github.com/google/uuid"
)

// StepRecord captures one instrumented tool invocation inside a trace:
// the inputs it was called with, the outputs it produced, and its timing.
// A record with a nil EndTime belongs to a step that is still running.
type StepRecord struct {
	StepName   string                 `json:"step_name"`
	Inputs     map[string]interface{} `json:"inputs"`
	Outputs    map[string]interface{} `json:"outputs"`
	StartTime  time.Time              `json:"start_time"`
	EndTime    *time.Time             `json:"end_time,omitempty"`
	DurationMS *float64               `json:"duration_ms,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Trace is the durable record of one end-to-end pipeline execution. A trace
// with a nil EndTime is active; Seal fixes the end time and final response
// exactly once. Mutation is owned by the Tracker; nothing else should touch
// a trace after it has been handed out.
type Trace struct {
	TraceID       string                 `json:"trace_id"`
	Query         string                 `json:"query"`
	StartTime     time.Time              `json:"start_time"`
	EndTime       *time.Time             `json:"end_time,omitempty"`
	DurationMS    *float64               `json:"duration_ms,omitempty"`
	Steps         []*StepRecord          `json:"steps"`
	FinalResponse *string                `json:"final_response,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// New creates an active trace for the given query with a fresh random id.
func New(query string, metadata map[string]interface{}) *Trace {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return &Trace{
		TraceID:   uuid.NewString(),
		Query:     query,
		StartTime: time.Now(),
		Steps:     []*StepRecord{},
		Metadata:  metadata,
	}
}

// AddStep appends a new step record with the given inputs and returns it so
// the caller can complete it later. Outputs start empty.
func (t *Trace) AddStep(stepName string, inputs map[string]interface{}) *StepRecord {
	step := &StepRecord{
		StepName:  stepName,
		Inputs:    inputs,
		Outputs:   map[string]interface{}{},
		StartTime: time.Now(),
		Metadata:  map[string]interface{}{},
	}
	t.Steps = append(t.Steps, step)
	return step
}

// CompleteStep fills a step's outputs and stamps its end time. The duration
// is always derived from the step's original start time, so calling this a
// second time extends the window rather than resetting it.
func (t *Trace) CompleteStep(step *StepRecord, outputs map[string]interface{}) {
	now := time.Now()
	step.Outputs = outputs
	step.EndTime = &now
	ms := float64(now.Sub(step.StartTime)) / float64(time.Millisecond)
	step.DurationMS = &ms
}

// Step returns the step record with the given name, or nil if none exists.
func (t *Trace) Step(stepName string) *StepRecord {
	for _, s := range t.Steps {
		if s.StepName == stepName {
			return s
		}
	}
	return nil
}

// Sealed reports whether the trace has been completed.
func (t *Trace) Sealed() bool { return t.EndTime != nil }

// Seal completes the trace with the final response. Sealing an already
// sealed trace is a no-op so timing data can never be rewritten.
func (t *Trace) Seal(finalResponse string) {
	if t.Sealed() {
		return
	}
	now := time.Now()
	t.EndTime = &now
	ms := float64(now.Sub(t.StartTime)) / float64(time.Millisecond)
	t.DurationMS = &ms
	t.FinalResponse = &finalResponse
}
