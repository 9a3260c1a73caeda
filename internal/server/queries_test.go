package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/opsrig/rootcause/internal/agent"
)

type stubProcessor struct {
	result agent.Result
	err    error
	seen   string
}

func (s *stubProcessor) Process(_ context.Context, query string) (agent.Result, error) {
	s.seen = query
	return s.result, s.err
}

func newQueryServer(p Processor) *echo.Echo {
	e := echo.New()
	NewQueryHandler(p).Register(e.Group("/api/query"))
	return e
}

func TestQueryEndpointReturnsResult(t *testing.T) {
	proc := &stubProcessor{result: agent.Result{
		Query:      "why is checkout slow",
		TraceID:    "trace-1",
		Response:   "dns resolution regressed",
		Confidence: 0.7,
	}}
	e := newQueryServer(proc)

	req := httptest.NewRequest(http.MethodPost, "/api/query",
		strings.NewReader(`{"query":"why is checkout slow"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if proc.seen != "why is checkout slow" {
		t.Fatalf("handler must pass the query through, saw %q", proc.seen)
	}
	var result agent.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.TraceID != "trace-1" || result.Response != "dns resolution regressed" {
		t.Fatalf("unexpected body %+v", result)
	}
}

func TestQueryEndpointRejectsEmptyQuery(t *testing.T) {
	e := newQueryServer(&stubProcessor{})

	for _, body := range []string{`{"query":""}`, `{"query":"   "}`, `{}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestQueryEndpointMapsPipelineFailure(t *testing.T) {
	e := newQueryServer(&stubProcessor{err: errors.New("retrieve failed: index unavailable")})

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"q"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}
