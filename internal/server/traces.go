package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/opsrig/rootcause/internal/trace"
)

const defaultRecentLimit = 10

// TracesHandler serves the trace retrieval API for tooling and
// visualization.
type TracesHandler struct {
	Tracker *trace.Tracker
}

func (h *TracesHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.GET("/:id/timeline", h.timeline)
}

func (h *TracesHandler) get(c echo.Context) error {
	t := h.Tracker.GetTrace(c.Request().Context(), c.Param("id"))
	if t == nil {
		return echo.NewHTTPError(http.StatusNotFound, "trace not found")
	}
	return c.JSON(http.StatusOK, t)
}

func (h *TracesHandler) list(c echo.Context) error {
	limit := defaultRecentLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	traces := h.Tracker.RecentTraces(c.Request().Context(), limit)
	if traces == nil {
		traces = []*trace.Trace{}
	}
	return c.JSON(http.StatusOK, traces)
}

// timeline flattens a trace into per-step offsets and durations relative to
// the trace start, which is all the visualization UI needs.
func (h *TracesHandler) timeline(c echo.Context) error {
	t := h.Tracker.GetTrace(c.Request().Context(), c.Param("id"))
	if t == nil {
		return echo.NewHTTPError(http.StatusNotFound, "trace not found")
	}

	resp := TimelineResponse{
		TraceID: t.TraceID,
		Query:   t.Query,
		Sealed:  t.Sealed(),
		Steps:   make([]TimelineEntry, 0, len(t.Steps)),
	}
	if t.DurationMS != nil {
		resp.TotalDurationMS = *t.DurationMS
	}
	for _, s := range t.Steps {
		entry := TimelineEntry{
			StepName:  s.StepName,
			OffsetMS:  float64(s.StartTime.Sub(t.StartTime).Milliseconds()),
			Completed: s.EndTime != nil,
		}
		if s.DurationMS != nil {
			entry.DurationMS = *s.DurationMS
		}
		resp.Steps = append(resp.Steps, entry)
	}
	return c.JSON(http.StatusOK, resp)
}
