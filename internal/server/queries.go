package server

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/opsrig/rootcause/internal/agent"
)

// Processor runs the analysis pipeline for one query.
type Processor interface {
	Process(ctx context.Context, query string) (agent.Result, error)
}

// QueryHandler exposes the pipeline over HTTP.
type QueryHandler struct {
	Agent  Processor
	Logger *log.Logger
}

func NewQueryHandler(p Processor) *QueryHandler {
	return &QueryHandler{
		Agent:  p,
		Logger: log.New(log.Writer(), "[QUERY] ", log.LstdFlags),
	}
}

func (h *QueryHandler) Register(g *echo.Group) {
	g.POST("", h.query)
}

func (h *QueryHandler) query(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	result, err := h.Agent.Process(c.Request().Context(), req.Query)
	if err != nil {
		h.Logger.Printf("pipeline failed: %v", err)
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}
