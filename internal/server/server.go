package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/opsrig/rootcause/config"
	"github.com/opsrig/rootcause/internal/agent"
	"github.com/opsrig/rootcause/internal/generate"
	"github.com/opsrig/rootcause/internal/index"
	"github.com/opsrig/rootcause/internal/runtime"
	"github.com/opsrig/rootcause/internal/store"
	"github.com/opsrig/rootcause/internal/trace"
	"github.com/opsrig/rootcause/provider"
)

// BuildTracker constructs the workflow tracker with every backend enabled
// in the config registered. The returned cleanup releases backend
// resources and must be called on shutdown. The Postgres store is returned
// when that backend is enabled so the auth layer can share the connection.
func BuildTracker(ctx context.Context, cfg *config.Config) (*trace.Tracker, *store.Store, func(), error) {
	tracker := trace.NewTracker()
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if cfg.Tracking.Memory.Enabled {
		tracker.RegisterBackend(ctx, trace.NewMemoryBackend(cfg.Tracking.Memory.Capacity))
	}
	if cfg.Tracking.File.Enabled {
		fb, err := trace.NewFileBackend(cfg.Tracking.File.Directory)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		if cfg.Tracking.File.PruneSchedule != "" {
			if err := fb.StartPruneLoop(cfg.Tracking.File.PruneSchedule, cfg.Tracking.File.MaxAge); err != nil {
				cleanup()
				return nil, nil, nil, err
			}
		}
		cleanups = append(cleanups, fb.Close)
		tracker.RegisterBackend(ctx, fb)
	}
	if cfg.Tracking.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.Tracking.Redis.Addr(),
			Password:    cfg.Tracking.Redis.Password,
			DB:          cfg.Tracking.Redis.DB,
			DialTimeout: cfg.Tracking.Redis.Timeout,
		})
		rb, err := trace.NewRedisBackend(ctx, client, cfg.Tracking.Redis.TTL, cfg.Tracking.Redis.MaxRecent)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		cleanups = append(cleanups, func() { _ = client.Close() })
		tracker.RegisterBackend(ctx, rb)
	}

	var st *store.Store
	if cfg.Tracking.Postgres.Enabled {
		dsn, err := cfg.Tracking.Postgres.DSN()
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		st, err = store.NewWithDSN(ctx, dsn)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		cleanups = append(cleanups, func() { _ = st.Close() })
		tracker.RegisterBackend(ctx, trace.NewPostgresBackend(st))
	}

	return tracker, st, cleanup, nil
}

// BuildAgent wires the retrieval index, the configured ranker, and the LLM
// generator into a pipeline agent.
func BuildAgent(cfg *config.Config, tracker *trace.Tracker) (*agent.Agent, *index.Index, error) {
	ix, err := index.Open(cfg.Retrieval.IndexPath, cfg.Retrieval.TopK)
	if err != nil {
		return nil, nil, err
	}

	llm, err := provider.New(provider.Client(cfg.LLM.Provider), provider.Options{
		APIKey:          cfg.LLM.APIKey,
		CompletionModel: cfg.LLM.CompletionModel,
		EmbeddingModel:  cfg.LLM.EmbeddingModel,
		Temperature:     cfg.LLM.Temperature,
		MaxTokens:       cfg.LLM.MaxTokens,
		Timeout:         cfg.LLM.Timeout,
	})
	if err != nil {
		_ = ix.Close()
		return nil, nil, fmt.Errorf("creating LLM provider: %w", err)
	}

	var ranker agent.Ranker
	switch cfg.Retrieval.Ranker {
	case "embedding":
		ranker = index.EmbeddingRanker{Embedder: llm}
	default:
		ranker = index.HeuristicRanker{}
	}

	return agent.New(ix, ranker, generate.New(llm), tracker), ix, nil
}

// Run starts the HTTP API.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()
	tracker, st, cleanup, err := BuildTracker(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ag, ix, err := BuildAgent(cfg, tracker)
	if err != nil {
		return err
	}
	defer ix.Close()

	api := e.Group("/api")

	queryGroup := api.Group("/query")
	if cfg.Server.JWTSecret != "" {
		if st == nil {
			return fmt.Errorf("auth requires the postgres backend (tracking.postgres) for the users table")
		}
		auth := &AuthHandler{Store: st, Secret: []byte(cfg.Server.JWTSecret)}
		auth.Register(api.Group("/auth"))
		queryGroup.Use(runtime.EchoAuthMiddleware(auth.Secret))
	}
	NewQueryHandler(ag).Register(queryGroup)

	th := &TracesHandler{Tracker: tracker}
	th.Register(api.Group("/traces"))

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":8080"
	}
	baseLogger.Printf("listening on %s", addr)
	return e.Start(addr)
}
