package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/restrack/restrack-ai/internal/analytics"
	"github.com/restrack/restrack-ai/internal/audit"
	"github.com/restrack/restrack-ai/internal/db"
	"github.com/restrack/restrack-ai/internal/metrics"
	"github.com/restrack/restrack-ai/internal/middleware"
)

// Deps are the collaborators the server exposes over HTTP.
type Deps struct {
	Store    db.Store
	Pipeline *analytics.Pipeline
	// Hub streams run summaries; the pipeline should publish to the same hub.
	Hub   *Hub
	Audit audit.Logger
}

// Server represents the restrack-ai HTTP server
type Server struct {
	config *Config

	// Core components
	store    db.Store
	pipeline *analytics.Pipeline
	hub      *Hub
	audit    audit.Logger
	log      *zap.Logger
	limiter  *middleware.RateLimiter
	handler  http.Handler

	// HTTP server
	httpServer *http.Server

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// State
	mu      sync.RWMutex
	running bool
}

// NewServer creates a new server
func NewServer(cfg *Config, deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if deps.Pipeline == nil {
		return nil, errors.New("pipeline cannot be nil")
	}
	if deps.Audit == nil {
		deps.Audit = audit.NewNopLogger(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if deps.Hub == nil {
		deps.Hub = NewHub(ctx)
	}

	s := &Server{
		config:   cfg.withDefaults(),
		store:    deps.Store,
		pipeline: deps.Pipeline,
		hub:      deps.Hub,
		audit:    deps.Audit,
		log:      deps.Audit.App(),
		ctx:      ctx,
		cancel:   cancel,
	}
	if s.config.RateLimitEnabled {
		s.limiter = middleware.NewRateLimiter(s.config.RequestsPerSecond, s.config.RateLimitBurst, "/health", "/ready", "/metrics")
	}
	s.handler = s.buildHandler()
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the hub, the scheduler and the HTTP listener.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run()
	}()
	s.pipeline.Start(s.ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("HTTP server error", zap.Error(err))
			s.cancel()
		}
	}()

	_ = s.audit.Log(s.ctx, audit.NewEvent(audit.EventServerStarted).
		WithResult(audit.ResultSuccess).
		WithMetadata("addr", s.httpServer.Addr).
		WithMetadata("version", s.config.Version).
		WithDescription("restrack-ai server started"))
	s.log.Info("Server started",
		zap.String("addr", s.httpServer.Addr),
		zap.String("version", s.config.Version),
		zap.Bool("rate_limit", s.config.RateLimitEnabled))
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is not running")
	}
	s.running = false
	s.mu.Unlock()

	s.log.Info("Stopping server")

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("Error shutting down HTTP server", zap.Error(err))
		}
	}

	s.pipeline.Stop()
	s.hub.Stop()
	if s.limiter != nil {
		s.limiter.Stop()
	}
	s.cancel()
	s.wg.Wait()

	_ = s.audit.Log(context.Background(), audit.NewEvent(audit.EventServerShutdown).
		WithResult(audit.ResultSuccess).
		WithDescription("restrack-ai server stopped"))
	s.log.Info("Server stopped")
	return nil
}

// Wait blocks until the server is stopped or its listener fails.
func (s *Server) Wait() {
	<-s.ctx.Done()
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

const apiPrefix = "/api/v1"

// buildHandler registers routes and wraps them with the middleware chain:
// CORS → tracing → router (request ID → recovery → logging → rate limit).
func (s *Server) buildHandler() http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.RequestID, middleware.Recovery(s.log), middleware.Logging(s.log))

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/ws/analysis", s.handleWebSocket).Methods(http.MethodGet)

	// API routes sit on the root router so that a known path with the wrong
	// method reaches MethodNotAllowedHandler; a subrouter reports 404.
	api := func(method, path string, h http.HandlerFunc) {
		var handler http.Handler = h
		if s.limiter != nil {
			handler = s.limiter.Middleware(handler)
		}
		router.Handle(apiPrefix+path, handler).Methods(method)
	}
	api(http.MethodPost, "/analysis/run", s.handleRunAnalysis)
	api(http.MethodPost, "/analysis/evaluate", s.handleEvaluate)
	api(http.MethodGet, "/analysis/runs", s.handleListRuns)
	api(http.MethodGet, "/analysis/runs/{id}", s.handleGetRun)
	api(http.MethodPost, "/analysis/kitchens", s.handleKitchens)
	api(http.MethodPost, "/analysis/disposals", s.handleDisposals)
	api(http.MethodPost, "/analysis/locations", s.handleLocations)
	api(http.MethodGet, "/anomalies/events", s.handleAnomalyEvents)
	api(http.MethodGet, "/anomalies/summary", s.handleAnomalySummary)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	c := cors.New(cors.Options{
		AllowedOrigins: corsOrigins(s.config.AllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader, middleware.TraceIDHeader, "Retry-After"},
	})
	return c.Handler(middleware.Tracing(router))
}
