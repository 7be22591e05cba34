package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/reflexgate/reflexgate/internal/config"
	"github.com/reflexgate/reflexgate/internal/events"
	"github.com/reflexgate/reflexgate/internal/logger"
	"github.com/reflexgate/reflexgate/internal/metrics"
	"github.com/reflexgate/reflexgate/internal/pipeline"
)

// ReadinessProbe reports whether the backing store is reachable. The
// gateway serves traffic without it, so only /ready consults the probe.
type ReadinessProbe func(ctx context.Context) error

// Server is the HTTP front of the gateway.
type Server struct {
	cfg     *config.Config
	log     *logger.Logger
	pipe    *pipeline.Pipeline
	metrics *metrics.Metrics
	hub     *events.Hub
	ready   ReadinessProbe

	router *mux.Router
	server *http.Server
}

// New assembles the router, middleware chain, and HTTP server around an
// existing pipeline. The hub may be nil when events are disabled.
func New(
	cfg *config.Config,
	pipe *pipeline.Pipeline,
	m *metrics.Metrics,
	hub *events.Hub,
	ready ReadinessProbe,
	log *logger.Logger,
) *Server {
	s := &Server{
		cfg:     cfg,
		log:     log.WithComponent("server"),
		pipe:    pipe,
		metrics: m,
		hub:     hub,
		ready:   ready,
		router:  mux.NewRouter(),
	}
	s.setupRoutes()

	var handler http.Handler = s.router
	if cfg.Server.CORS.Enabled {
		handler = cors.New(cors.Options{
			AllowedOrigins: cfg.Server.CORS.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"*"},
		}).Handler(handler)
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)

	s.router.HandleFunc("/process", s.handleProcess).Methods("POST")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/ready", s.handleReady).Methods("GET")
	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	if s.cfg.Events.Enabled && s.hub != nil {
		s.router.HandleFunc(s.cfg.Events.Path, s.handleWebSocket).Methods("GET")
	}
}

// Start starts the HTTP server and blocks until it exits.
func (s *Server) Start() error {
	s.log.Info("Starting gateway HTTP server",
		zap.String("addr", s.server.Addr),
		zap.Bool("cache", s.cfg.Cache.Enabled),
		zap.Bool("rate_limit", s.cfg.RateLimit.Enabled),
		zap.Bool("events", s.cfg.Events.Enabled),
	)
	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server, draining in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Stopping gateway HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler returns the fully wrapped handler. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
