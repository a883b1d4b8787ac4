package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/dmounsey/gridlight/internal/config"
	"github.com/dmounsey/gridlight/internal/modules/history"
	"github.com/dmounsey/gridlight/internal/modules/intensity"
	"github.com/dmounsey/gridlight/internal/modules/stats"
	"github.com/dmounsey/gridlight/internal/modules/status"
	"github.com/dmounsey/gridlight/internal/pipeline"
	"github.com/dmounsey/gridlight/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Port    int
	Log     zerolog.Logger
	DevMode bool

	Cycle     *pipeline.Cycle
	Status    *status.Engine
	Stats     *stats.Engine
	Store     *history.Store
	Table     *intensity.Table
	Fuels     *config.Fuels
	Scheduler *scheduler.Scheduler

	// Jobs exposed for manual triggering. May be nil until main.go
	// registers them.
	PollJob  scheduler.Job
	StatsJob scheduler.Job

	// CorrelationWindow is the default sample window for the
	// correlations and trend endpoints.
	CorrelationWindow int
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	port   int

	cycle     *pipeline.Cycle
	status    *status.Engine
	stats     *stats.Engine
	store     *history.Store
	table     *intensity.Table
	fuels     *config.Fuels
	scheduler *scheduler.Scheduler
	pollJob   scheduler.Job
	statsJob  scheduler.Job

	correlationWindow int
	startedAt         time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:            chi.NewRouter(),
		log:               cfg.Log.With().Str("component", "server").Logger(),
		port:              cfg.Port,
		cycle:             cfg.Cycle,
		status:            cfg.Status,
		stats:             cfg.Stats,
		store:             cfg.Store,
		table:             cfg.Table,
		fuels:             cfg.Fuels,
		scheduler:         cfg.Scheduler,
		pollJob:           cfg.PollJob,
		statsJob:          cfg.StatsJob,
		correlationWindow: cfg.CorrelationWindow,
		startedAt:         time.Now(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.handleHealth)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		// Latest pipeline outputs
		r.Get("/intensity", s.handleIntensity)
		r.Get("/status", s.handleStatus)

		// Configuration and history
		r.Get("/fuels", s.handleFuels)
		r.Get("/history", s.handleHistory)

		// Statistics
		r.Get("/correlations", s.handleCorrelations)
		r.Get("/trend", s.handleTrend)

		// System
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.handleSystemStatus)
			r.Post("/poll", s.handleTriggerPoll)
			r.Post("/stats", s.handleTriggerStats)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
