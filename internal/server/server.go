// Package server provides the HTTP server and routing for the growth service.
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

	"github.com/Jgorzitza/hotdash/internal/config"
	"github.com/Jgorzitza/hotdash/internal/di"
	actionshandlers "github.com/Jgorzitza/hotdash/internal/modules/actions/handlers"
	attributionhandlers "github.com/Jgorzitza/hotdash/internal/modules/attribution/handlers"
	rankinghandlers "github.com/Jgorzitza/hotdash/internal/modules/ranking/handlers"
	"github.com/Jgorzitza/hotdash/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container    // DI container with all services
	Jobs      *di.JobInstances // scheduled jobs exposed for manual triggering
	BaseCtx   context.Context  // parent of background work started by requests
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	container      *di.Container
	jobs           *di.JobInstances
	baseCtx        context.Context
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	baseCtx := cfg.BaseCtx
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg.Config,
		container: cfg.Container,
		jobs:      cfg.Jobs,
		baseCtx:   baseCtx,
	}

	s.systemHandlers = NewSystemHandlers(
		cfg.Log,
		cfg.Container.GrowthDB,
		cfg.Container.ActionRepo,
		cfg.Jobs.NightlyReranking,
		cfg.Container.RunRepo,
		cfg.Container.SnapshotArchiver != nil,
	)

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Long-lived websocket, registered outside the timeout group
		queueStream := NewQueueStreamHandler(s.container.EventBus, s.log)
		r.Get("/queue/stream", queueStream.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			if !s.cfg.DevMode {
				r.Use(middleware.Compress(5))
			}

			// System status
			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.systemHandlers.HandleSystemStatus)
				r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
			})

			// Action queue intake and lifecycle
			actionsHandler := actionshandlers.NewHandler(s.container.ActionService, s.log)
			actionsHandler.RegisterRoutes(r)

			// Ranked queue and published snapshots
			rankingHandler := rankinghandlers.NewHandler(
				s.container.ActionService,
				s.container.SnapshotRepo,
				s.cfg.Reranking.ProvenROIThreshold,
				s.log,
			)
			rankingHandler.RegisterRoutes(r)

			// Multi-touch attribution
			attributionHandler := attributionhandlers.NewHandler(s.log)
			attributionHandler.RegisterRoutes(r)

			// Nightly job control
			jobsHandler := scheduler.NewHandler(s.baseCtx, s.jobs.NightlyReranking, s.container.RunRepo, s.log)
			jobsHandler.RegisterRoutes(r)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
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
