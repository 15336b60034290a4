// Package server provides the HTTP server and routing for the risk governor.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/riskgovernor/internal/di"
	enginehandlers "github.com/aristath/riskgovernor/internal/engine/handlers"
	caseshandlers "github.com/aristath/riskgovernor/internal/modules/cases/handlers"
	decisionshandlers "github.com/aristath/riskgovernor/internal/modules/decisions/handlers"
	overrideshandlers "github.com/aristath/riskgovernor/internal/modules/overrides/handlers"
)

const requestTimeout = 60 * time.Second

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Addr      string
	DevMode   bool
	Container *di.Container // DI container with all services
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	container *di.Container
	origins   []string
	system    *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	origins := []string{"*"}
	if cfg.Container.Config != nil && len(cfg.Container.Config.AllowedOrigins) > 0 {
		origins = cfg.Container.Config.AllowedOrigins
	}

	var jobs JobRunner
	if cfg.Container.Scheduler != nil {
		jobs = cfg.Container.Scheduler
	}

	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		container: cfg.Container,
		origins:   origins,
		system:    NewSystemHandlers(cfg.Container.DB, cfg.Container.Registry, jobs, cfg.Log),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout (streams are long-lived)
	s.router.Use(unlessStream(middleware.Timeout(requestTimeout)))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(unlessStream(middleware.Compress(5)))
	}
}

func (s *Server) setupRoutes() {
	c := s.container

	s.router.Get("/health", s.system.HandleHealth)
	s.router.Get("/skills", s.system.HandleSkills)
	s.router.Route("/jobs", func(r chi.Router) {
		r.Get("/", s.system.HandleListJobs)
		r.Post("/{name}", s.system.HandleRunJob)
	})
	if c.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", c.Metrics.Handler())
	}
	s.router.Method(http.MethodGet, "/events/stream", NewEventsStreamHandler(c.Bus, s.log))

	caseshandlers.NewHandler(c.CaseService, s.log).RegisterRoutes(s.router)
	enginehandlers.NewHandler(c.Engine, s.log).RegisterRoutes(s.router)
	decisionshandlers.NewHandler(c.DecisionRepo, c.Bus, s.origins, s.log).RegisterRoutes(s.router)
	overrideshandlers.NewHandler(c.OverrideService, s.log).RegisterRoutes(s.router)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
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

// unlessStream skips mw for websocket and SSE endpoints
func unlessStream(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		wrapped := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/stream") {
				next.ServeHTTP(w, r)
				return
			}
			wrapped.ServeHTTP(w, r)
		})
	}
}
