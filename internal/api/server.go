package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	deps    Dependencies
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, version string) *Server {
	handler := NewHandler(deps, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)
	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(MetricsMiddleware(deps.Metrics))
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5))

	// Service endpoints
	router.Get("/", handler.Root)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	// Prediction engine
	router.Post("/predict", handler.Predict)
	router.Get("/preset", handler.Preset)

	// Game API
	router.Route("/api", func(r chi.Router) {
		r.Get("/user/{username}", handler.GetUser)
		r.Get("/user/{username}/events", handler.GetUserEvents)

		r.Get("/missions", handler.ListMissions)
		r.Post("/missions/start", handler.StartMission)
		r.Get("/missions/check/{id}", handler.CheckMission)
		r.Post("/missions/predict", handler.PredictMission)
	})

	return &Server{
		router:  router,
		handler: handler,
		deps:    deps,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	cfg := s.deps.Config
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
