package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-health/heron/internal/domain"
	"github.com/opensource-health/heron/internal/fraud"
	"github.com/opensource-health/heron/internal/pipeline"
	"github.com/opensource-health/heron/internal/policy"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, adjudicator *pipeline.Adjudicator, repo domain.Repository, cache domain.Cache, policySvc *policy.Service, engine *fraud.Engine, version string) *Server {
	handler := NewHandler(adjudicator, repo, cache, policySvc, engine, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (tenant required)
	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)
		r.Use(RateLimitMiddleware(cache, cfg.RateLimitPerMinute, time.Minute))

		// Claim adjudication
		r.Post("/claims", handler.SubmitClaim)
		r.Get("/claims", handler.ListClaims)
		r.Get("/claims/{id}", handler.GetClaim)
		r.Post("/claims/{id}/appeal", handler.FileAppeal)

		// Appeal retrieval
		r.Get("/appeals/{id}", handler.GetAppeal)

		// Policy terms
		r.Get("/policy/terms", handler.GetPolicyTerms)
		r.Put("/policy/terms", handler.UpdatePolicyTerms)
		r.Get("/policy/exclusions", handler.GetExclusions)
		r.Get("/policy/network-hospitals", handler.GetNetworkHospitals)

		// Fraud rule management
		r.Get("/fraud/rules", handler.ListFraudRules)
		r.Get("/fraud/rules/{id}", handler.GetFraudRule)
		r.Post("/fraud/rules", handler.CreateFraudRule)
		r.Post("/fraud/rules/reload", handler.ReloadFraudRules)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
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
