// Package api exposes the service's REST surface: onboarding, report
// generation and the tenant read paths. All routes under /v1 require a
// verified bearer token.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/safesight/hseai/pkg/auth"
	"github.com/safesight/hseai/pkg/httputil"
	"github.com/safesight/hseai/pkg/middleware"
	"github.com/safesight/hseai/pkg/observability"
	"github.com/safesight/hseai/pkg/reports"
	"github.com/safesight/hseai/pkg/tenant"
)

// Server represents the API server
type Server struct {
	router    *mux.Router
	logger    *observability.Logger
	metrics   *observability.Metrics
	tenants   tenant.Service
	reports   reports.Store
	generator *reports.Generator
}

// NewServer creates a new API server
func NewServer(
	logger *observability.Logger,
	metrics *observability.Metrics,
	verifier auth.TokenVerifier,
	tenants tenant.Service,
	reportStore reports.Store,
	generator *reports.Generator,
) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		logger:    logger,
		metrics:   metrics,
		tenants:   tenants,
		reports:   reportStore,
		generator: generator,
	}
	s.setupRoutes(verifier)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(verifier auth.TokenVerifier) {
	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.LoggingMiddleware(s.logger))
	s.router.Use(httputil.RecoveryMiddleware)

	authMW := middleware.NewAuthMiddleware(verifier)

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.Use(authMW.Handler)

	v1.Handle("/onboarding", s.instrument("/v1/onboarding", s.handleOnboarding)).Methods("POST")
	v1.Handle("/reports/generate", s.instrument("/v1/reports/generate", s.handleGenerateReport)).Methods("POST")
	v1.Handle("/reports", s.instrument("/v1/reports", s.handleListReports)).Methods("GET")
	v1.Handle("/me", s.instrument("/v1/me", s.handleGetMe)).Methods("GET")
	v1.Handle("/usage", s.instrument("/v1/usage", s.handleGetUsage)).Methods("GET")
}

func (s *Server) instrument(path string, handler http.HandlerFunc) http.Handler {
	if s.metrics == nil {
		return handler
	}
	return s.metrics.InstrumentHandler(path, handler)
}

// Router returns the configured HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}
