// Package api exposes the credential and session lifecycle over HTTP.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/casetrail/authd/pkg/auth"
	"github.com/casetrail/authd/pkg/observability"
)

// Server wires the auth service into HTTP routes
type Server struct {
	service *auth.Service
	router  *mux.Router
	log     *observability.Logger
	metrics *observability.Metrics
}

// NewServer creates the API server and registers its routes
func NewServer(service *auth.Service, log *observability.Logger, metrics *observability.Metrics) *Server {
	s := &Server{
		service: service,
		router:  mux.NewRouter(),
		log:     log,
		metrics: metrics,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/register", s.handleRegister).Methods("POST")
	s.router.HandleFunc("/login", s.handleLogin).Methods("POST")
	s.router.HandleFunc("/refresh", s.handleRefresh).Methods("POST")
	s.router.HandleFunc("/verify-email", s.handleVerifyEmail).Methods("POST")

	// Logout validates the bearer token itself so it can revoke the
	// exact token presented.
	s.router.HandleFunc("/logout", s.handleLogout).Methods("POST")

	s.router.Handle("/me", s.RequireAuth(http.HandlerFunc(s.handleMe))).Methods("GET")
}

// Handler returns the server's handler with the standard middleware
// chain applied.
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		observability.RequestIDMiddleware,
		observability.RequestLoggerMiddleware(s.log),
		observability.RecoveryMiddleware(s.log),
	}
	if s.metrics != nil {
		middlewares = append(middlewares, observability.MetricsMiddleware(s.metrics))
	}
	return observability.Chain(middlewares...)(withRequestInfo(s.router))
}

// Router exposes the bare router for tests
func (s *Server) Router() *mux.Router {
	return s.router
}
