// Package controller contains the controller-specific logic for the HTTP API.
package controller

import (
	"context"
	"net/http"
	"time"

	"forgerun/internal/controller/handlers"
	"forgerun/internal/controller/middleware"
)

// Server is the HTTP server for the controller API.
type Server struct {
	httpServer *http.Server
}

// New creates a new controller server. metricsHandler is mounted at
// /metrics; pass nil to skip it.
func New(addr string, store handlers.StoreFactory, metricsHandler http.Handler) *Server {
	h := handlers.New(store)
	authMW := middleware.AuthMiddleware(store)
	rateLimitMW := middleware.NewRateLimiter().Middleware()
	authenticated := func(next http.HandlerFunc) http.Handler {
		return authMW(rateLimitMW(next))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /tenants", h.CreateTenant)

	mux.Handle("POST /jobs", authenticated(h.SubmitJob))
	mux.Handle("GET /jobs/{id}", authenticated(h.GetJob))
	mux.Handle("GET /jobs/{id}/logs", authenticated(h.GetJobLogs))
	mux.Handle("GET /jobs/dlq", authenticated(h.ListDLQ))
	mux.Handle("POST /jobs/dlq/{id}/retry", authenticated(h.RetryDLQ))

	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	mux.HandleFunc("GET /stats", h.GetQueueStats)

	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
