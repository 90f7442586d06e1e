// Package controller contains the controller-specific logic for the HTTP API.
package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"taskplane/internal/auth"
	"taskplane/internal/controller/handlers"
	"taskplane/internal/controller/middleware"
)

// Server is the HTTP server for the controller API.
type Server struct {
	httpServer *http.Server
}

// New creates a new controller server. metrics may be nil.
func New(addr string, engine handlers.Dispatcher, verifier *auth.Verifier, metrics http.Handler, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      NewHandler(engine, verifier, metrics, logger),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// NewHandler builds the routed handler. Probes and metrics are public,
// everything else requires the API key.
func NewHandler(engine handlers.Dispatcher, verifier *auth.Verifier, metrics http.Handler, logger *slog.Logger) http.Handler {
	h := handlers.New(engine, logger)
	authMW := middleware.RequireAPIKey(verifier)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	// Agent endpoints
	mux.Handle("POST /agents/register", authMW(http.HandlerFunc(h.RegisterAgent)))
	mux.Handle("POST /agents/heartbeat", authMW(http.HandlerFunc(h.Heartbeat)))
	mux.Handle("POST /tasks/claim-auto", authMW(http.HandlerFunc(h.ClaimTask)))
	mux.Handle("POST /tasks/report", authMW(http.HandlerFunc(h.ReportTask)))

	// Operator endpoints
	mux.Handle("GET /agents/online", authMW(http.HandlerFunc(h.ListAgents)))
	mux.Handle("POST /jobs/create", authMW(http.HandlerFunc(h.CreateJob)))
	mux.Handle("GET /jobs/{id}/status", authMW(http.HandlerFunc(h.GetJobStatus)))
	mux.Handle("POST /control/{action}", authMW(http.HandlerFunc(h.Control)))

	return middleware.RequestID(logger)(mux)
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
