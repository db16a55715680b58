// Package server hosts the HTTP API: chi routing, request ids, structured
// request logs, API-key auth, timeouts and tracing.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/devgenius/artifact-gateway/internal/auth"
	"github.com/devgenius/artifact-gateway/internal/config"
)

const shutdownGrace = 15 * time.Second

type Server struct {
	// Router serves unauthenticated routes such as health checks.
	Router *chi.Mux
	// API is the authenticated route group.
	API chi.Router

	Port   int
	logger *slog.Logger
	srv    *http.Server
}

// New builds the router. authenticator may be nil to disable auth.
func New(cfg config.ServerConfig, logger *slog.Logger, authenticator *auth.Authenticator) *Server {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "artifact-gateway")
	})

	s := &Server{Router: r, Port: cfg.Port, logger: logger}
	r.Group(func(api chi.Router) {
		if authenticator != nil {
			api.Use(AuthMiddleware(authenticator))
		}
		api.Use(TimeoutMiddleware(cfg.RequestTimeout))
		s.API = api
	})
	return s
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", slog.Int("port", s.Port))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
