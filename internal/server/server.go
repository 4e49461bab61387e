// Package server exposes the liveness endpoints polled by hosting platforms
// that put idle services to sleep.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Prescott-Data/nexus-presence/gateway"
)

// StatusProvider reports the gateway session state.
type StatusProvider interface {
	Status() gateway.Status
}

type Server struct {
	mux     *chi.Mux
	port    string
	status  StatusProvider
	metrics http.Handler
	logger  *slog.Logger
}

// New builds the router. metrics may be nil to omit /metrics.
func New(port string, status StatusProvider, metrics http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.Timeout(10 * time.Second))

	s := &Server{mux: mux, port: port, status: status, metrics: metrics, logger: logger}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("alive"))
	})
	s.mux.Head("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "healthy"})
	})

	// Status dashboards may poll from a browser.
	s.mux.With(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept"},
		MaxAge:         300,
	})).Get("/status", func(w http.ResponseWriter, r *http.Request) {
		if s.status == nil {
			http.Error(w, "status unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, s.status.Status())
	})

	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics)
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens on the configured port until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
