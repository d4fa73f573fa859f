package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/KalebJG/fathom-to-slacklist/internal/relay"
	"github.com/KalebJG/fathom-to-slacklist/internal/store"
)

// Config holds HTTP server configuration.
type Config struct {
	Listen string

	// PublicBaseURL builds the destination URL returned by /api/setup.
	// When empty, the request's Origin header is used as a fallback.
	PublicBaseURL string

	// APIKey, when set, gates /api/setup behind a bearer token.
	APIKey string
}

// Server is the relay's HTTP front: the Fathom-facing webhook endpoint,
// the operator-facing test and setup endpoints, and health.
type Server struct {
	config    Config
	pipeline  *relay.Pipeline
	store     store.ConnectionStore
	dlog      store.DeliveryLog
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new server instance. dlog may be nil.
func New(config Config, pipeline *relay.Pipeline, st store.ConnectionStore, dlog store.DeliveryLog, logger *slog.Logger) *Server {
	return &Server{
		config:    config,
		pipeline:  pipeline,
		store:     st,
		dlog:      dlog,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start starts the HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("server starting", "listen", s.config.Listen)

	// Run server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		s.logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Post("/api/webhook/{id}", s.handleWebhook)
	r.Post("/api/connections/{id}/test", s.handleTestSend)
	r.With(s.requireAPIKey).Post("/api/setup", s.handleSetup)

	return r
}

// loggingMiddleware logs HTTP requests (no body content, ever: bodies
// carry meeting data and signatures).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// requireAPIKey enforces the setup bearer token when one is configured.
// The webhook and test endpoints stay keyless: the connection id and
// per-connection secret are their credentials.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.config.APIKey)) != 1 {
			s.respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}
