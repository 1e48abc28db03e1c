package server

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/brojonat/sendsol/service/metrics"
	"github.com/brojonat/sendsol/service/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SessionController is the part of the session controller the HTTP view
// drives.
type SessionController interface {
	ID() string
	Snapshot() session.Snapshot
	Subscribe() (<-chan session.Event, func())
	Connect(ctx context.Context) error
	RefreshBalance(ctx context.Context) error
	SetDraft(recipient, amount string) error
	SubmitTransfer(ctx context.Context) error
}

// Server represents the HTTP server for the wallet session.
type Server struct {
	addr       string
	controller SessionController
	renderer   *TemplateRenderer
	origins    map[string]bool
	metrics    *metrics.Metrics
	logger     *slog.Logger
	server     *http.Server
}

// New creates a new HTTP server over controller.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, controller SessionController, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:       addr,
		controller: controller,
		metrics:    m,
		logger:     logger,
	}
}

// WithTemplates adds template rendering support to the server using embedded files
func (s *Server) WithTemplates() error {
	renderer, err := NewTemplateRenderer(s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize templates: %w", err)
	}
	s.renderer = renderer
	s.logger.Info("HTML templates loaded from embedded files")
	return nil
}

// WithAllowedOrigins lets browser pages served from origins call the API
// cross-origin. Without it only same-origin pages (the embedded page) can.
func (s *Server) WithAllowedOrigins(origins []string) *Server {
	s.origins = make(map[string]bool, len(origins))
	for _, o := range origins {
		s.origins[strings.TrimRight(o, "/")] = true
	}
	return s
}

// Handler builds the routed handler. Start serves it; tests use it directly.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	api := metrics.HTTPMetrics(s.metrics)
	// State-changing routes only accept JSON so that browsers always
	// preflight cross-origin calls to them.
	mutate := func(h http.Handler) http.Handler { return api(requireJSON(h)) }

	// Session routes
	mux.Handle("GET /api/v1/session", api(handleGetSession(s.controller, s.logger)))
	mux.Handle("POST /api/v1/session/connect", mutate(handleConnect(s.controller, s.logger)))
	mux.Handle("PUT /api/v1/session/draft", mutate(handleSetDraft(s.controller, s.logger)))
	mux.Handle("POST /api/v1/session/transfer", mutate(handleSubmitTransfer(s.controller, s.logger)))
	mux.Handle("POST /api/v1/session/balance", mutate(handleRefreshBalance(s.controller, s.logger)))

	// SSE stream of session events
	mux.Handle("GET /api/v1/stream/session", handleStreamSession(s.controller, s.metrics, s.logger))

	// HTML page (if template renderer is configured)
	if s.renderer != nil {
		mux.HandleFunc("GET /{$}", handleSessionPage(s.renderer, s.controller))
		mux.HandleFunc("GET /favicon.ico", handleFavicon())
		s.logger.Info("HTML page endpoints enabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	return corsMiddleware(s.origins, mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// Connect and transfer block on the user approving in the wallet.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr, "session_id", s.controller.ID())
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware answers CORS for the listed origins only. Requests from
// any other origin get no CORS headers, so browsers refuse to send
// preflighted requests and cannot read responses.
func corsMiddleware(origins map[string]bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")
		if origin := r.Header.Get("Origin"); origin != "" && origins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireJSON rejects requests whose Content-Type is not application/json
// with 415.
func requireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			writeError(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
			return
		}
		next.ServeHTTP(w, r)
	})
}
