// Package server wires the API handlers into an HTTP server with logging,
// request-ID, and metrics middleware.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"streamgate/internal/api"
	"streamgate/internal/observability/logging"
	"streamgate/internal/observability/metrics"
	"streamgate/internal/serverutil"
)

type Config struct {
	Addr            string
	Logger          *slog.Logger
	Metrics         *metrics.Recorder
	ShutdownTimeout time.Duration
	Ready           chan<- struct{}
}

type Server struct {
	httpServer      *http.Server
	logger          *slog.Logger
	shutdownTimeout time.Duration
	ready           chan<- struct{}
}

func New(handler *api.Handler, cfg Config) *Server {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handler.Health)
	mux.Handle("/metrics", recorder.Handler())
	mux.HandleFunc("/api/vhosts", handler.Vhosts)
	mux.HandleFunc("/api/vhosts/", handler.VhostByName)
	mux.HandleFunc("/api/resolve", handler.Resolve)
	mux.HandleFunc("/api/apps", handler.Apps)
	mux.HandleFunc("/api/apps/", handler.AppByName)
	mux.HandleFunc("/api/urls", handler.URLs)
	mux.HandleFunc("/api/streams", handler.Streams)
	mux.HandleFunc("/api/events", handler.Events)
	mux.HandleFunc("/api/reload", handler.TriggerReload)
	mux.HandleFunc("/api/pull", handler.Pull)

	handlerChain := http.Handler(mux)
	handlerChain = metrics.HTTPMiddleware(recorder, handlerChain)
	handlerChain = loggingMiddleware(logger, handlerChain)
	handlerChain = requestIDMiddleware(handlerChain)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlerChain,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		httpServer:      httpServer,
		logger:          logger,
		shutdownTimeout: cfg.ShutdownTimeout,
		ready:           cfg.Ready,
	}
}

// Handler exposes the middleware-wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	return serverutil.Run(ctx, serverutil.Config{
		Server:          s.httpServer,
		ShutdownTimeout: s.shutdownTimeout,
		Ready:           s.ready,
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = newRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := metrics.NewResponseRecorder(w)
		start := time.Now()
		next.ServeHTTP(recorder, r)
		logging.WithContext(r.Context(), logger).Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"remote", r.RemoteAddr)
	})
}

func newRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(buf)
}
