// Package server exposes the verification engine over HTTP and the live
// capture loop over a WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/motorpass/internal/cache"
	"github.com/MeKo-Tech/motorpass/internal/capture"
	"github.com/MeKo-Tech/motorpass/internal/verify"
)

// Verifier runs one verification.
type Verifier interface {
	Verify(ctx context.Context, req verify.Request) verify.Outcome
}

// CacheStatter reports cache occupancy for the health endpoint.
type CacheStatter interface {
	Stats() (cache.Stats, error)
}

// CaptureFactory builds a controller for one capture session.
type CaptureFactory func(opts ...capture.Option) *capture.Controller

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	Timeout     time.Duration
	// RequestsPerMinute limits verify calls per client; zero disables it.
	RequestsPerMinute int
	Version           string
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	cfg        Config
	verifier   Verifier
	newCapture CaptureFactory
	cache      CacheStatter
	limiter    *RateLimiter
	logger     *slog.Logger

	// captureMu admits one live capture session at a time.
	captureMu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithCapture enables the live capture endpoint.
func WithCapture(f CaptureFactory) Option { return func(s *Server) { s.newCapture = f } }

// WithCacheStats adds cache occupancy to the health response.
func WithCacheStats(c CacheStatter) Option { return func(s *Server) { s.cache = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// New creates a server around verifier.
func New(cfg Config, verifier Verifier, opts ...Option) *Server {
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	s := &Server{cfg: cfg, verifier: verifier, logger: slog.Default()}
	if cfg.RequestsPerMinute > 0 {
		s.limiter = NewRateLimiter(cfg.RequestsPerMinute)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(metricsMiddleware)

	r.Get("/health", s.healthHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.Timeout))
			r.With(s.rateLimitMiddleware).Post("/verify", s.verifyHandler)
			r.Post("/parse", s.parseHandler)
			r.Post("/match", s.matchHandler)
		})
		r.Get("/capture", s.captureHandler)
	})
	return r
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
