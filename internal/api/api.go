// Package api exposes the reframe pipeline over HTTP.
//
// POST /api/reframe (and the legacy /reframe alias) runs one pipeline round;
// GET /healthz reports liveness. Every response body is JSON.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nmiskell11/reframe-app/internal/models"
	"github.com/nmiskell11/reframe-app/internal/pipeline"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default address for the API server
	DefaultServerAddress = ":8080"
	// DefaultCORSOrigin allows any origin
	DefaultCORSOrigin = "*"
	// MaxRequestBodyBytes caps a reframe request body
	MaxRequestBodyBytes = 64 << 10
	// DefaultShutdownTimeout bounds graceful shutdown
	DefaultShutdownTimeout = 10 * time.Second
	// DefaultRequestTimeout bounds one pipeline round, oracle calls included
	DefaultRequestTimeout = 90 * time.Second
)

// Runner runs one pipeline round. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, req models.ReframeRequest) (pipeline.Result, error)
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr           string
	CORSOrigin     string
	Provider       string
	RequestTimeout time.Duration
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithCORSOrigin sets the Access-Control-Allow-Origin value.
func WithCORSOrigin(origin string) Option {
	return func(o *Opts) {
		o.CORSOrigin = origin
	}
}

// WithProvider names the oracle provider reported by /healthz.
func WithProvider(provider string) Option {
	return func(o *Opts) {
		o.Provider = provider
	}
}

// WithRequestTimeout bounds each pipeline round.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.RequestTimeout = d
	}
}

// Server holds the HTTP routes and their dependencies.
type Server struct {
	runner         Runner
	addr           string
	corsOrigin     string
	provider       string
	requestTimeout time.Duration
	startedAt      time.Time
	handler        http.Handler
}

// NewServer creates a new API server around runner.
func NewServer(runner Runner, opts ...Option) *Server {
	cfg := Opts{
		Addr:           DefaultServerAddress,
		CORSOrigin:     DefaultCORSOrigin,
		RequestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultServerAddress
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = DefaultCORSOrigin
	}

	s := &Server{
		runner:         runner,
		addr:           cfg.Addr,
		corsOrigin:     cfg.CORSOrigin,
		provider:       cfg.Provider,
		requestTimeout: cfg.RequestTimeout,
		startedAt:      time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/reframe", s.reframeHandler)
	mux.HandleFunc("/reframe", s.reframeHandler)
	mux.HandleFunc("/healthz", s.healthHandler)
	s.handler = s.withCORS(mux)

	slog.Debug("api.NewServer: routes registered", "addr", s.addr, "cors_origin", s.corsOrigin, "provider", s.provider)
	return s
}

// Handler returns the root handler, CORS included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		slog.Error("Server.Run: failed to listen", "addr", s.addr, "error", err)
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server.Serve: reframe API listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Server.Serve: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if err != nil {
		slog.Error("Server.Serve: server stopped with error", "error", err)
	} else {
		slog.Info("Server.Serve: server stopped")
	}
	return err
}

// withCORS adds CORS headers and answers preflight requests.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.corsOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if s.corsOrigin != "*" {
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
