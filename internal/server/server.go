// Package server runs the console's HTTP listener with probe endpoints and
// graceful shutdown.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/stockbook/internal/health"
	"github.com/felixgeelhaar/stockbook/internal/log"
)

// Config holds listener settings. Zero durations take defaults.
type Config struct {
	// Addr is the listen address, e.g. "127.0.0.1:8080". Port 0 picks one.
	Addr string

	// ShutdownTimeout bounds connection draining. Defaults to 10s.
	ShutdownTimeout time.Duration

	ReadTimeout  time.Duration // defaults to 10s
	WriteTimeout time.Duration // defaults to 30s
	IdleTimeout  time.Duration // defaults to 60s
}

func (c Config) withDefaults() Config {
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	return c
}

// Server wraps http.Server with a probe manager.
type Server struct {
	cfg        Config
	httpServer *http.Server
	probes     *health.ProbeManager
	logger     *log.Logger
	listener   net.Listener
	inShutdown atomic.Bool
}

// New builds a Server serving h. probes may be nil.
func New(cfg Config, h http.Handler, probes *health.ProbeManager, logger *log.Logger) *Server {
	cfg = cfg.withDefaults()
	logger = log.OrDefault(logger).WithComponent("server")
	return &Server{
		cfg:    cfg,
		probes: probes,
		logger: logger,
		httpServer: &http.Server{
			ErrorLog:          slog.NewLogLogger(logger.Slog().Handler(), slog.LevelWarn),
			Addr:              cfg.Addr,
			Handler:           h,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
	}
}

// Listen binds the configured address.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Addr is the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// Run listens if needed and serves until ctx is done, then drains.
// A graceful stop returns nil.
func (s *Server) Run(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("console listening", "addr", s.Addr())
		errc <- s.httpServer.Serve(s.listener)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	if err := s.Shutdown(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown fails readiness, stops keep-alives and drains open connections
// for at most ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)
	if s.probes != nil {
		s.probes.MarkShutdown()
	}
	s.httpServer.SetKeepAlivesEnabled(false)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("console shutting down")
	return s.httpServer.Shutdown(ctx)
}

// IsShuttingDown reports whether Shutdown has been called.
func (s *Server) IsShuttingDown() bool {
	return s.inShutdown.Load()
}

// LivenessHandler serves GET /health/live.
func LivenessHandler(p *health.ProbeManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Liveness answers 200 even while draining.
		writeReport(w, p.Liveness(r.Context()), http.StatusOK)
	}
}

// ReadinessHandler serves GET /health/ready.
func ReadinessHandler(p *health.ProbeManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeReport(w, p.Readiness(r.Context()), http.StatusServiceUnavailable)
	}
}

func writeReport(w http.ResponseWriter, rep *health.Report, unhealthy int) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if rep.Status == health.StatusUnhealthy {
		w.WriteHeader(unhealthy)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(rep)
}
