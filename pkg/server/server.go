package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"simplesalt/authproxy/pkg/config"
	"simplesalt/authproxy/pkg/kvstore"
	"simplesalt/authproxy/pkg/proxy"
	"simplesalt/authproxy/pkg/proxy/handlers"
	"simplesalt/authproxy/pkg/proxy/middleware"
	"simplesalt/authproxy/pkg/routing"
	"simplesalt/authproxy/pkg/security/auth"
	"simplesalt/authproxy/pkg/security/secrets"
	"simplesalt/authproxy/pkg/telemetry/health"
	"simplesalt/authproxy/pkg/telemetry/logging"
	"simplesalt/authproxy/pkg/telemetry/metrics"
	"simplesalt/authproxy/pkg/telemetry/tracing"
)

// AdminDisabled turns off the admin listener when used as its address.
const AdminDisabled = "off"

// Options carries build metadata and optional overrides.
type Options struct {
	// ConfigPath, when set, is watched and the log level reloaded on change.
	ConfigPath string

	Version   string
	Commit    string
	BuildTime string

	// Logger defaults to one built from telemetry.logging.
	Logger *logging.Logger

	// Registry defaults to a fresh registry.
	Registry *prometheus.Registry

	// Transport overrides the upstream round tripper.
	Transport http.RoundTripper
}

// Server is the proxy process: the proxy listener, the admin listener and
// the background jobs that support them.
type Server struct {
	config *config.Config
	opts   Options
	logger *logging.Logger

	handler http.Handler
	admin   http.Handler

	kv      kvstore.Store
	purger  *kvstore.Purger
	tracer  *tracing.Tracer
	metrics *metrics.Collector
	health  *health.Checker

	httpServer   *http.Server
	adminServer  *http.Server
	proxyAddr    net.Addr
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	closeOnce    sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New builds every component described by cfg. Nothing listens until Start.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	logger := opts.Logger
	if logger == nil {
		l, err := logging.New(logging.ConfigFrom(cfg.Telemetry.Logging))
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		logger = l
	}

	s := &Server{
		config:       cfg,
		opts:         opts,
		logger:       logger,
		shutdownChan: make(chan struct{}),
	}

	if err := s.build(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) build(ctx context.Context) error {
	cfg := s.config
	log := s.logger.Logger

	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		return fmt.Errorf("failed to create tracer: %w", err)
	}
	s.tracer = tracer

	s.metrics = metrics.NewCollector(cfg.Telemetry.Metrics, s.opts.Registry)

	kv, err := kvstore.New(ctx, cfg.KV)
	if err != nil {
		return fmt.Errorf("failed to open kv store: %w", err)
	}
	s.kv = kv

	provider, err := secrets.NewManagerFromConfig(cfg.Credentials)
	if err != nil {
		return fmt.Errorf("failed to configure credentials: %w", err)
	}
	store := secrets.NewCredentialStore(provider, kv, cfg.Credentials.LookupTimeout, log)

	assertions, err := auth.NewAssertionVerifier(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to configure assertion verifier: %w", err)
	}
	verifier := auth.NewVerifier(cfg.Auth, store, assertions, log)

	resolver, err := routing.NewResolver(routing.PolicyForMode(cfg.Proxy.Mode, cfg.Routing.MatchPolicy), log)
	if err != nil {
		return fmt.Errorf("failed to create resolver: %w", err)
	}

	fwdCfg := proxy.ForwarderConfigFrom(cfg.Proxy)
	if s.opts.Transport != nil {
		fwdCfg.Transport = s.opts.Transport
	}

	cors := middleware.NewCORSPolicy(cfg.CORS)
	pipeline, err := handlers.NewPipelineHandler(handlers.PipelineOptions{
		Mode:        cfg.Proxy.Mode,
		Verifier:    verifier,
		Source:      routing.NewSource(cfg.Routing, cfg.Proxy.UserAgent),
		Resolver:    resolver,
		Credentials: store,
		Forwarder:   proxy.NewForwarder(fwdCfg, log),
		CORS:        cors,
		Metrics:     s.metrics,
		Logger:      log,
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	s.handler = middleware.Chain(tracing.HTTPMiddleware(pipeline), cors, log)

	s.health = health.New(0)
	if kv != nil {
		s.health.RegisterCheck("kv", health.PingCheck(kv))
	}
	s.admin = s.adminRoutes()

	if p, ok := kv.(kvstore.Purgeable); ok && cfg.KV.PurgeSchedule != "" {
		s.purger = kvstore.NewPurger(p, cfg.KV.PurgeSchedule, log)
		s.purger.OnPurge = s.metrics.RecordKVPurge
	}
	return nil
}

func (s *Server) adminRoutes() http.Handler {
	mux := http.NewServeMux()
	s.health.Register(mux, s.opts.Version, s.opts.Commit, s.opts.BuildTime)
	if s.metrics.Enabled() {
		mux.Handle(s.config.Telemetry.Metrics.Path, s.metrics.Handler())
	}
	return mux
}

// Start starts the listeners and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	cfg := s.config.Proxy
	s.httpServer = &http.Server{
		Addr:           cfg.ListenAddress,
		Handler:        s.handler,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	ln, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		s.setStopped()
		return fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddress, err)
	}
	s.mu.Lock()
	s.proxyAddr = ln.Addr()
	s.mu.Unlock()

	errChan := make(chan error, 2)
	go func() {
		s.logger.Info("starting proxy server",
			"address", ln.Addr().String(),
			"mode", cfg.Mode,
		)
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	if addr := s.config.Telemetry.AdminAddress; addr != "" && addr != AdminDisabled {
		s.adminServer = &http.Server{
			Addr:              addr,
			Handler:           s.admin,
			ReadHeaderTimeout: cfg.ReadTimeout,
		}
		go func() {
			s.logger.Info("starting admin server", "address", addr)
			if err := s.adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errChan <- fmt.Errorf("admin server error: %w", err)
			}
		}()
	}

	bgCtx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()
	s.startBackground(bgCtx)

	// Set up signal handlers
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		_ = s.Shutdown(context.Background())
		return err
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

func (s *Server) startBackground(ctx context.Context) {
	if s.purger != nil {
		if err := s.purger.Start(ctx); err != nil {
			s.logger.Error("kv purger not started", "error", err)
		}
	}

	if s.opts.ConfigPath != "" {
		w := config.NewWatcher(s.opts.ConfigPath, s.logger.Logger, s.reload)
		go func() {
			if err := w.Watch(ctx); err != nil {
				s.logger.Error("config watcher stopped", "error", err)
			}
		}()
	}
}

// reload applies the settings that can change without a restart.
func (s *Server) reload(cfg *config.Config) {
	level := cfg.Telemetry.Logging.Level
	if err := s.logger.SetLevel(level); err != nil {
		s.logger.Warn("ignoring invalid log level", "level", level, "error", err)
		return
	}
	s.logger.Info("configuration reloaded", "log_level", level)
}

// Stop asks a running Start to return.
func (s *Server) Stop() {
	select {
	case <-s.shutdownChan:
	default:
		close(s.shutdownChan)
	}
}

// Shutdown gracefully shuts down the listeners and releases every resource.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running := s.isRunning
		s.mu.RUnlock()
		if !running {
			return
		}

		timeout := s.config.Proxy.ShutdownTimeout
		s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}
		if s.adminServer != nil {
			if err := s.adminServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during admin shutdown", "error", err)
			}
		}
		if s.purger != nil {
			s.purger.Stop()
		}
		if err := s.tracer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("failed to flush spans", "error", err)
		}
		s.Close()

		s.setStopped()
		s.logger.Info("proxy server stopped")
	})

	return shutdownErr
}

// Close releases the key/value store. It is safe to call more than once and
// on a server that never started.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.kv != nil {
			err = s.kv.Close()
		}
	})
	return err
}

func (s *Server) setStopped() {
	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound proxy address once Start is listening.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.proxyAddr
}

// Handler returns the proxy handler with its middleware stack.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// AdminHandler returns the handler served on the admin listener.
func (s *Server) AdminHandler() http.Handler {
	return s.admin
}

// Health runs the readiness checks.
func (s *Server) Health(ctx context.Context) error {
	if !s.IsRunning() {
		return fmt.Errorf("server is not running")
	}
	if status := s.health.CheckReadiness(ctx); status.Status != "ready" {
		return fmt.Errorf("server is %s", status.Status)
	}
	return nil
}

// Logger returns the process logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger.Logger
}
