// Package server sets up the HTTP server, router, and all route definitions.
//
// It is the composition root of the HTTP side: main builds the provider
// backend and the tab registry, and New wires them to handlers, middleware
// and routes. Keeping this out of main.go lets tests build the full router
// without listening on a port.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sakif/student-library/internal/browser"
	"github.com/sakif/student-library/internal/handler"
	"github.com/sakif/student-library/internal/metrics"
	"github.com/sakif/student-library/internal/middleware"
	"github.com/sakif/student-library/web"
)

// Config holds server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// SecureCookie marks the tab cookie Secure.
	SecureCookie bool
	// FormRatePerMin caps form submissions per tab.
	FormRatePerMin int
	// TabOpenRatePerMin caps, per client IP, requests that open a new tab.
	TabOpenRatePerMin int
	// SweepInterval is how often idle tabs are closed. Zero uses half the
	// registry's idle TTL.
	SweepInterval time.Duration
	// ShutdownTimeout bounds graceful shutdown. Defaults to 30s.
	ShutdownTimeout time.Duration
}

// DB is the database the server owns when the local backend is in use.
type DB interface {
	Ping() error
	Close() error
}

// Server represents the HTTP server and all its dependencies.
//
// The server owns the tab registry, the rate limiters and, for the local
// backend, the database. They are released in Start during graceful
// shutdown.
type Server struct {
	router   *chi.Mux
	config   Config
	logger   *slog.Logger
	registry *browser.Registry
	forms    *middleware.RateLimiter
	tabOpen  *middleware.RateLimiter
	gatherer prometheus.Gatherer
	db       DB // nil for the hosted backend
}

// New creates a Server. db may be nil.
func New(cfg Config, registry *browser.Registry, db DB, gatherer prometheus.Gatherer, logger *slog.Logger) (*Server, error) {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		registry: registry,
		gatherer: gatherer,
		db:       db,
		forms: middleware.NewFormRateLimiter(middleware.RateLimitConfig{
			PerMinute: cfg.FormRatePerMin,
		}, registry, logger),
		tabOpen: middleware.NewTabOpenLimiter(middleware.RateLimitConfig{
			PerMinute: cfg.TabOpenRatePerMin,
		}, registry, logger),
	}

	if err := s.setupRoutes(); err != nil {
		s.stopLimiters()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /                  → the tab's document (HTML)
// GET    /nav/{page}        → navigation link
// POST   /forms/register    → registration form   (rate limited)
// POST   /forms/login       → login form          (rate limited)
// POST   /click/{control}   → button click
// POST   /confirm           → confirmation dialog answer
// GET    /api/state         → the tab's document (JSON)
// GET    /healthz           → liveness
// GET    /metrics           → Prometheus scrape
// GET    /static/*          → stylesheet
//
// Middleware runs in the order it is added: request id, real ip,
// panic recovery, then request logging. Every route that can open a tab
// sits behind the per-IP tab-open limiter.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	fileServer := http.FileServer(http.FS(web.Static()))
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	portalHandler, err := handler.NewPortalHandler(web.Templates(), s.registry, handler.PortalOptions{
		SecureCookie: s.config.SecureCookie,
	}, s.logger)
	if err != nil {
		return fmt.Errorf("creating portal handler: %w", err)
	}

	s.router.Group(func(r chi.Router) {
		r.Use(s.tabOpen.Middleware)

		r.Get("/", portalHandler.HandlePage)
		r.Get("/nav/{page}", portalHandler.HandleNav)
		r.Post("/click/{control}", portalHandler.HandleClick)
		r.Post("/confirm", portalHandler.HandleConfirm)

		r.Route("/forms", func(r chi.Router) {
			r.Use(s.forms.Middleware)
			r.Post("/register", portalHandler.HandleRegister)
			r.Post("/login", portalHandler.HandleLogin)
		})

		r.Get("/api/state", portalHandler.HandleState)
	})

	var db handler.Pinger
	if s.db != nil {
		db = s.db
	}
	s.router.Get("/healthz", portalHandler.HandleHealth(db))

	if s.gatherer != nil {
		s.router.Handle("/metrics", metrics.Handler(s.gatherer))
	}
	return nil
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully:
// stop accepting connections, let in-flight requests finish, close every
// tab, stop the rate limiters and close the database.
func (s *Server) Start() error {
	defer s.closeDB()
	defer s.stopLimiters()

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		s.registry.Run(sweepCtx, s.config.SweepInterval)
	}()
	defer func() {
		stopSweep()
		<-sweepDone
	}()

	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.String("addr", s.config.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

func (s *Server) stopLimiters() {
	s.forms.Stop()
	s.tabOpen.Stop()
}

func (s *Server) closeDB() {
	if s.db == nil {
		return
	}
	if err := s.db.Close(); err != nil {
		s.logger.Error("closing database", slog.String("error", err.Error()))
	}
}
