// Package main is the entry point for the student library portal server.
//
// main only reads configuration, builds the dependencies and starts the
// server. All actual logic lives in the internal packages.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sakif/student-library/internal/auth"
	"github.com/sakif/student-library/internal/browser"
	"github.com/sakif/student-library/internal/config"
	"github.com/sakif/student-library/internal/logger"
	"github.com/sakif/student-library/internal/metrics"
	"github.com/sakif/student-library/internal/model"
	"github.com/sakif/student-library/internal/portal"
	"github.com/sakif/student-library/internal/provider"
	"github.com/sakif/student-library/internal/provider/local"
	"github.com/sakif/student-library/internal/provider/supabase"
	"github.com/sakif/student-library/internal/repository/sqlite"
	"github.com/sakif/student-library/internal/security"
	"github.com/sakif/student-library/internal/server"
)

func main() {
	// === 1. CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. LOGGING ===
	log := logger.SetupDefault(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	// === 3. METRICS ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// === 4. PROVIDER BACKEND ===
	backend, db, err := newBackend(cfg, log)
	if err != nil {
		log.Error("failed to create provider backend",
			slog.String("backend", cfg.Backend),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// === 5. TABS ===
	registry := browser.NewRegistry(metrics.InstrumentBackend(backend, collector), portal.Config{
		MessageTimeout:        cfg.MessageTimeout,
		RegisterRedirectDelay: cfg.RegisterRedirectDelay,
		LoginRedirectDelay:    cfg.LoginRedirectDelay,
		Landing:               model.Page(cfg.BootstrapLanding),
	}, browser.Options{
		IdleTTL:   cfg.TabIdleTTL,
		Metrics:   collector,
		Sanitizer: security.NewTextSanitizer().Sanitize,
		Logger:    log,
	})

	// === 6. SERVER ===
	var serverDB server.DB
	if db != nil {
		serverDB = db
	}
	srv, err := server.New(server.Config{
		Addr:              cfg.Addr(),
		SecureCookie:      cfg.CookieSecure,
		FormRatePerMin:    cfg.FormRatePerMin,
		TabOpenRatePerMin: cfg.TabOpenRatePerMin,
	}, registry, serverDB, reg, log)
	if err != nil {
		log.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("portal configured",
		slog.String("env", cfg.Env),
		slog.String("backend", backend.Name()),
		slog.String("landing", cfg.BootstrapLanding),
	)

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		log.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// newBackend builds the configured provider. The local backend also
// returns its database, which the server closes on shutdown.
func newBackend(cfg *config.Config, log *slog.Logger) (provider.Backend, *sqlite.DB, error) {
	switch cfg.Backend {
	case config.BackendSupabase:
		b, err := supabase.New(supabase.Config{
			URL:     cfg.SupabaseURL,
			AnonKey: cfg.SupabaseAnonKey,
			Timeout: cfg.ProviderTimeout,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return b, nil, nil

	case config.BackendLocal:
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, nil, fmt.Errorf("creating database directory: %w", err)
		}
		db, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
		tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.SessionTTL)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return local.New(db, db, auth.NewPasswordService(cfg.BcryptCost), tokens, log), db, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
