// Package config loads and validates the portal's settings from the
// environment and an optional .env file using Viper.
//
// Every key has a default, so an empty environment yields a working
// local setup as long as JWT_SECRET is provided.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backends.
const (
	BackendLocal    = "local"
	BackendSupabase = "supabase"
)

// Config holds application configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port int `mapstructure:"PORT"`
	// Env is the deployment environment ("development", "production").
	// Production forces Secure tab cookies.
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is json or text.
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// Backend selects the auth + row-store provider: local or supabase.
	Backend string `mapstructure:"BACKEND"`
	// SupabaseURL and SupabaseAnonKey locate the hosted project.
	SupabaseURL     string `mapstructure:"SUPABASE_URL"`
	SupabaseAnonKey string `mapstructure:"SUPABASE_ANON_KEY"`
	// ProviderTimeout bounds every hosted provider request.
	ProviderTimeout time.Duration `mapstructure:"PROVIDER_TIMEOUT"`

	// DBPath is the SQLite file of the local backend.
	DBPath string `mapstructure:"DB_PATH"`
	// JWTSecret signs the local backend's access tokens (min 16 chars).
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// SessionTTL is the lifetime of a local access token.
	SessionTTL time.Duration `mapstructure:"SESSION_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31).
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	MessageTimeout        time.Duration `mapstructure:"MESSAGE_TIMEOUT"`
	RegisterRedirectDelay time.Duration `mapstructure:"REGISTER_REDIRECT_DELAY"`
	LoginRedirectDelay    time.Duration `mapstructure:"LOGIN_REDIRECT_DELAY"`
	// BootstrapLanding is where a returning user lands: home or profile.
	BootstrapLanding string `mapstructure:"BOOTSTRAP_LANDING"`

	// TabIdleTTL is how long an unused tab is kept server-side.
	TabIdleTTL time.Duration `mapstructure:"TAB_IDLE_TTL"`
	// FormRatePerMin caps form submissions per tab.
	FormRatePerMin int `mapstructure:"FORM_RATE_PER_MIN"`
	// TabOpenRatePerMin caps, per client IP, requests that open a new tab.
	TabOpenRatePerMin int `mapstructure:"TAB_OPEN_RATE_PER_MIN"`
	// CookieSecure marks the tab cookie Secure.
	CookieSecure bool `mapstructure:"COOKIE_SECURE"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment. Environment variables override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("PORT", 8080)
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("BACKEND", BackendLocal)
	v.SetDefault("SUPABASE_URL", "")
	v.SetDefault("SUPABASE_ANON_KEY", "")
	v.SetDefault("PROVIDER_TIMEOUT", "10s")
	v.SetDefault("DB_PATH", "data/library.db")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("SESSION_TTL", "1h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("MESSAGE_TIMEOUT", "5s")
	v.SetDefault("REGISTER_REDIRECT_DELAY", "1s")
	v.SetDefault("LOGIN_REDIRECT_DELAY", "800ms")
	v.SetDefault("BOOTSTRAP_LANDING", "home")
	v.SetDefault("TAB_IDLE_TTL", "30m")
	v.SetDefault("FORM_RATE_PER_MIN", 30)
	v.SetDefault("TAB_OPEN_RATE_PER_MIN", 20)
	v.SetDefault("COOKIE_SECURE", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.BootstrapLanding = strings.ToLower(strings.TrimSpace(cfg.BootstrapLanding))
	if cfg.Env == "production" {
		cfg.CookieSecure = true
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT must be between 1 and 65535, got %d", c.Port)
	}

	switch c.Backend {
	case BackendLocal:
		if len(c.JWTSecret) < 16 {
			return errors.New("config: JWT_SECRET must be at least 16 characters for the local backend")
		}
		if c.DBPath == "" {
			return errors.New("config: DB_PATH must be set for the local backend")
		}
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			return errors.New("config: SUPABASE_URL and SUPABASE_ANON_KEY must be set for the supabase backend")
		}
	default:
		return fmt.Errorf("config: BACKEND must be %q or %q, got %q", BackendLocal, BackendSupabase, c.Backend)
	}

	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	switch c.BootstrapLanding {
	case "home", "profile":
	default:
		return fmt.Errorf("config: BOOTSTRAP_LANDING must be home or profile, got %q", c.BootstrapLanding)
	}

	for name, d := range map[string]time.Duration{
		"MESSAGE_TIMEOUT":         c.MessageTimeout,
		"REGISTER_REDIRECT_DELAY": c.RegisterRedirectDelay,
		"LOGIN_REDIRECT_DELAY":    c.LoginRedirectDelay,
		"SESSION_TTL":             c.SessionTTL,
		"TAB_IDLE_TTL":            c.TabIdleTTL,
		"PROVIDER_TIMEOUT":        c.ProviderTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("config: %s must be positive", name)
		}
	}

	if c.FormRatePerMin <= 0 {
		return errors.New("config: FORM_RATE_PER_MIN must be positive")
	}
	if c.TabOpenRatePerMin <= 0 {
		return errors.New("config: TAB_OPEN_RATE_PER_MIN must be positive")
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
