// Package config handles application configuration from environment variables
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	API   APIConfig   `envPrefix:"BLOG_API_"`
	Query QueryConfig `envPrefix:"BLOG_QUERY_"`
	Log   LogConfig   `envPrefix:"LOG_"`

	// Development backend
	Port        string `env:"PORT" envDefault:"3001"`
	DatabaseURL string `env:"DATABASE_URL"`
	SeedFile    string `env:"BLOG_SEED_FILE"`
}

// APIConfig configures the REST client
type APIConfig struct {
	BaseURL   string        `env:"BASE_URL" envDefault:"http://localhost:3001"`
	Token     string        `env:"TOKEN"`
	Timeout   time.Duration `env:"TIMEOUT" envDefault:"0s"`
	HTTPCache bool          `env:"HTTP_CACHE" envDefault:"false"`
	// Directory for the HTTP cache; empty means the user cache directory
	HTTPCacheDir string `env:"HTTP_CACHE_DIR"`
}

// QueryConfig configures the query cache
type QueryConfig struct {
	StaleAfter time.Duration `env:"STALE_AFTER" envDefault:"5m"`
	GCAfter    time.Duration `env:"GC_AFTER" envDefault:"5m"`
	Retry      int           `env:"RETRY" envDefault:"1"`
	RetryDelay time.Duration `env:"RETRY_DELAY" envDefault:"1s"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"console"`
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"console", "json"}
)

// Load reads configuration from environment variables and validates it
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once
func (c Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("BLOG_API_BASE_URL must be an absolute http(s) URL, got %q", c.API.BaseURL))
	}
	if c.API.Timeout < 0 {
		errs = append(errs, errors.New("BLOG_API_TIMEOUT must not be negative"))
	}
	if c.Query.StaleAfter < 0 {
		errs = append(errs, errors.New("BLOG_QUERY_STALE_AFTER must not be negative"))
	}
	if c.Query.GCAfter < 0 {
		errs = append(errs, errors.New("BLOG_QUERY_GC_AFTER must not be negative"))
	}
	if c.Query.Retry < 0 {
		errs = append(errs, fmt.Errorf("BLOG_QUERY_RETRY must not be negative, got %d", c.Query.Retry))
	}
	if c.Query.RetryDelay < 0 {
		errs = append(errs, errors.New("BLOG_QUERY_RETRY_DELAY must not be negative"))
	}
	if !oneOf(c.Log.Level, logLevels) {
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of %s, got %q", strings.Join(logLevels, ", "), c.Log.Level))
	}
	if !oneOf(c.Log.Format, logFormats) {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be one of %s, got %q", strings.Join(logFormats, ", "), c.Log.Format))
	}
	return errors.Join(errs...)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return true
		}
	}
	return false
}
