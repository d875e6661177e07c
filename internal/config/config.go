// Package config provides layered configuration for the DevOps application.
package config

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata" // app.timezone must resolve on hosts without zoneinfo

	"github.com/rs/zerolog"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Supported environment names.
const (
	EnvDev  = "dev"
	EnvTest = "test"
	EnvProd = "prod"
)

// App holds application identity settings.
type App struct {
	ID       string `koanf:"id" json:"id,omitempty"`
	Name     string `koanf:"name" json:"name,omitempty"`
	Env      string `koanf:"env" json:"env,omitempty"`
	Debug    bool   `koanf:"debug" json:"debug,omitempty"`
	Timezone string `koanf:"timezone" json:"timezone,omitempty"`
}

// Location returns the configured timezone. Validate guarantees it loads.
func (a App) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsDev reports whether the development-only modules should be mounted.
func (a App) IsDev() bool {
	return a.Env == EnvDev
}

func (a App) validate() []error {
	var errs []error
	if a.ID == "" {
		errs = append(errs, errors.New("app.id cannot be empty"))
	}
	switch a.Env {
	case EnvDev, EnvTest, EnvProd:
	default:
		errs = append(errs, fmt.Errorf("app.env: unsupported environment %q", a.Env))
	}
	if _, err := time.LoadLocation(a.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("app.timezone: invalid timezone %q: %w", a.Timezone, err))
	}
	return errs
}

// HTTP holds HTTP server settings.
type HTTP struct {
	Port            int           `koanf:"port" json:"port,omitempty"`
	ReadTimeout     time.Duration `koanf:"read_timeout" json:"read_timeout,omitempty"`
	WriteTimeout    time.Duration `koanf:"write_timeout" json:"write_timeout,omitempty"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" json:"idle_timeout,omitempty"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout,omitempty"`

	// RateLimit is the number of requests a client IP may make per minute.
	// Zero disables rate limiting.
	RateLimit int `koanf:"rate_limit" json:"rate_limit,omitempty"`
}

func (h HTTP) validate() []error {
	var errs []error
	if h.Port <= 0 || h.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port: %d is out of range", h.Port))
	}
	if h.ReadTimeout <= 0 || h.WriteTimeout <= 0 || h.IdleTimeout <= 0 || h.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("http: timeouts must be positive"))
	}
	if h.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("http.rate_limit: %d cannot be negative", h.RateLimit))
	}
	return errs
}

// Request holds request component settings.
type Request struct {
	CookieValidationKey  string `koanf:"cookie_validation_key" json:"cookie_validation_key,omitempty"`
	EnableCSRFValidation bool   `koanf:"enable_csrf_validation" json:"enable_csrf_validation,omitempty"`
}

func (r Request) validate() []error {
	if r.EnableCSRFValidation && r.CookieValidationKey == "" {
		return []error{errors.New("request.cookie_validation_key is required when CSRF validation is enabled")}
	}
	return nil
}

// Database holds database connection settings.
type Database struct {
	Driver          string        `koanf:"driver" json:"driver,omitempty"`
	DSN             string        `koanf:"dsn" json:"dsn,omitempty"`
	MaxOpenConns    int           `koanf:"max_open_conns" json:"max_open_conns,omitempty"`
	MaxIdleConns    int           `koanf:"max_idle_conns" json:"max_idle_conns,omitempty"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" json:"conn_max_lifetime,omitempty"`
}

func (d Database) validate() []error {
	var errs []error
	switch d.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported driver %q", d.Driver))
	}
	if d.DSN == "" {
		errs = append(errs, errors.New("database.dsn cannot be empty"))
	}
	if d.MaxOpenConns <= 0 {
		errs = append(errs, errors.New("database.max_open_conns must be positive"))
	}
	if d.MaxIdleConns < 0 || d.MaxIdleConns > d.MaxOpenConns {
		errs = append(errs, errors.New("database.max_idle_conns must be between 0 and max_open_conns"))
	}
	return errs
}

// Cache holds file cache settings.
type Cache struct {
	Path string `koanf:"path" json:"path,omitempty"`
	// GCProbability is the chance, in parts per million, that a write also
	// removes expired entries.
	GCProbability int `koanf:"gc_probability" json:"gc_probability,omitempty"`
}

func (c Cache) validate() []error {
	var errs []error
	if c.Path == "" {
		errs = append(errs, errors.New("cache.path cannot be empty"))
	}
	if c.GCProbability < 0 || c.GCProbability > 1_000_000 {
		errs = append(errs, fmt.Errorf("cache.gc_probability: %d is out of range", c.GCProbability))
	}
	return errs
}

// Logging holds log target settings.
type Logging struct {
	// Level is the minimum console level. Empty means debug when app.debug
	// is set and info otherwise.
	Level      string   `koanf:"level" json:"level,omitempty"`
	Pretty     bool     `koanf:"pretty" json:"pretty,omitempty"`
	File       string   `koanf:"file" json:"file,omitempty"`
	FileLevels []string `koanf:"file_levels" json:"file_levels,omitempty"`
}

func (l Logging) validate() []error {
	var errs []error
	if _, err := zerolog.ParseLevel(l.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: invalid log level %q: %w", l.Level, err))
	}
	for _, lvl := range l.FileLevels {
		if _, err := zerolog.ParseLevel(lvl); err != nil {
			errs = append(errs, fmt.Errorf("logging.file_levels: invalid log level %q: %w", lvl, err))
		}
	}
	return errs
}

// Health holds health probe settings.
type Health struct {
	ProbeTimeout time.Duration `koanf:"probe_timeout" json:"probe_timeout,omitempty"`
	CacheTTL     time.Duration `koanf:"cache_ttl" json:"cache_ttl,omitempty"`
}

func (h Health) validate() []error {
	var errs []error
	if h.ProbeTimeout <= 0 {
		errs = append(errs, errors.New("health.probe_timeout must be positive"))
	}
	if h.CacheTTL <= 0 {
		errs = append(errs, errors.New("health.cache_ttl must be positive"))
	}
	return errs
}

// Telemetry holds OpenTelemetry settings.
type Telemetry struct {
	Enabled      bool   `koanf:"enabled" json:"enabled,omitempty"`
	OTLPEndpoint string `koanf:"otlp_endpoint" json:"otlp_endpoint,omitempty"`
}

// Config is the complete application configuration.
type Config struct {
	App       App       `koanf:"app" json:"app,omitempty"`
	HTTP      HTTP      `koanf:"http" json:"http,omitempty"`
	Request   Request   `koanf:"request" json:"request,omitempty"`
	Database  Database  `koanf:"database" json:"database,omitempty"`
	Cache     Cache     `koanf:"cache" json:"cache,omitempty"`
	Logging   Logging   `koanf:"logging" json:"logging,omitempty"`
	Health    Health    `koanf:"health" json:"health,omitempty"`
	Telemetry Telemetry `koanf:"telemetry" json:"telemetry,omitempty"`
}

// Validate checks every section and joins all problems into one error.
func (c Config) Validate() error {
	var errs []error
	errs = append(errs, c.App.validate()...)
	errs = append(errs, c.HTTP.validate()...)
	errs = append(errs, c.Request.validate()...)
	errs = append(errs, c.Database.validate()...)
	errs = append(errs, c.Cache.validate()...)
	errs = append(errs, c.Logging.validate()...)
	errs = append(errs, c.Health.validate()...)
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// DefaultConfig returns the configuration used when no source overrides a key.
func DefaultConfig() Config {
	return Config{
		App: App{
			ID:       "devops-app",
			Name:     "DevOps Application",
			Env:      EnvDev,
			Debug:    true,
			Timezone: "UTC",
		},
		HTTP: HTTP{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Request: Request{
			CookieValidationKey: "local-dev-cookie-key-change-in-production",
		},
		Database: Database{
			Driver:          DriverSQLite,
			DSN:             "runtime/db.sqlite",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Cache: Cache{
			Path:          "runtime/cache",
			GCProbability: 10,
		},
		Logging: Logging{
			File:       "runtime/logs/app.log",
			FileLevels: []string{"error", "warn"},
		},
		Health: Health{
			ProbeTimeout: 2 * time.Second,
			CacheTTL:     10 * time.Second,
		},
		Telemetry: Telemetry{
			OTLPEndpoint: "localhost:4317",
		},
	}
}
