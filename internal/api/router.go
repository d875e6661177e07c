// Package api provides the HTTP API of the DevOps application.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/devopsapp/devops-app/internal/api/handler"
	"github.com/devopsapp/devops-app/internal/api/middleware"
	"github.com/devopsapp/devops-app/internal/config"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Config  config.Config
	Version string
	Logger  zerolog.Logger
	Metrics *middleware.Metrics

	Health handler.HealthEvaluator
	System handler.SystemInfo

	// RateLimit overrides http.rate_limit when RequestLimit is set. With
	// neither set no rate limit applies.
	RateLimit middleware.RateLimitConfig
}

// NewRouter creates a new chi router with all routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	rateLimit := middleware.PerMinute(cfg.Config.HTTP.RateLimit)
	if cfg.RateLimit.Enabled() {
		rateLimit = cfg.RateLimit
	}

	// Global middleware - order matters
	r.Use(middleware.PeerAddr)  // before RealIP rewrites RemoteAddr
	r.Use(middleware.RequestID) // Generate/propagate request ID
	r.Use(middleware.Tracing())
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders(cfg.Config.App.Env == config.EnvProd))
	r.Use(middleware.ContentTypeJSON)
	if rateLimit.Enabled() {
		r.Use(middleware.RateLimitByIP(rateLimit)) // per client IP, after RealIP
	}
	r.Use(middleware.CSRF(middleware.CSRFConfig{
		Enabled: cfg.Config.Request.EnableCSRFValidation,
		Key:     cfg.Config.Request.CookieValidationKey,
		Secure:  cfg.Config.App.Env == config.EnvProd,
	}))
	r.Use(chimiddleware.GetHead)

	site := handler.NewSiteHandler(handler.SiteConfig{
		AppName:     cfg.Config.App.Name,
		Environment: cfg.Config.App.Env,
		Debug:       cfg.Config.App.Debug,
		Version:     cfg.Version,
		Health:      cfg.Health,
		System:      cfg.System,
		Location:    cfg.Config.App.Location(),
	})

	r.NotFound(site.UnknownAction)
	r.MethodNotAllowed(site.MethodNotAllowed)

	r.Get("/", site.Index)
	r.Get("/health", site.Health)
	r.Get("/info", site.Info)

	// pprof and expvar, development only and for local connections
	if cfg.Config.App.IsDev() {
		r.With(middleware.LoopbackOnly(http.HandlerFunc(site.UnknownAction))).
			Mount("/debug", chimiddleware.Profiler())
	}

	return r
}
