// Package handler provides HTTP handlers for the DevOps application.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/devopsapp/devops-app/internal/api/models"
	"github.com/devopsapp/devops-app/internal/api/response"
	"github.com/devopsapp/devops-app/internal/health"
	"github.com/devopsapp/devops-app/internal/sysinfo"
)

// HealthEvaluator builds a fresh health report per call.
type HealthEvaluator interface {
	Evaluate(ctx context.Context) (health.Report, int)
}

// SystemInfo reads host and process facts.
type SystemInfo interface {
	Hostname() string
	Memory() sysinfo.Memory
}

// SiteConfig configures a SiteHandler.
type SiteConfig struct {
	AppName     string
	Environment string
	Debug       bool
	Version     string

	Health HealthEvaluator
	System SystemInfo

	// Now and Location control report timestamps. Defaults: time.Now, UTC.
	Now      func() time.Time
	Location *time.Location

	// GoVersion and FrameworkVersion default to the sysinfo readers.
	GoVersion        func() string
	FrameworkVersion func() string
}

// SiteHandler serves the index, health and info actions.
type SiteHandler struct {
	cfg SiteConfig
}

// NewSiteHandler creates a new SiteHandler.
func NewSiteHandler(cfg SiteConfig) *SiteHandler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.GoVersion == nil {
		cfg.GoVersion = sysinfo.GoVersion
	}
	if cfg.FrameworkVersion == nil {
		cfg.FrameworkVersion = sysinfo.FrameworkVersion
	}
	return &SiteHandler{cfg: cfg}
}

// Index handles GET /.
func (h *SiteHandler) Index(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.IndexResponse{
		Status:      "success",
		Message:     h.cfg.AppName + " is running!",
		Timestamp:   models.Timestamp(h.now()),
		Hostname:    h.cfg.System.Hostname(),
		Environment: h.cfg.Environment,
		Debug:       h.cfg.Debug,
		Version:     h.cfg.Version,
	})
}

// Health handles GET /health. Responds 503 when any probe failed.
func (h *SiteHandler) Health(w http.ResponseWriter, r *http.Request) {
	report, code := h.cfg.Health.Evaluate(r.Context())

	checks := make(models.HealthChecks, 0, len(report.Checks))
	for _, c := range report.Checks {
		checks = append(checks, models.HealthCheck{Name: c.Name, Result: string(c.Result)})
	}

	response.JSON(w, r, code, models.HealthResponse{
		Status:    string(report.Status),
		Timestamp: models.Timestamp(report.Timestamp),
		Checks:    checks,
		Load:      report.Load,
	})
}

// Info handles GET /info.
func (h *SiteHandler) Info(w http.ResponseWriter, r *http.Request) {
	mem := h.cfg.System.Memory()

	response.JSON(w, r, http.StatusOK, models.InfoResponse{
		GoVersion:        h.cfg.GoVersion(),
		FrameworkVersion: h.cfg.FrameworkVersion(),
		ServerTime:       models.Timestamp(h.now()),
		Timezone:         h.cfg.Location.String(),
		MemoryUsage:      mem.Usage,
		MemoryPeak:       mem.Peak,
	})
}

// UnknownAction handles any route that names no action.
func (h *SiteHandler) UnknownAction(w http.ResponseWriter, r *http.Request) {
	response.NotFound(w, r, "Page not found.")
}

// MethodNotAllowed handles a known route requested with the wrong method.
func (h *SiteHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	response.MethodNotAllowed(w, r, "Method "+r.Method+" is not allowed for this action.")
}

func (h *SiteHandler) now() time.Time {
	return h.cfg.Now().In(h.cfg.Location)
}
