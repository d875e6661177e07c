package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/devopsapp/devops-app/internal/api"
	"github.com/devopsapp/devops-app/internal/api/middleware"
	"github.com/devopsapp/devops-app/internal/cache"
	"github.com/devopsapp/devops-app/internal/database"
	"github.com/devopsapp/devops-app/internal/health"
	"github.com/devopsapp/devops-app/internal/logging"
	"github.com/devopsapp/devops-app/internal/sysinfo"
	"github.com/devopsapp/devops-app/internal/telemetry"
)

// telemetryShutdownTimeout bounds the final flush of buffered spans and metrics.
const telemetryShutdownTimeout = 5 * time.Second

func newServeCommand(app *application) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return app.serve(ctx)
		},
	}
	cmd.Flags().Int("http.port", 0, "The port to listen on.")
	return cmd
}

// serve runs the server until ctx is canceled, then shuts it down gracefully.
func (a *application) serve(ctx context.Context) error {
	cfg := a.cfg

	log, err := logging.New(cfg, a.fs, a.stdout)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	log.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Msg("starting " + cfg.App.Name)

	tp, err := telemetry.Init(ctx, telemetry.ConfigFrom(cfg, Version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()
	if cfg.Telemetry.Enabled {
		log.Info().Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	db, err := database.Open(ctx, database.ConfigFrom(cfg.Database))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	log.Info().Str("driver", db.Driver()).Msg("database configured")

	fileCache, err := cache.NewFileCache(a.fs, cache.FileConfig{
		Path:          cfg.Cache.Path,
		GCProbability: cfg.Cache.GCProbability,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	sampler := sysinfo.NewSampler()

	aggregator, err := health.NewAggregator(health.AggregatorConfig{
		Database: health.DatabaseProbe(db),
		Cache:    health.CacheProbe(fileCache, cfg.Health.CacheTTL, nil),
		Timeout:  cfg.Health.ProbeTimeout,
		Load:     sampler.LoadAverage,
		Location: cfg.App.Location(),
		Logger:   log.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize health checks: %w", err)
	}

	router := api.NewRouter(api.RouterConfig{
		Config:  cfg,
		Version: Version,
		Logger:  log.Logger,
		Metrics: metrics,
		Health:  aggregator,
		System:  sampler,
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	log.Info().Str("addr", server.Addr).Msg("server listening")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}
