package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/devopsapp/devops-app/internal/health"

// DefaultProbeTimeout bounds a single probe when AggregatorConfig.Timeout is
// not set.
const DefaultProbeTimeout = 2 * time.Second

// ErrProbeTimeout is recorded when a probe does not finish within the timeout.
var ErrProbeTimeout = errors.New("probe timed out")

// LoadSampler returns the 1-minute host load average.
type LoadSampler func() (float64, error)

// AggregatorConfig configures an Aggregator.
type AggregatorConfig struct {
	// Database and Cache are required.
	Database Probe
	Cache    Probe

	// Timeout bounds each probe. Default: 2 seconds.
	Timeout time.Duration

	// Load samples the host load average. Optional.
	Load LoadSampler

	// Now and Location control report timestamps. Defaults: time.Now, UTC.
	Now      func() time.Time
	Location *time.Location

	Logger zerolog.Logger
}

// Aggregator runs the probe set and reduces it into a Report.
type Aggregator struct {
	database Probe
	cache    Probe
	timeout  time.Duration
	load     LoadSampler
	now      func() time.Time
	location *time.Location
	logger   zerolog.Logger

	tracer   trace.Tracer
	failures metric.Int64Counter
}

// NewAggregator creates an Aggregator. Both probes must be provided.
func NewAggregator(cfg AggregatorConfig) (*Aggregator, error) {
	if cfg.Database == nil {
		return nil, errors.New("health: database probe is required")
	}
	if cfg.Cache == nil {
		return nil, errors.New("health: cache probe is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}

	failures, err := otel.Meter(instrumentationName).Int64Counter(
		"health.probe.failures",
		metric.WithDescription("Number of failed health probes"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create probe failure counter: %w", err)
	}

	return &Aggregator{
		database: cfg.Database,
		cache:    cfg.Cache,
		timeout:  timeout,
		load:     cfg.Load,
		now:      now,
		location: location,
		logger:   cfg.Logger,
		tracer:   otel.Tracer(instrumentationName),
		failures: failures,
	}, nil
}

// Evaluate probes the database and then the cache, once each, and returns
// the report with 200 when healthy or 503 when unhealthy. Probe failures are
// logged and recorded in the report, never returned.
func (a *Aggregator) Evaluate(ctx context.Context) (Report, int) {
	checks := []Check{
		{Name: CheckApp, Result: ProbeOK},
		{Name: CheckDatabase, Result: a.run(ctx, CheckDatabase, a.database)},
		{Name: CheckCache, Result: a.run(ctx, CheckCache, a.cache)},
	}

	report := Report{
		Status:    StatusFor(checks),
		Timestamp: a.now().In(a.location),
		Checks:    checks,
		Load:      a.sampleLoad(),
	}

	if report.Status == StatusUnhealthy {
		return report, http.StatusServiceUnavailable
	}
	return report, http.StatusOK
}

func (a *Aggregator) run(ctx context.Context, name string, probe Probe) ProbeResult {
	ctx, span := a.tracer.Start(ctx, "health.probe "+name,
		trace.WithAttributes(attribute.String("health.probe", name)),
	)
	defer span.End()

	start := time.Now()
	err := a.check(ctx, probe)
	if err == nil {
		return ProbeOK
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "probe failed")
	a.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("probe", name)))

	a.logger.Warn().
		Err(err).
		Str("probe", name).
		Dur("duration", time.Since(start)).
		Msg("health probe failed")

	return ProbeError
}

// check runs probe under the probe timeout. A panic counts as a failure.
func (a *Aggregator) check(ctx context.Context, probe Probe) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("probe panicked: %v", r)
			}
		}()
		errCh <- probe.Check(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrProbeTimeout
		}
		return ctx.Err()
	}
}

func (a *Aggregator) sampleLoad() float64 {
	if a.load == nil {
		return 0
	}
	load, err := a.load()
	if err != nil {
		a.logger.Debug().Err(err).Msg("load average unavailable")
		return 0
	}
	return load
}
