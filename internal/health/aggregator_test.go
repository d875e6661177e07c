package health_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devopsapp/devops-app/internal/health"
)

var (
	okProbe   = health.ProbeFunc(func(context.Context) error { return nil })
	downProbe = health.ProbeFunc(func(context.Context) error { return errors.New("connection refused") })
)

func newAggregator(t *testing.T, db, cache health.Probe) *health.Aggregator {
	t.Helper()
	agg, err := health.NewAggregator(health.AggregatorConfig{
		Database: db,
		Cache:    cache,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	return agg
}

func resultOf(t *testing.T, r health.Report, name string) health.ProbeResult {
	t.Helper()
	res, ok := r.Result(name)
	require.True(t, ok, "missing check %q", name)
	return res
}

func TestEvaluate_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		db         health.Probe
		cache      health.Probe
		wantStatus health.Status
		wantCode   int
		wantDB     health.ProbeResult
		wantCache  health.ProbeResult
	}{
		{
			name:       "all reachable",
			db:         okProbe,
			cache:      okProbe,
			wantStatus: health.StatusHealthy,
			wantCode:   http.StatusOK,
			wantDB:     health.ProbeOK,
			wantCache:  health.ProbeOK,
		},
		{
			name:       "database unreachable",
			db:         downProbe,
			cache:      okProbe,
			wantStatus: health.StatusUnhealthy,
			wantCode:   http.StatusServiceUnavailable,
			wantDB:     health.ProbeError,
			wantCache:  health.ProbeOK,
		},
		{
			name:       "cache unreachable",
			db:         okProbe,
			cache:      downProbe,
			wantStatus: health.StatusUnhealthy,
			wantCode:   http.StatusServiceUnavailable,
			wantDB:     health.ProbeOK,
			wantCache:  health.ProbeError,
		},
		{
			name:       "both unreachable",
			db:         downProbe,
			cache:      downProbe,
			wantStatus: health.StatusUnhealthy,
			wantCode:   http.StatusServiceUnavailable,
			wantDB:     health.ProbeError,
			wantCache:  health.ProbeError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := newAggregator(t, tt.db, tt.cache)

			report, code := agg.Evaluate(context.Background())

			assert.Equal(t, tt.wantStatus, report.Status)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, health.ProbeOK, resultOf(t, report, health.CheckApp))
			assert.Equal(t, tt.wantDB, resultOf(t, report, health.CheckDatabase))
			assert.Equal(t, tt.wantCache, resultOf(t, report, health.CheckCache))
		})
	}
}

func TestEvaluate_CheckOrder(t *testing.T) {
	report, _ := newAggregator(t, downProbe, okProbe).Evaluate(context.Background())

	names := make([]string, 0, len(report.Checks))
	for _, c := range report.Checks {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"app", "database", "cache"}, names)
}

func TestEvaluate_ProbesRunOnceInOrder(t *testing.T) {
	var calls []string
	db := health.ProbeFunc(func(context.Context) error {
		calls = append(calls, "database")
		return errors.New("down")
	})
	cache := health.ProbeFunc(func(context.Context) error {
		calls = append(calls, "cache")
		return nil
	})

	newAggregator(t, db, cache).Evaluate(context.Background())

	assert.Equal(t, []string{"database", "cache"}, calls)
}

func TestEvaluate_Independent(t *testing.T) {
	var dbUp atomic.Bool
	db := health.ProbeFunc(func(context.Context) error {
		if dbUp.Load() {
			return nil
		}
		return errors.New("down")
	})
	agg := newAggregator(t, db, okProbe)

	first, firstCode := agg.Evaluate(context.Background())
	dbUp.Store(true)
	second, secondCode := agg.Evaluate(context.Background())

	assert.Equal(t, health.StatusUnhealthy, first.Status)
	assert.Equal(t, http.StatusServiceUnavailable, firstCode)
	assert.Equal(t, health.StatusHealthy, second.Status)
	assert.Equal(t, http.StatusOK, secondCode)
	// the first report is untouched by the second evaluation
	assert.Equal(t, health.ProbeError, resultOf(t, first, health.CheckDatabase))
}

func TestEvaluate_TimestampsNonDecreasing(t *testing.T) {
	agg := newAggregator(t, okProbe, okProbe)

	var prev time.Time
	for i := 0; i < 5; i++ {
		report, _ := agg.Evaluate(context.Background())
		parsed, err := time.Parse(time.RFC3339Nano, report.Timestamp.Format(time.RFC3339Nano))
		require.NoError(t, err)
		assert.False(t, parsed.Before(prev))
		prev = parsed
	}
}

func TestEvaluate_TimestampUsesClockAndLocation(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	agg, err := health.NewAggregator(health.AggregatorConfig{
		Database: okProbe,
		Cache:    okProbe,
		Now:      func() time.Time { return fixed },
		Location: loc,
	})
	require.NoError(t, err)

	report, _ := agg.Evaluate(context.Background())
	assert.True(t, report.Timestamp.Equal(fixed))
	assert.Equal(t, "2024-05-01T12:00:00+02:00", report.Timestamp.Format(time.RFC3339))
}

func TestEvaluate_ProbeTimeout(t *testing.T) {
	slow := health.ProbeFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	agg, err := health.NewAggregator(health.AggregatorConfig{
		Database: slow,
		Cache:    okProbe,
		Timeout:  20 * time.Millisecond,
	})
	require.NoError(t, err)

	start := time.Now()
	report, code := agg.Evaluate(context.Background())

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, health.ProbeError, resultOf(t, report, health.CheckDatabase))
	assert.Equal(t, health.ProbeOK, resultOf(t, report, health.CheckCache))
}

func TestEvaluate_ProbeIgnoringContextIsBounded(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	stuck := health.ProbeFunc(func(context.Context) error {
		<-release
		return nil
	})
	agg, err := health.NewAggregator(health.AggregatorConfig{
		Database: okProbe,
		Cache:    stuck,
		Timeout:  20 * time.Millisecond,
	})
	require.NoError(t, err)

	report, code := agg.Evaluate(context.Background())
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, health.ProbeError, resultOf(t, report, health.CheckCache))
}

func TestEvaluate_PanickingProbeIsFailure(t *testing.T) {
	boom := health.ProbeFunc(func(context.Context) error {
		panic("driver exploded")
	})

	report, code := newAggregator(t, boom, okProbe).Evaluate(context.Background())
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, health.ProbeError, resultOf(t, report, health.CheckDatabase))
}

func TestEvaluate_Load(t *testing.T) {
	t.Run("sampled", func(t *testing.T) {
		agg, err := health.NewAggregator(health.AggregatorConfig{
			Database: okProbe,
			Cache:    okProbe,
			Load:     func() (float64, error) { return 1.25, nil },
		})
		require.NoError(t, err)

		report, _ := agg.Evaluate(context.Background())
		assert.InDelta(t, 1.25, report.Load, 0.0001)
	})

	t.Run("unavailable", func(t *testing.T) {
		agg, err := health.NewAggregator(health.AggregatorConfig{
			Database: okProbe,
			Cache:    okProbe,
			Load:     func() (float64, error) { return 0, errors.New("not supported") },
		})
		require.NoError(t, err)

		report, code := agg.Evaluate(context.Background())
		assert.Zero(t, report.Load)
		assert.Equal(t, http.StatusOK, code)
	})
}

func TestEvaluate_LogsFailures(t *testing.T) {
	var buf bytes.Buffer
	agg, err := health.NewAggregator(health.AggregatorConfig{
		Database: downProbe,
		Cache:    okProbe,
		Logger:   zerolog.New(&buf),
	})
	require.NoError(t, err)

	agg.Evaluate(context.Background())

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "database", entry["probe"])
	assert.Equal(t, "connection refused", entry["error"])
	assert.Equal(t, "health probe failed", entry["message"])
}

func TestNewAggregator_RequiresProbes(t *testing.T) {
	_, err := health.NewAggregator(health.AggregatorConfig{Cache: okProbe})
	assert.Error(t, err)

	_, err = health.NewAggregator(health.AggregatorConfig{Database: okProbe})
	assert.Error(t, err)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, health.StatusHealthy, health.StatusFor(nil))
	assert.Equal(t, health.StatusHealthy, health.StatusFor([]health.Check{{Name: "a", Result: health.ProbeOK}}))
	assert.Equal(t, health.StatusUnhealthy, health.StatusFor([]health.Check{
		{Name: "a", Result: health.ProbeOK},
		{Name: "b", Result: health.ProbeError},
	}))
}
