package health

import (
	"context"
	"strconv"
	"time"
)

// CacheMarkerKey is the key written by the cache probe.
const CacheMarkerKey = "health_check"

// DefaultCacheMarkerTTL bounds the lifetime of the cache probe marker.
const DefaultCacheMarkerTTL = 10 * time.Second

// Probe checks one dependency. A nil error means the dependency is reachable.
type Probe interface {
	Check(ctx context.Context) error
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ctx context.Context) error

// Check calls f(ctx).
func (f ProbeFunc) Check(ctx context.Context) error {
	return f(ctx)
}

// Pinger validates a database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheWriter stores a value with an expiry.
type CacheWriter interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// DatabaseProbe reports whether db accepts connections.
func DatabaseProbe(db Pinger) Probe {
	return ProbeFunc(func(ctx context.Context) error {
		return db.Ping(ctx)
	})
}

// CacheProbe writes a short-lived marker holding the current unix time.
// A non-positive ttl uses DefaultCacheMarkerTTL.
func CacheProbe(c CacheWriter, ttl time.Duration, now func() time.Time) Probe {
	if ttl <= 0 {
		ttl = DefaultCacheMarkerTTL
	}
	if now == nil {
		now = time.Now
	}
	return ProbeFunc(func(ctx context.Context) error {
		marker := strconv.FormatInt(now().Unix(), 10)
		return c.Set(ctx, CacheMarkerKey, []byte(marker), ttl)
	})
}
