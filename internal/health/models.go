// Package health evaluates the reachability of the application's backing
// services and reduces the outcomes into a single report.
package health

import "time"

// ProbeResult is the outcome of one probe.
type ProbeResult string

const (
	ProbeOK    ProbeResult = "ok"
	ProbeError ProbeResult = "error"
)

// Status is the overall health of the application.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// Check names, in evaluation order.
const (
	CheckApp      = "app"
	CheckDatabase = "database"
	CheckCache    = "cache"
)

// Check is a named probe result.
type Check struct {
	Name   string
	Result ProbeResult
}

// Report is the result of one evaluation. It is built per request and never
// reused.
type Report struct {
	Status    Status
	Timestamp time.Time
	// Checks are in evaluation order: app, database, cache.
	Checks []Check
	// Load is the 1-minute host load average, 0 when unavailable.
	Load float64
}

// Result returns the result recorded for name.
func (r Report) Result(name string) (ProbeResult, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c.Result, true
		}
	}
	return "", false
}

// StatusFor reduces check results: any error makes the report unhealthy.
func StatusFor(checks []Check) Status {
	for _, c := range checks {
		if c.Result != ProbeOK {
			return StatusUnhealthy
		}
	}
	return StatusHealthy
}
