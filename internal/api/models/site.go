package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// IndexResponse is the body of GET /.
type IndexResponse struct {
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Timestamp   Timestamp `json:"timestamp"`
	Hostname    string    `json:"hostname"`
	Environment string    `json:"environment"`
	Debug       bool      `json:"debug"`
	Version     string    `json:"version"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string       `json:"status"`
	Timestamp Timestamp    `json:"timestamp"`
	Checks    HealthChecks `json:"checks"`
	// Load is the 1-minute host load average.
	Load float64 `json:"load"`
}

// HealthCheck is one entry of HealthChecks.
type HealthCheck struct {
	Name   string
	Result string
}

// HealthChecks marshals as a JSON object whose keys keep slice order.
type HealthChecks []HealthCheck

// MarshalJSON implements json.Marshaler.
func (c HealthChecks) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, check := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(check.Name)
		if err != nil {
			return nil, err
		}
		result, err := json.Marshal(check.Result)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(result)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, keeping document key order.
func (c *HealthChecks) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("checks must be a JSON object")
	}

	var checks HealthChecks
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("checks: unexpected key %v", keyTok)
		}
		var result string
		if err := dec.Decode(&result); err != nil {
			return fmt.Errorf("checks.%s: %w", key, err)
		}
		checks = append(checks, HealthCheck{Name: key, Result: result})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*c = checks
	return nil
}

// Get returns the result recorded for name.
func (c HealthChecks) Get(name string) (string, bool) {
	for _, check := range c {
		if check.Name == name {
			return check.Result, true
		}
	}
	return "", false
}

// InfoResponse is the body of GET /info.
type InfoResponse struct {
	GoVersion        string    `json:"go_version"`
	FrameworkVersion string    `json:"framework_version"`
	ServerTime       Timestamp `json:"server_time"`
	Timezone         string    `json:"timezone"`
	// MemoryUsage and MemoryPeak are in bytes.
	MemoryUsage uint64 `json:"memory_usage"`
	MemoryPeak  uint64 `json:"memory_peak"`
}
