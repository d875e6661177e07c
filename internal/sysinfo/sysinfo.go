// Package sysinfo reads host and process facts for the index, info and
// health reports.
package sysinfo

import (
	"os"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/mackerelio/go-osstat/loadavg"
	"github.com/prometheus/procfs"
)

// FrameworkModule is the module whose version is reported as the framework
// version.
const FrameworkModule = "github.com/go-chi/chi/v5"

// Unknown is reported when a value cannot be determined.
const Unknown = "unknown"

// Memory holds process memory figures in bytes.
type Memory struct {
	// Usage is the resident set size, or the Go runtime's total obtained
	// memory when the OS does not expose it.
	Usage uint64
	// Peak is the resident set high-water mark, or the largest Usage this
	// process has observed when the OS does not expose it.
	Peak uint64
}

// Sampler reads host and process facts. The zero value is not usable; use
// NewSampler.
type Sampler struct {
	hostname func() (string, error)
	load     func() (*loadavg.Stats, error)
	procMem  func() (usage, peak uint64, err error)

	mu       sync.Mutex
	seenPeak uint64
}

// NewSampler returns a Sampler backed by the operating system.
func NewSampler() *Sampler {
	return &Sampler{
		hostname: os.Hostname,
		load:     loadavg.Get,
		procMem:  procStatusMemory,
	}
}

// Hostname returns the host name, or Unknown.
func (s *Sampler) Hostname() string {
	name, err := s.hostname()
	if err != nil || name == "" {
		return Unknown
	}
	return name
}

// LoadAverage returns the 1-minute load average.
func (s *Sampler) LoadAverage() (float64, error) {
	stats, err := s.load()
	if err != nil {
		return 0, err
	}
	return stats.Loadavg1, nil
}

// Memory returns the current and peak memory usage of the process.
func (s *Sampler) Memory() Memory {
	if usage, peak, err := s.procMem(); err == nil && usage > 0 {
		if peak < usage {
			peak = usage
		}
		return Memory{Usage: usage, Peak: s.observe(peak)}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return Memory{Usage: ms.Sys, Peak: s.observe(ms.Sys)}
}

func (s *Sampler) observe(v uint64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v > s.seenPeak {
		s.seenPeak = v
	}
	return s.seenPeak
}

// GoVersion returns the Go runtime version.
func GoVersion() string {
	return runtime.Version()
}

// FrameworkVersion returns the version of the HTTP router module linked into
// the binary.
func FrameworkVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Unknown
	}
	for _, dep := range info.Deps {
		if dep.Path != FrameworkModule {
			continue
		}
		if dep.Replace != nil && dep.Replace.Version != "" {
			return dep.Replace.Version
		}
		if dep.Version != "" {
			return dep.Version
		}
	}
	return Unknown
}

func procStatusMemory() (uint64, uint64, error) {
	proc, err := procfs.Self()
	if err != nil {
		return 0, 0, err
	}
	status, err := proc.NewStatus()
	if err != nil {
		return 0, 0, err
	}
	return status.VmRSS, status.VmHWM, nil
}
