// Package requirements checks whether the host can run the application.
package requirements

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mackerelio/go-osstat/memory"
	"github.com/spf13/afero"

	"github.com/devopsapp/devops-app/internal/cache"
	"github.com/devopsapp/devops-app/internal/config"
	"github.com/devopsapp/devops-app/internal/database"
)

// MinGoMinor is the oldest Go 1.x release the application supports.
const MinGoMinor = 24

// MinFreeMemory is the free memory below which a warning is reported.
const MinFreeMemory = 64 * humanize.MiByte

// pingRetryInterval is the first delay between database ping attempts.
const pingRetryInterval = 100 * time.Millisecond

// ErrMandatoryFailed is returned by Checker.Run when a mandatory check fails.
var ErrMandatoryFailed = errors.New("mandatory requirement not met")

// Result is the outcome of one check.
type Result struct {
	Name      string
	Mandatory bool
	Passed    bool
	Detail    string
}

// Status renders the result for the report table.
func (r Result) Status() string {
	switch {
	case r.Passed:
		return "passed"
	case r.Mandatory:
		return "FAILED"
	default:
		return "warning"
	}
}

// Checker runs the requirement checks against a configuration.
type Checker struct {
	cfg       config.Config
	fs        afero.Fs
	goVersion func() string
	memory    func() (*memory.Stats, error)
	open      func(context.Context, database.Config) (*database.Handle, error)
	timeout   time.Duration
}

// NewChecker creates a Checker backed by the operating system.
func NewChecker(cfg config.Config, fs afero.Fs) *Checker {
	return &Checker{
		cfg:       cfg,
		fs:        fs,
		goVersion: runtime.Version,
		memory:    memory.Get,
		open:      database.Open,
		timeout:   cfg.Health.ProbeTimeout,
	}
}

// Run executes every check in order. The error wraps ErrMandatoryFailed when
// at least one mandatory check failed.
func (c *Checker) Run(ctx context.Context) ([]Result, error) {
	results := []Result{
		c.checkGoVersion(),
		c.checkDriver(),
		c.checkDatabase(ctx),
		c.checkCacheDir(ctx),
		c.checkLogDir(),
		c.checkMemory(),
	}

	var failed []string
	for _, r := range results {
		if r.Mandatory && !r.Passed {
			failed = append(failed, r.Name)
		}
	}
	if len(failed) > 0 {
		return results, fmt.Errorf("%w: %s", ErrMandatoryFailed, strings.Join(failed, ", "))
	}
	return results, nil
}

func (c *Checker) checkGoVersion() Result {
	v := c.goVersion()
	r := Result{Name: "Go runtime", Mandatory: true, Detail: v}

	minor, ok := goMinor(v)
	if !ok {
		// development builds carry no release number
		r.Passed = true
		return r
	}
	r.Passed = minor >= MinGoMinor
	if !r.Passed {
		r.Detail = fmt.Sprintf("%s, go1.%d or later is required", v, MinGoMinor)
	}
	return r
}

func (c *Checker) checkDriver() Result {
	driver := c.cfg.Database.Driver
	r := Result{
		Name:      "Database driver",
		Mandatory: true,
		Passed:    database.DriverRegistered(driver),
		Detail:    driver,
	}
	if !r.Passed {
		r.Detail = fmt.Sprintf("driver %q is not available", driver)
	}
	return r
}

func (c *Checker) checkDatabase(ctx context.Context) Result {
	r := Result{Name: "Database connection", Detail: c.cfg.Database.Driver}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	db, err := c.open(ctx, database.ConfigFrom(c.cfg.Database))
	if err != nil {
		r.Detail = err.Error()
		return r
	}
	defer db.Close()

	// a server that is still starting gets until the timeout to answer
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = pingRetryInterval
	b.MaxElapsedTime = c.timeout
	if err := backoff.Retry(func() error { return db.Ping(ctx) }, backoff.WithContext(b, ctx)); err != nil {
		r.Detail = err.Error()
		return r
	}
	r.Passed = true
	return r
}

func (c *Checker) checkCacheDir(ctx context.Context) Result {
	r := Result{Name: "Cache directory writable", Mandatory: true, Detail: c.cfg.Cache.Path}

	fc, err := cache.NewFileCache(c.fs, cache.FileConfig{Path: c.cfg.Cache.Path})
	if err != nil {
		r.Detail = err.Error()
		return r
	}

	key := "requirements_" + uuid.NewString()
	if err := fc.Set(ctx, key, []byte("ok"), time.Minute); err != nil {
		r.Detail = err.Error()
		return r
	}
	_ = fc.Delete(ctx, key)

	r.Passed = true
	return r
}

func (c *Checker) checkLogDir() Result {
	r := Result{Name: "Log directory writable", Mandatory: true}
	if c.cfg.Logging.File == "" {
		r.Passed = true
		r.Detail = "file logging disabled"
		return r
	}

	dir := filepath.Dir(c.cfg.Logging.File)
	r.Detail = dir
	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		r.Detail = err.Error()
		return r
	}

	f, err := afero.TempFile(c.fs, dir, ".requirements-*")
	if err != nil {
		r.Detail = err.Error()
		return r
	}
	name := f.Name()
	_ = f.Close()
	_ = c.fs.Remove(name)

	r.Passed = true
	return r
}

func (c *Checker) checkMemory() Result {
	r := Result{Name: "Memory available"}

	stats, err := c.memory()
	if err != nil {
		r.Detail = err.Error()
		return r
	}

	r.Detail = fmt.Sprintf("%s free of %s", humanize.IBytes(stats.Free), humanize.IBytes(stats.Total))
	r.Passed = stats.Free >= MinFreeMemory
	return r
}

// goMinor extracts the minor release from versions like "go1.24.2".
func goMinor(v string) (int, bool) {
	rest, ok := strings.CutPrefix(v, "go1.")
	if !ok {
		return 0, false
	}
	if i := strings.IndexAny(rest, ".rcbeta "); i >= 0 {
		rest = rest[:i]
	}
	minor, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return minor, true
}

// Write renders results as an aligned table.
func Write(w io.Writer, results []Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tREQUIRED\tSTATUS\tDETAIL")
	for _, r := range results {
		required := "no"
		if r.Mandatory {
			required = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, required, r.Status(), r.Detail)
	}
	return tw.Flush()
}
