package cache

import (
	"context"
	"crypto/md5" //nolint:gosec // used for file naming only
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const (
	fileSuffix     = ".bin"
	tmpSuffix      = ".tmp"
	gcProbabilityN = 1_000_000

	// staleTmpAge is how long a temporary file may sit before GC treats it as
	// left behind by an interrupted Set.
	staleTmpAge = time.Minute
)

// FileConfig configures a FileCache.
type FileConfig struct {
	// Path is the directory holding cache files.
	Path string
	// GCProbability is the chance, in parts per million, that a Set also
	// removes expired files. Zero disables opportunistic collection.
	GCProbability int
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// FileCache stores each entry in its own file. The file modification time
// holds the expiry instant.
type FileCache struct {
	fs            afero.Fs
	dir           string
	gcProbability int
	now           func() time.Time
}

// NewFileCache creates the cache directory on fs and returns a FileCache.
func NewFileCache(fs afero.Fs, cfg FileConfig) (*FileCache, error) {
	if cfg.Path == "" {
		return nil, errors.New("cache: path cannot be empty")
	}
	if _, err := fs.Stat(cfg.Path); errors.Is(err, os.ErrNotExist) {
		if err := fs.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat cache directory: %w", err)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &FileCache{
		fs:            fs,
		dir:           cfg.Path,
		gcProbability: cfg.GCProbability,
		now:           now,
	}, nil
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string {
	return c.dir
}

// Get returns the stored value if the entry exists and has not expired.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ValidateKey(key); err != nil {
		return nil, false, err
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	path := c.filePath(key)
	info, err := c.fs.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("stat cache file: %w", err)
	}

	if !info.ModTime().After(c.now()) {
		// expired, clean up lazily
		_ = c.fs.Remove(path)
		return nil, false, nil
	}

	value, err := afero.ReadFile(c.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("read cache file: %w", err)
	}

	return value, true, nil
}

// Set stores value under key until now+ttl. A non-positive ttl stores the
// entry for DefaultTTL.
func (c *FileCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c.maybeGC(ctx)

	path := c.filePath(key)
	if err := c.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache shard: %w", err)
	}

	tmp := path + "." + uuid.NewString() + tmpSuffix
	if err := afero.WriteFile(c.fs, tmp, value, 0o644); err != nil {
		_ = c.fs.Remove(tmp)
		return fmt.Errorf("write cache file: %w", err)
	}

	now := c.now()
	if err := c.fs.Chtimes(tmp, now, now.Add(ttl)); err != nil {
		_ = c.fs.Remove(tmp)
		return fmt.Errorf("set cache expiry: %w", err)
	}

	if err := c.fs.Rename(tmp, path); err != nil {
		_ = c.fs.Remove(tmp)
		return fmt.Errorf("commit cache file: %w", err)
	}

	return nil
}

// Delete removes the entry for key.
func (c *FileCache) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := c.fs.Remove(c.filePath(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete cache file: %w", err)
	}
	return nil
}

// GC removes cache files. With expiredOnly false every entry and every
// temporary file is removed; otherwise expired entries and stale temporary
// files are. It returns the number of files deleted.
func (c *FileCache) GC(ctx context.Context, expiredOnly bool) (int, error) {
	now := c.now()
	removed := 0

	err := afero.Walk(c.fs, c.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() {
			return nil
		}
		switch {
		case strings.HasSuffix(path, fileSuffix):
			if expiredOnly && info.ModTime().After(now) {
				return nil
			}
		case strings.HasSuffix(path, tmpSuffix):
			if expiredOnly && info.ModTime().After(now.Add(-staleTmpAge)) {
				return nil
			}
		default:
			return nil
		}
		if err := c.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("collect cache files: %w", err)
	}

	return removed, nil
}

func (c *FileCache) maybeGC(ctx context.Context) {
	if c.gcProbability <= 0 {
		return
	}
	if rand.IntN(gcProbabilityN) < c.gcProbability { //nolint:gosec // not security sensitive
		_, _ = c.GC(ctx, true)
	}
}

// filePath shards entries by the first two hex characters of the key hash.
func (c *FileCache) filePath(key string) string {
	sum := md5.Sum([]byte(key)) //nolint:gosec // used for file naming only
	name := hex.EncodeToString(sum[:])
	return filepath.Join(c.dir, name[:2], name+fileSuffix)
}

// Ensure FileCache implements Store
var _ Store = (*FileCache)(nil)
