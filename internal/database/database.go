// Package database provides database connection management for SQLite and
// PostgreSQL.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/devopsapp/devops-app/internal/config"
)

// ErrUnsupportedDriver is returned by Open for an unknown driver name.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Config holds database connection configuration.
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ConfigFrom converts the application database settings.
func ConfigFrom(cfg config.Database) Config {
	return Config{
		Driver:          cfg.Driver,
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}
}

// Handle is an open database connection pool.
type Handle struct {
	driver string
	sqlDB  *sql.DB
	pool   *pgxpool.Pool
}

// Open creates the connection pool for cfg.Driver. Pools connect lazily, so
// Open succeeds while the server is unreachable; use Ping to check it.
func Open(ctx context.Context, cfg Config) (*Handle, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return openSQLite(cfg)
	case config.DriverPostgres:
		return openPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
}

// DriverRegistered reports whether the binary can open connections for the
// named driver.
func DriverRegistered(driver string) bool {
	switch driver {
	case config.DriverSQLite:
		return slices.Contains(sql.Drivers(), "sqlite")
	case config.DriverPostgres:
		return true
	default:
		return false
	}
}

func openSQLite(cfg Config) (*Handle, error) {
	if !isMemoryDSN(cfg.DSN) {
		if err := os.MkdirAll(filepath.Dir(sqlitePath(cfg.DSN)), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &Handle{driver: config.DriverSQLite, sqlDB: db}, nil
}

func openPostgres(ctx context.Context, cfg Config) (*Handle, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns) //nolint:gosec // MaxOpenConns is bounded by config validation
	poolConfig.MinConns = int32(cfg.MaxIdleConns) //nolint:gosec // MaxIdleConns is bounded by config validation
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	return &Handle{driver: config.DriverPostgres, pool: pool}, nil
}

// Driver returns the driver name the handle was opened with.
func (h *Handle) Driver() string {
	return h.driver
}

// Ping verifies that a connection can be established and used.
func (h *Handle) Ping(ctx context.Context) error {
	switch {
	case h.pool != nil:
		if err := h.pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
	case h.sqlDB != nil:
		if err := h.sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
	default:
		return errors.New("ping database: handle is closed")
	}
	return nil
}

// Close releases the pool.
func (h *Handle) Close() error {
	if h.pool != nil {
		h.pool.Close()
		return nil
	}
	if h.sqlDB != nil {
		return h.sqlDB.Close()
	}
	return nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// sqlitePath strips the optional file: scheme and query string.
func sqlitePath(dsn string) string {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return p
}
