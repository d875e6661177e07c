// Package logging builds the application logger and its log targets.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/devopsapp/devops-app/internal/config"
)

const (
	defaultLevel = zerolog.InfoLevel
	debugLevel   = zerolog.DebugLevel
)

// Logger is the application logger plus the resources its targets hold open.
type Logger struct {
	zerolog.Logger
	closers []io.Closer
}

// Close releases any file targets.
func (l *Logger) Close() error {
	var firstErr error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// New builds a logger that writes every enabled level to out and, when
// cfg.Logging.File is set, appends the levels listed in
// cfg.Logging.FileLevels to that file on fs.
func New(cfg config.Config, fs afero.Fs, out io.Writer) (*Logger, error) {
	level, err := resolveLevel(cfg)
	if err != nil {
		return nil, err
	}

	if out == nil {
		out = os.Stdout
	}
	if cfg.Logging.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	writers := []io.Writer{out}
	var closers []io.Closer

	if cfg.Logging.File != "" {
		target, err := openFileTarget(fs, cfg.Logging.File, cfg.Logging.FileLevels)
		if err != nil {
			return nil, err
		}
		writers = append(writers, target)
		closers = append(closers, target)
	}

	ctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Str("app", cfg.App.ID).
		Str("env", cfg.App.Env)
	if cfg.App.Debug {
		ctx = ctx.Caller()
	}

	return &Logger{
		Logger:  ctx.Logger().Level(level),
		closers: closers,
	}, nil
}

// resolveLevel honours an explicit logging.level. Without one, debug mode
// logs at debug and everything else at info.
func resolveLevel(cfg config.Config) (zerolog.Level, error) {
	if cfg.Logging.Level == "" {
		if cfg.App.Debug {
			return debugLevel, nil
		}
		return defaultLevel, nil
	}
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("failed to parse log level '%s': %w", cfg.Logging.Level, err)
	}
	return level, nil
}

// fileTarget appends selected levels to a log file.
type fileTarget struct {
	file   afero.File
	levels map[zerolog.Level]bool
}

func openFileTarget(fs afero.Fs, path string, levels []string) (*fileTarget, error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	allowed := make(map[zerolog.Level]bool, len(levels))
	for _, name := range levels {
		lvl, err := zerolog.ParseLevel(name)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to parse file log level '%s': %w", name, err)
		}
		allowed[lvl] = true
	}

	return &fileTarget{file: f, levels: allowed}, nil
}

// Write drops events that carry no level information.
func (t *fileTarget) Write(p []byte) (int, error) {
	return len(p), nil
}

// WriteLevel implements zerolog.LevelWriter.
func (t *fileTarget) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if !t.levels[level] {
		return len(p), nil
	}
	return t.file.Write(p)
}

func (t *fileTarget) Close() error {
	return t.file.Close()
}
