package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
)

// DefaultWatchDebounce coalesces bursts of writes from editors into a
// single reload.
const DefaultWatchDebounce = 100 * time.Millisecond

// WatchOption configures Watch.
type WatchOption func(*watchConfig)

type watchConfig struct {
	debounce time.Duration
	log      *slog.Logger
}

// WithDebounce overrides DefaultWatchDebounce.
func WithDebounce(d time.Duration) WatchOption {
	return func(c *watchConfig) { c.debounce = d }
}

// WithWatchLogger sets the logger used for reload diagnostics.
func WithWatchLogger(l *slog.Logger) WatchOption {
	return func(c *watchConfig) { c.log = l }
}

// Watch observes the dotenv file at path and calls onChange with its parsed
// contents whenever it is written, created or renamed into place. The parent
// directory is watched so atomic replace-by-rename is seen. Watch blocks
// until ctx is done and then returns nil.
//
// The process environment is not modified; callers pick the keys they care
// about from the map.
func Watch(ctx context.Context, path string, onChange func(map[string]string), opts ...WatchOption) error {
	cfg := watchConfig{debounce: DefaultWatchDebounce, log: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		_ = w.Close()
	}()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(cfg.debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			cfg.log.WarnContext(ctx, "config.watch.error", slog.String("path", abs), slog.String("err", err.Error()))
		case <-timer.C:
			env, err := godotenv.Read(abs)
			if err != nil {
				// Renamed away or mid-write; the next event retries.
				cfg.log.DebugContext(ctx, "config.watch.read_failed", slog.String("path", abs), slog.String("err", err.Error()))
				continue
			}
			cfg.log.InfoContext(ctx, "config.watch.reload", slog.String("path", abs), slog.Int("keys", len(env)))
			onChange(env)
		}
	}
}
