package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"salonbook/shared/logging"
)

// Reloadable holds the settings applied without a restart.
type Reloadable struct {
	IdleMinutes int
}

// Reloadable returns the hot-reloadable part of the config.
func (c *Config) Reloadable() Reloadable {
	return Reloadable{IdleMinutes: c.IdleMinutes()}
}

// Watcher polls the config file and reports changes to the Reloadable
// settings. Edits that only touch restart-bound sections are skipped.
type Watcher struct {
	path     string
	interval time.Duration
	logger   logging.Logger
	lastMod  time.Time
	applied  Reloadable
}

// NewWatcher starts from the already loaded config. Interval defaults to
// 30 seconds.
func NewWatcher(path string, current *Config, interval time.Duration, logger logging.Logger) *Watcher {
	path = Path(path)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	w := &Watcher{
		path:     path,
		interval: interval,
		logger:   logging.OrNop(logger),
		applied:  current.Reloadable(),
	}
	if info, err := os.Stat(path); err == nil {
		w.lastMod = info.ModTime()
	}
	return w
}

// Poll checks the file once. It reports true when the file was modified and
// a reloadable setting differs from the applied one. A file that fails to
// load is reported once per modification.
func (w *Watcher) Poll() (Reloadable, bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return w.applied, false, nil // file being replaced
	}
	if !info.ModTime().After(w.lastMod) {
		return w.applied, false, nil
	}
	w.lastMod = info.ModTime()

	cfg, err := Load(w.path)
	if err != nil {
		return w.applied, false, fmt.Errorf("reload %s: %w", w.path, err)
	}

	next := cfg.Reloadable()
	if next == w.applied {
		w.logger.Debug("config changed, nothing to apply", "path", w.path)
		return w.applied, false, nil
	}
	w.applied = next
	return next, true, nil
}

// Run polls until ctx is done and calls onChange for every effective change.
func (w *Watcher) Run(ctx context.Context, onChange func(Reloadable)) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			next, changed, err := w.Poll()
			if err != nil {
				w.logger.Error("config reload failed", "error", err)
				continue
			}
			if changed {
				w.logger.Info("config reloaded", "idle_minutes", next.IdleMinutes)
				onChange(next)
			}
		}
	}
}
