// Package daemon owns the watch-mode lifecycle: single-instance locking,
// signal handling, and clean shutdown of the watcher.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"

	"neuroproc/internal/fileutil"
	"neuroproc/internal/logging"
	"neuroproc/internal/watcher"
)

// ErrAlreadyRunning is returned when another instance holds the lock for
// the same output directory.
var ErrAlreadyRunning = fmt.Errorf("another instance is already watching this directory")

// Daemon wraps a watcher with a filesystem lock so at most one instance
// processes a given output directory.
type Daemon struct {
	watcher  *watcher.Watcher
	lock     *flock.Flock
	lockPath string
	logger   *slog.Logger
}

// New builds a daemon for the watcher, locking inside outDir.
func New(w *watcher.Watcher, outDir string, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := filepath.Join(outDir, ".neuroproc.lock")
	return &Daemon{
		watcher:  w,
		lock:     flock.New(lockPath),
		lockPath: lockPath,
		logger:   logger.With(logging.String(logging.FieldComponent, "daemon")),
	}
}

// LockPath returns the lock file location.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// Run acquires the instance lock and runs the watcher until ctx is
// canceled or SIGINT/SIGTERM arrives.
func (d *Daemon) Run(ctx context.Context) error {
	if err := fileutil.EnsureDir(filepath.Dir(d.lockPath)); err != nil {
		return err
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("release instance lock", logging.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d.logger.Info("watch mode started", logging.String("lock", d.lockPath))
	err = d.watcher.Run(ctx)
	if err == context.Canceled {
		err = nil
	}
	d.logger.Info("watch mode stopped")
	return err
}
