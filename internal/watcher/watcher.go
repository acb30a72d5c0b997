// Package watcher runs the continuous ingestion mode: an initial drain of
// files already sitting in the input directory, then fsnotify-driven
// processing of files as they arrive.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"neuroproc/internal/imaging"
	"neuroproc/internal/inflight"
	"neuroproc/internal/logging"
	"neuroproc/internal/markers"
	"neuroproc/internal/pipeline"
	"neuroproc/internal/readiness"
	"neuroproc/internal/scanner"
)

// State is the watcher lifecycle phase.
type State int32

const (
	StateInitializing State = iota
	StateDraining
	StateWatching
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateDraining:
		return "draining"
	case StateWatching:
		return "watching"
	case StateShuttingDown:
		return "shutting down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Watcher owns the watch-mode lifecycle. Events for files already in
// flight or already resolved are dropped after the readiness wait, so a
// burst of writes to one file yields a single pipeline run.
type Watcher struct {
	InputDir string

	Processor scanner.Processor
	Markers   *markers.Store
	InFlight  *inflight.Set
	Readiness *readiness.Detector
	Scanner   *scanner.Scanner
	Logger    *slog.Logger

	state atomic.Int32
	wg    sync.WaitGroup
}

// State returns the current lifecycle phase.
func (w *Watcher) State() State {
	return State(w.state.Load())
}

func (w *Watcher) setState(s State, log *slog.Logger) {
	w.state.Store(int32(s))
	log.Info("state changed", logging.String("state", s.String()))
}

// Run drains the input directory, then watches it until ctx is canceled.
// The fsnotify subscription is established before the drain so files
// arriving during the drain are not lost.
func (w *Watcher) Run(ctx context.Context) error {
	logger := w.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	log := logger.With(logging.String(logging.FieldComponent, "watcher"))

	w.setState(StateInitializing, log)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.InputDir); err != nil {
		return fmt.Errorf("watch %s: %w", w.InputDir, err)
	}

	w.setState(StateDraining, log)
	if w.Scanner != nil {
		if _, err := w.Scanner.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("initial drain: %w", err)
		}
	}
	if ctx.Err() != nil {
		w.shutdown(log)
		return ctx.Err()
	}

	w.setState(StateWatching, log)
	for {
		select {
		case <-ctx.Done():
			w.shutdown(log)
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				w.shutdown(log)
				return nil
			}
			w.dispatch(ctx, log, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				w.shutdown(log)
				return nil
			}
			log.Warn("watch error", logging.Error(err))
		}
	}
}

// shutdown waits for in-flight processing to finish before reporting the
// stopped state.
func (w *Watcher) shutdown(log *slog.Logger) {
	w.setState(StateShuttingDown, log)
	w.wg.Wait()
	w.setState(StateStopped, log)
}

// dispatch filters an event down to an eligible path and hands it to a
// worker goroutine. Each event gets its own goroutine; single-flight
// dedup happens inside handle.
func (w *Watcher) dispatch(ctx context.Context, log *slog.Logger, event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	name := filepath.Base(event.Name)
	if len(name) == 0 || name[0] == '.' {
		return
	}
	if !imaging.IsVolumeFile(name) && !isDir(event.Name) {
		return
	}

	log.Debug("event received",
		logging.String(logging.FieldEventType, event.Op.String()),
		logging.String(logging.FieldFile, name))

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.handle(ctx, log, event.Name)
	}()
}

// handle runs the per-file sequence: wait for the file to stabilize,
// claim it, skip when an outcome is already recorded, then process. The
// claim is taken before the marker check so a second event for the same
// file cannot slip between check and processing.
func (w *Watcher) handle(ctx context.Context, log *slog.Logger, path string) {
	name := filepath.Base(path)

	result, err := w.Readiness.Wait(ctx, path)
	if err != nil {
		return
	}
	if result != readiness.Ready {
		log.Warn("file never stabilized, processing anyway",
			logging.String(logging.FieldFile, name))
	}

	if !w.InFlight.TryAcquire(path) {
		log.Debug("already in flight", logging.String(logging.FieldFile, name))
		return
	}
	defer w.InFlight.Release(path)

	if w.Markers.HasOutcome(name) {
		log.Debug("outcome already recorded", logging.String(logging.FieldFile, name))
		return
	}

	record, err := pipeline.NewFileRecord(path)
	if err != nil {
		log.Warn("file vanished before processing",
			logging.String(logging.FieldFile, name),
			logging.Error(err))
		return
	}
	if record.Kind == pipeline.KindSeries && !imaging.IsSeriesDir(path) {
		log.Debug("directory holds no volume data", logging.String(logging.FieldFile, name))
		return
	}

	// Errors are already committed to the marker and journal by the
	// runner; nothing more to do here.
	_, _ = w.Processor.Process(ctx, record)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
