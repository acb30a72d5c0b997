package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"neuroproc/internal/inflight"
	"neuroproc/internal/markers"
	"neuroproc/internal/pipeline"
	"neuroproc/internal/readiness"
	"neuroproc/internal/scanner"
)

type collectingProcessor struct {
	mu        sync.Mutex
	processed map[string]int
}

func newCollectingProcessor() *collectingProcessor {
	return &collectingProcessor{processed: make(map[string]int)}
}

func (p *collectingProcessor) Process(ctx context.Context, record pipeline.FileRecord) (pipeline.Result, error) {
	p.mu.Lock()
	p.processed[record.Name]++
	p.mu.Unlock()
	return pipeline.Result{}, nil
}

func (p *collectingProcessor) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processed[name]
}

func newWatcher(inDir string, store *markers.Store, proc scanner.Processor) *Watcher {
	detector := readiness.New(5*time.Millisecond, 500*time.Millisecond)
	set := inflight.NewSet()
	return &Watcher{
		InputDir:  inDir,
		Processor: proc,
		Markers:   store,
		InFlight:  set,
		Readiness: detector,
		Scanner: &scanner.Scanner{
			InputDir:  inDir,
			Workers:   2,
			Processor: proc,
			Markers:   store,
			InFlight:  set,
			Readiness: detector,
		},
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestRunDrainsExistingThenWatchesLive(t *testing.T) {
	inDir := t.TempDir()
	store := markers.NewStore(t.TempDir())
	proc := newCollectingProcessor()

	if err := os.WriteFile(filepath.Join(inDir, "existing.nii"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := newWatcher(inDir, store, proc)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitFor(t, 5*time.Second, func() bool { return proc.count("existing.nii") == 1 })
	waitFor(t, 5*time.Second, func() bool { return w.State() == StateWatching })

	if err := os.WriteFile(filepath.Join(inDir, "live.nii"), []byte("arrived later"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 5*time.Second, func() bool { return proc.count("live.nii") == 1 })

	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
	if w.State() != StateStopped {
		t.Fatalf("state = %v, want stopped", w.State())
	}
}

func TestEventsForMarkedFilesAreDropped(t *testing.T) {
	inDir := t.TempDir()
	store := markers.NewStore(t.TempDir())
	proc := newCollectingProcessor()
	if err := store.RecordSuccess("done.nii"); err != nil {
		t.Fatal(err)
	}

	w := newWatcher(inDir, store, proc)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitFor(t, 5*time.Second, func() bool { return w.State() == StateWatching })
	if err := os.WriteFile(filepath.Join(inDir, "done.nii"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(inDir, "fresh.nii"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 5*time.Second, func() bool { return proc.count("fresh.nii") == 1 })
	cancel()
	<-done

	if proc.count("done.nii") != 0 {
		t.Fatalf("marked file processed %d times, want 0", proc.count("done.nii"))
	}
}

func TestNonVolumeEventsIgnored(t *testing.T) {
	inDir := t.TempDir()
	store := markers.NewStore(t.TempDir())
	proc := newCollectingProcessor()

	w := newWatcher(inDir, store, proc)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitFor(t, 5*time.Second, func() bool { return w.State() == StateWatching })
	if err := os.WriteFile(filepath.Join(inDir, "notes.txt"), []byte("text"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(inDir, ".partial.nii"), []byte("tmp"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(inDir, "real.nii"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 5*time.Second, func() bool { return proc.count("real.nii") == 1 })
	cancel()
	<-done

	if proc.count("notes.txt") != 0 || proc.count(".partial.nii") != 0 {
		t.Fatal("ineligible files should never reach the pipeline")
	}
}

func TestMissingInputDirFailsFast(t *testing.T) {
	w := newWatcher(filepath.Join(t.TempDir(), "missing"), markers.NewStore(t.TempDir()), newCollectingProcessor())
	if err := w.Run(context.Background()); err == nil {
		t.Fatal("expected error for missing input directory")
	}
}
