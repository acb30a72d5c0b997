package daemon

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"neuroproc/internal/inflight"
	"neuroproc/internal/markers"
	"neuroproc/internal/pipeline"
	"neuroproc/internal/readiness"
	"neuroproc/internal/scanner"
	"neuroproc/internal/watcher"
)

type nopProcessor struct{}

func (nopProcessor) Process(ctx context.Context, record pipeline.FileRecord) (pipeline.Result, error) {
	return pipeline.Result{}, nil
}

func newDaemon(t *testing.T) (*Daemon, string) {
	t.Helper()
	inDir := t.TempDir()
	outDir := t.TempDir()
	store := markers.NewStore(outDir)
	detector := readiness.New(5*time.Millisecond, 100*time.Millisecond)
	set := inflight.NewSet()
	w := &watcher.Watcher{
		InputDir:  inDir,
		Processor: nopProcessor{},
		Markers:   store,
		InFlight:  set,
		Readiness: detector,
		Scanner: &scanner.Scanner{
			InputDir:  inDir,
			Workers:   1,
			Processor: nopProcessor{},
			Markers:   store,
			InFlight:  set,
			Readiness: detector,
		},
	}
	return New(w, outDir, nil), outDir
}

func TestRunCreatesAndReleasesLock(t *testing.T) {
	d, _ := newDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(d.LockPath()); err == nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The lock must be free again after shutdown.
	lock := flock.New(d.LockPath())
	ok, err := lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("lock not released: ok=%v err=%v", ok, err)
	}
	_ = lock.Unlock()
}

func TestSecondInstanceRejected(t *testing.T) {
	d, _ := newDaemon(t)

	lock := flock.New(d.LockPath())
	ok, err := lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("pre-acquire lock: ok=%v err=%v", ok, err)
	}
	defer lock.Unlock()

	err = d.Run(context.Background())
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("err = %v, want ErrAlreadyRunning", err)
	}
}
