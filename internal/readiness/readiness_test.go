package readiness

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWaitStableFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.nii")
	if err := os.WriteFile(path, []byte("stable content"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := New(5*time.Millisecond, time.Second)
	result, err := d.Wait(context.Background(), path)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if result != Ready {
		t.Fatalf("result = %v, want ready", result)
	}
}

func TestWaitGrowingFileBecomesReady(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.nii")
	if err := os.WriteFile(path, []byte("part"), 0o644); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			time.Sleep(10 * time.Millisecond)
			f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return
			}
			f.WriteString("more data")
			f.Close()
		}
	}()

	d := New(5*time.Millisecond, 5*time.Second)
	result, err := d.Wait(context.Background(), path)
	<-done
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if result != Ready {
		t.Fatalf("result = %v, want ready after writes finish", result)
	}
}

func TestWaitMissingFileTimesOut(t *testing.T) {
	d := New(5*time.Millisecond, 50*time.Millisecond)
	result, err := d.Wait(context.Background(), filepath.Join(t.TempDir(), "never-created.nii"))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if result != TimedOut {
		t.Fatalf("result = %v, want timed out", result)
	}
}

func TestWaitEmptyFileTimesOut(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.nii")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	d := New(5*time.Millisecond, 50*time.Millisecond)
	result, err := d.Wait(context.Background(), path)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if result != TimedOut {
		t.Fatalf("zero-size file should never be ready, got %v", result)
	}
}

func TestWaitDirectorySumsChildren(t *testing.T) {
	dir := t.TempDir()
	series := filepath.Join(dir, "series")
	if err := os.MkdirAll(series, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"slice_000.nii", "slice_001.nii"} {
		if err := os.WriteFile(filepath.Join(series, name), []byte("slice"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	d := New(5*time.Millisecond, time.Second)
	result, err := d.Wait(context.Background(), series)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if result != Ready {
		t.Fatalf("result = %v, want ready", result)
	}
}

func TestWaitContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := New(time.Hour, time.Hour)
	result, err := d.Wait(ctx, filepath.Join(t.TempDir(), "anything.nii"))
	if err == nil {
		t.Fatal("expected context error")
	}
	if result != TimedOut {
		t.Fatalf("result = %v, want timed out on cancel", result)
	}
}
