package inflight

import (
	"sync"
	"testing"
)

func TestTryAcquireRelease(t *testing.T) {
	s := NewSet()

	if !s.TryAcquire("scan.nii") {
		t.Fatal("first acquire should succeed")
	}
	if s.TryAcquire("scan.nii") {
		t.Fatal("second acquire of the same name should fail")
	}
	if !s.TryAcquire("other.nii") {
		t.Fatal("acquire of a different name should succeed")
	}

	s.Release("scan.nii")
	if !s.TryAcquire("scan.nii") {
		t.Fatal("acquire after release should succeed")
	}
}

func TestReleaseUnheldIsNoop(t *testing.T) {
	s := NewSet()
	s.Release("never-acquired.nii")
	if s.Len() != 0 {
		t.Fatalf("len = %d, want 0", s.Len())
	}
}

func TestConcurrentAcquireSingleWinner(t *testing.T) {
	s := NewSet()

	const goroutines = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, goroutines)
	start := make(chan struct{})

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if s.TryAcquire("contested.nii") {
				wins <- struct{}{}
			}
		}()
	}
	close(start)
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	if won != 1 {
		t.Fatalf("winners = %d, want exactly 1", won)
	}
}
