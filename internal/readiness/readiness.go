// Package readiness decides when a file appearing in the input directory
// has finished being written. Imaging exports copy large files in chunks,
// so a path is considered ready once its size is positive and stable
// across two consecutive polls.
package readiness

import (
	"context"
	"io/fs"
	"os"
	"time"
)

// Result reports how a readiness wait ended.
type Result int

const (
	// Ready means the size was positive and unchanged across two polls.
	Ready Result = iota
	// TimedOut means the deadline passed without the size stabilizing.
	TimedOut
)

func (r Result) String() string {
	switch r {
	case Ready:
		return "ready"
	case TimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// Detector polls a path until its size stabilizes.
type Detector struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

// New returns a detector with the given poll interval and timeout.
func New(pollInterval, timeout time.Duration) *Detector {
	return &Detector{PollInterval: pollInterval, Timeout: timeout}
}

// Wait polls path until two consecutive observations report the same
// positive size, the timeout elapses, or ctx is canceled. A path that
// vanishes mid-wait keeps being polled until the deadline; it may
// reappear if the producer is replacing it.
func (d *Detector) Wait(ctx context.Context, path string) (Result, error) {
	deadline := time.NewTimer(d.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(d.PollInterval)
	defer ticker.Stop()

	lastSize := int64(-1)
	for {
		size, err := sizeOf(path)
		if err == nil && size > 0 && size == lastSize {
			return Ready, nil
		}
		if err != nil {
			lastSize = -1
		} else {
			lastSize = size
		}

		select {
		case <-ctx.Done():
			return TimedOut, ctx.Err()
		case <-deadline.C:
			return TimedOut, nil
		case <-ticker.C:
		}
	}
}

// sizeOf returns the observable size of path. For directories the size is
// the sum of the direct children's sizes, so a series export is ready only
// once every slice has stopped growing.
func sizeOf(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, entry := range entries {
		child, err := entry.Info()
		if err != nil {
			// A slice removed between listing and stat; treat the
			// directory as still changing.
			if os.IsNotExist(err) {
				return 0, fs.ErrNotExist
			}
			return 0, err
		}
		total += child.Size()
	}
	return total, nil
}
