// Package markers persists per-file processing outcomes as hidden files in
// the output directory. Markers are the durable idempotency record: a file
// with an existing marker is never reprocessed, across restarts included.
package markers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"neuroproc/internal/fileutil"
)

// Outcome describes the recorded result for a file.
type Outcome int

const (
	// None means no marker exists for the file.
	None Outcome = iota
	// Processed means a success marker exists.
	Processed
	// Failed means an error marker exists.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Processed:
		return "processed"
	case Failed:
		return "failed"
	default:
		return "none"
	}
}

// Store reads and writes outcome markers under a single output directory.
type Store struct {
	dir string
}

// NewStore returns a marker store rooted at the output directory. The
// directory is created on the first write, not here.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// SuccessPath returns the success marker path for the named input file.
func (s *Store) SuccessPath(name string) string {
	return filepath.Join(s.dir, "."+name+".processed")
}

// ErrorPath returns the error marker path for the named input file.
func (s *Store) ErrorPath(name string) string {
	return filepath.Join(s.dir, "."+name+".error")
}

// HasOutcome reports whether any marker exists for the named file.
func (s *Store) HasOutcome(name string) bool {
	return s.Outcome(name) != None
}

// Outcome returns the recorded outcome for the named file. A file carrying
// both markers reports Processed; RecordSuccess and RecordError keep that
// state from arising, but a crash between write and cleanup can leave it.
func (s *Store) Outcome(name string) Outcome {
	if exists(s.SuccessPath(name)) {
		return Processed
	}
	if exists(s.ErrorPath(name)) {
		return Failed
	}
	return None
}

// ErrorMessage returns the message stored in the error marker, or "" when
// no error marker exists.
func (s *Store) ErrorMessage(name string) string {
	data, err := os.ReadFile(s.ErrorPath(name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// RecordSuccess writes the success marker and removes any stale error
// marker from a previous attempt.
func (s *Store) RecordSuccess(name string) error {
	if err := fileutil.EnsureDir(s.dir); err != nil {
		return err
	}
	if err := fileutil.WriteAtomic(s.SuccessPath(name), nil, 0o644); err != nil {
		return fmt.Errorf("write success marker: %w", err)
	}
	if err := os.Remove(s.ErrorPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale error marker: %w", err)
	}
	return nil
}

// RecordError writes the error marker with the failure message and removes
// any stale success marker.
func (s *Store) RecordError(name, message string) error {
	if err := fileutil.EnsureDir(s.dir); err != nil {
		return err
	}
	if err := fileutil.WriteAtomic(s.ErrorPath(name), []byte(message+"\n"), 0o644); err != nil {
		return fmt.Errorf("write error marker: %w", err)
	}
	if err := os.Remove(s.SuccessPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale success marker: %w", err)
	}
	return nil
}

// Clear removes both markers for the named file. Used by the reprocess
// path when an operator wants a file picked up again.
func (s *Store) Clear(name string) error {
	for _, path := range []string{s.SuccessPath(name), s.ErrorPath(name)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
