package markers

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNoMarkerInitially(t *testing.T) {
	s := NewStore(t.TempDir())
	if s.HasOutcome("scan1.nii.gz") {
		t.Fatal("fresh store should have no outcome")
	}
	if got := s.Outcome("scan1.nii.gz"); got != None {
		t.Fatalf("outcome = %v, want none", got)
	}
}

func TestRecordSuccess(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if err := s.RecordSuccess("scan1.nii.gz"); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}

	if got := s.Outcome("scan1.nii.gz"); got != Processed {
		t.Fatalf("outcome = %v, want processed", got)
	}
	if _, err := os.Stat(filepath.Join(dir, ".scan1.nii.gz.processed")); err != nil {
		t.Fatalf("marker file missing: %v", err)
	}
}

func TestRecordErrorStoresMessage(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if err := s.RecordError("scan1.nii.gz", "corrupt header"); err != nil {
		t.Fatalf("RecordError: %v", err)
	}

	if got := s.Outcome("scan1.nii.gz"); got != Failed {
		t.Fatalf("outcome = %v, want failed", got)
	}
	if msg := s.ErrorMessage("scan1.nii.gz"); msg != "corrupt header" {
		t.Fatalf("message = %q, want %q", msg, "corrupt header")
	}
	if _, err := os.Stat(filepath.Join(dir, ".scan1.nii.gz.error")); err != nil {
		t.Fatalf("marker file missing: %v", err)
	}
}

func TestSuccessReplacesError(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.RecordError("scan.nii", "transient failure"); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordSuccess("scan.nii"); err != nil {
		t.Fatal(err)
	}

	if got := s.Outcome("scan.nii"); got != Processed {
		t.Fatalf("outcome = %v, want processed", got)
	}
	if exists(s.ErrorPath("scan.nii")) {
		t.Fatal("error marker should be removed after success")
	}
}

func TestErrorReplacesSuccess(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.RecordSuccess("scan.nii"); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordError("scan.nii", "later failure"); err != nil {
		t.Fatal(err)
	}

	if got := s.Outcome("scan.nii"); got != Failed {
		t.Fatalf("outcome = %v, want failed", got)
	}
	if exists(s.SuccessPath("scan.nii")) {
		t.Fatal("success marker should be removed after failure")
	}
}

func TestClear(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.RecordError("scan.nii", "bad"); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear("scan.nii"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if s.HasOutcome("scan.nii") {
		t.Fatal("outcome should be gone after Clear")
	}
}

func TestMarkersAreHiddenFromScans(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if err := s.RecordSuccess("scan1.nii"); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if entry.Name()[0] != '.' {
			t.Fatalf("marker %q is not hidden", entry.Name())
		}
	}
}

func TestStoreCreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output", "nested")
	s := NewStore(dir)
	if err := s.RecordSuccess("scan.nii"); err != nil {
		t.Fatalf("RecordSuccess should create the directory: %v", err)
	}
}
