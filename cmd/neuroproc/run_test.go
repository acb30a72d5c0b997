package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"neuroproc/internal/testsupport"
)

func writeTestConfig(t *testing.T, atlasDir string) string {
	t.Helper()
	content := strings.Join([]string{
		"[paths]",
		"atlas_dir = " + tomlString(atlasDir),
		"[readiness]",
		"poll_interval_ms = 5",
		"timeout_seconds = 1",
		"[batch]",
		"workers = 2",
	}, "\n")
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func tomlString(s string) string {
	return `"` + strings.ReplaceAll(s, `\`, `\\`) + `"`
}

func TestBatchEndToEnd(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()
	atlasDir := testsupport.WriteAtlas(t, filepath.Join(t.TempDir(), "atlas"), 4, 4, 4)
	testsupport.WriteVolume(t, filepath.Join(inDir, "scan1.nii.gz"), 4, 4, 4)
	cfgPath := writeTestConfig(t, atlasDir)

	args := []string{
		"--config", cfgPath,
		"--input", inDir,
		"--output", outDir,
		"--no-progress",
	}
	if _, err := execute(t, args...); err != nil {
		t.Fatalf("batch run: %v", err)
	}

	if _, err := os.Stat(filepath.Join(outDir, "scan1.nii.gz_skull_stripped.nii.gz")); err != nil {
		t.Errorf("output volume missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "scan1.nii.gz_quality_report.txt")); err != nil {
		t.Errorf("quality report missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, ".scan1.nii.gz.processed")); err != nil {
		t.Errorf("success marker missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, ".neuroproc-journal.db")); err != nil {
		t.Errorf("journal missing: %v", err)
	}

	// A second pass must skip the file, not reprocess it.
	before, err := os.Stat(filepath.Join(outDir, "scan1.nii.gz_skull_stripped.nii.gz"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, args...); err != nil {
		t.Fatalf("second batch run: %v", err)
	}
	after, err := os.Stat(filepath.Join(outDir, "scan1.nii.gz_skull_stripped.nii.gz"))
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("second run rewrote the output volume")
	}
}

func TestBatchFailuresDoNotFailTheRun(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()
	atlasDir := testsupport.WriteAtlas(t, filepath.Join(t.TempDir(), "atlas"), 4, 4, 4)
	testsupport.WriteVolume(t, filepath.Join(inDir, "good.nii.gz"), 4, 4, 4)
	cfgPath := writeTestConfig(t, atlasDir)

	// Not a NIfTI file; the load stage fails for this one file only.
	if err := os.WriteFile(filepath.Join(inDir, "broken.nii"), []byte("not a volume"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t,
		"--config", cfgPath,
		"--input", inDir,
		"--output", outDir,
		"--no-progress",
	)
	if err != nil {
		t.Fatalf("per-file failures must not fail the batch run: %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(outDir, ".broken.nii.error")); statErr != nil {
		t.Errorf("error marker missing: %v", statErr)
	}
	if _, statErr := os.Stat(filepath.Join(outDir, "good.nii.gz_skull_stripped.nii.gz")); statErr != nil {
		t.Errorf("healthy file not processed: %v", statErr)
	}
}
