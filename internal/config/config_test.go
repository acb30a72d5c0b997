package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("exists should be false for a missing file")
	}
	if cfg.Processing.NormalizeMethod != "zscore" {
		t.Fatalf("default normalize_method = %q", cfg.Processing.NormalizeMethod)
	}
	if cfg.Processing.RegistrationType != "rigid" {
		t.Fatalf("default registration_type = %q", cfg.Processing.RegistrationType)
	}
	if cfg.ReadinessPollInterval() != 500*time.Millisecond {
		t.Fatalf("default poll interval = %v", cfg.ReadinessPollInterval())
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[paths]
atlas_dir = "/srv/atlas"

[processing]
normalize_method = "MinMax"
gaussian_sigma = 2.5
registration_type = "AFFINE"

[readiness]
poll_interval_ms = 100
timeout_seconds = 5
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved = %q exists = %v", resolved, exists)
	}
	if cfg.Processing.NormalizeMethod != "minmax" {
		t.Fatalf("normalize_method not lowercased: %q", cfg.Processing.NormalizeMethod)
	}
	if cfg.Processing.RegistrationType != "affine" {
		t.Fatalf("registration_type not lowercased: %q", cfg.Processing.RegistrationType)
	}
	if cfg.Processing.GaussianSigma != 2.5 {
		t.Fatalf("gaussian_sigma = %g", cfg.Processing.GaussianSigma)
	}
	if cfg.ReadinessTimeout() != 5*time.Second {
		t.Fatalf("timeout = %v", cfg.ReadinessTimeout())
	}
}

func TestValidateRejectsBadEnums(t *testing.T) {
	cfg := Default()
	cfg.Processing.NormalizeMethod = "median"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "normalize_method") {
		t.Fatalf("expected normalize_method error, got %v", err)
	}

	cfg = Default()
	cfg.Processing.RegistrationType = "elastic"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "registration_type") {
		t.Fatalf("expected registration_type error, got %v", err)
	}

	cfg = Default()
	cfg.Readiness.PollIntervalMS = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected poll interval error")
	}
}

func TestWorkerCountAuto(t *testing.T) {
	cfg := Default()
	if n := cfg.WorkerCount(); n < 1 || n > 4 {
		t.Fatalf("auto worker count out of range: %d", n)
	}
	cfg.Batch.Workers = 7
	if n := cfg.WorkerCount(); n != 7 {
		t.Fatalf("explicit worker count = %d", n)
	}
}

func TestJournalPathDefaultsNextToMarkers(t *testing.T) {
	cfg := Default()
	got := cfg.JournalPath("/data/out")
	if got != filepath.Join("/data/out", ".neuroproc-journal.db") {
		t.Fatalf("journal path = %q", got)
	}
	cfg.Journal.Path = "/var/lib/neuroproc/journal.db"
	if cfg.JournalPath("/data/out") != "/var/lib/neuroproc/journal.db" {
		t.Fatal("override ignored")
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := Load(path); err != nil || !exists {
		t.Fatalf("sample config did not load: exists=%v err=%v", exists, err)
	}
}
