package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	AtlasDir string `toml:"atlas_dir"`
	LogDir   string `toml:"log_dir"`
}

// Processing contains the numeric pipeline parameters.
type Processing struct {
	NormalizeMethod  string  `toml:"normalize_method"`
	GaussianSigma    float64 `toml:"gaussian_sigma"`
	RegistrationType string  `toml:"registration_type"`
}

// Readiness controls the file write-completion detector.
type Readiness struct {
	PollIntervalMS int `toml:"poll_interval_ms"`
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Batch contains one-shot scan settings.
type Batch struct {
	Workers int `toml:"workers"`
}

// Journal contains configuration for the SQLite run journal.
type Journal struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values for neuroproc.
//
// Sections by subsystem:
//   - Paths: atlas directory and optional log directory
//   - Processing: normalization, smoothing, and registration parameters
//   - Readiness: write-completion detection polling
//   - Batch: worker pool sizing for one-shot scans
//   - Journal: SQLite run history
//   - Logging: log level and format
type Config struct {
	Paths      Paths      `toml:"paths"`
	Processing Processing `toml:"processing"`
	Readiness  Readiness  `toml:"readiness"`
	Batch      Batch      `toml:"batch"`
	Journal    Journal    `toml:"journal"`
	Logging    Logging    `toml:"logging"`
}

// Default returns a configuration populated with built-in defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			AtlasDir: "/data/atlas",
		},
		Processing: Processing{
			NormalizeMethod:  "zscore",
			GaussianSigma:    1.0,
			RegistrationType: "rigid",
		},
		Readiness: Readiness{
			PollIntervalMS: 500,
			TimeoutSeconds: 30,
		},
		Batch: Batch{
			Workers: 0,
		},
		Journal: Journal{
			Enabled: true,
		},
		Logging: Logging{
			Level:  "info",
			Format: "auto",
		},
	}
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/neuroproc/config.toml")
}

// Load locates, parses, and validates a configuration file. A missing file
// yields defaults. The returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("neuroproc.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.AtlasDir, err = expandPath(c.Paths.AtlasDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Journal.Path, err = expandPath(c.Journal.Path); err != nil {
		return err
	}
	c.Processing.NormalizeMethod = strings.ToLower(strings.TrimSpace(c.Processing.NormalizeMethod))
	c.Processing.RegistrationType = strings.ToLower(strings.TrimSpace(c.Processing.RegistrationType))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	return nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Processing.NormalizeMethod {
	case "zscore", "minmax":
	default:
		return fmt.Errorf("normalize_method: unsupported value %q (want zscore or minmax)", c.Processing.NormalizeMethod)
	}
	switch c.Processing.RegistrationType {
	case "rigid", "affine":
	default:
		return fmt.Errorf("registration_type: unsupported value %q (want rigid or affine)", c.Processing.RegistrationType)
	}
	if c.Processing.GaussianSigma < 0 {
		return fmt.Errorf("gaussian_sigma: must be >= 0, got %g", c.Processing.GaussianSigma)
	}
	if c.Readiness.PollIntervalMS <= 0 {
		return fmt.Errorf("readiness poll_interval_ms: must be positive, got %d", c.Readiness.PollIntervalMS)
	}
	if c.Readiness.TimeoutSeconds <= 0 {
		return fmt.Errorf("readiness timeout_seconds: must be positive, got %d", c.Readiness.TimeoutSeconds)
	}
	if c.Batch.Workers < 0 {
		return fmt.Errorf("batch workers: must be >= 0, got %d", c.Batch.Workers)
	}
	return nil
}

// ReadinessPollInterval returns the detector poll interval.
func (c *Config) ReadinessPollInterval() time.Duration {
	return time.Duration(c.Readiness.PollIntervalMS) * time.Millisecond
}

// ReadinessTimeout returns the detector timeout ceiling.
func (c *Config) ReadinessTimeout() time.Duration {
	return time.Duration(c.Readiness.TimeoutSeconds) * time.Second
}

// WorkerCount resolves the batch worker pool size. Zero means auto: one
// worker per CPU, capped at four since the pipeline stages are memory-heavy.
func (c *Config) WorkerCount() int {
	if c.Batch.Workers > 0 {
		return c.Batch.Workers
	}
	n := runtime.NumCPU()
	if n > 4 {
		n = 4
	}
	if n < 1 {
		n = 1
	}
	return n
}

// JournalPath resolves the run journal location for the given output
// directory. The journal lives beside the markers unless overridden.
func (c *Config) JournalPath(outputDir string) string {
	if strings.TrimSpace(c.Journal.Path) != "" {
		return c.Journal.Path
	}
	return filepath.Join(outputDir, ".neuroproc-journal.db")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
