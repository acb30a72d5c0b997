package testsupport

import (
	"path/filepath"
	"testing"

	"neuroproc/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.AtlasDir = filepath.Join(base, "atlas")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Readiness.PollIntervalMS = 5
	cfg.Readiness.TimeoutSeconds = 1
	cfg.Batch.Workers = 2
	cfg.Journal.Enabled = false

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithWorkers sets the batch worker count on the test config.
func WithWorkers(n int) ConfigOption {
	return func(c *config.Config) {
		c.Batch.Workers = n
	}
}

// WithJournal enables the run journal at the given path.
func WithJournal(path string) ConfigOption {
	return func(c *config.Config) {
		c.Journal.Enabled = true
		c.Journal.Path = path
	}
}
