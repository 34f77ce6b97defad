package testsupport

import (
	"path/filepath"
	"testing"

	"scenematch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Provider.APIKey = "test"
	cfgVal.Paths.WatchDir = filepath.Join(base, "watch")
	cfgVal.Paths.LibraryDir = filepath.Join(base, "library")
	cfgVal.Paths.AmbiguousDir = filepath.Join(base, "ambiguous")
	cfgVal.Paths.FailedDir = filepath.Join(base, "failed")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.DBPath = filepath.Join(base, "logs", "scenematch.db")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAPIKey sets the provider API key on the test config.
func WithAPIKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Provider.APIKey = key
	}
}

// WithProvider overrides the provider name and endpoint on the test config.
func WithProvider(name, endpoint string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Provider.Name = name
		b.cfg.Provider.Endpoint = endpoint
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WatchDir)
}
