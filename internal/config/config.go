package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WatchDir     string `toml:"watch_dir"`
	LibraryDir   string `toml:"library_dir"`
	AmbiguousDir string `toml:"ambiguous_dir"`
	FailedDir    string `toml:"failed_dir"`
	LogDir       string `toml:"log_dir"`
	DBPath       string `toml:"db_path"`
}

// Provider contains configuration for the metadata provider used to fetch
// candidate scenes. Exactly one provider serves a processing run; candidates
// from different providers are never mixed in one decision pass.
type Provider struct {
	Name              string  `toml:"name"` // "stashdb" or "theporndb"
	Endpoint          string  `toml:"endpoint"`
	APIKey            string  `toml:"api_key"`
	RequestTimeout    int     `toml:"request_timeout"` // seconds
	MinNameSimilarity float64 `toml:"min_name_similarity"`
	SearchPhash       bool    `toml:"search_phash"`
}

// Phash contains the disambiguation thresholds. Defaults mirror the values
// the decision engine was tuned with.
type Phash struct {
	Algorithm              string  `toml:"algorithm"`
	AcceptDistance         int     `toml:"accept_distance"`
	AmbiguousMin           int     `toml:"ambiguous_min"`
	AmbiguousMax           int     `toml:"ambiguous_max"`
	DistanceMarginAccept   int     `toml:"distance_margin_accept"`
	MajorityAcceptFraction float64 `toml:"majority_accept_fraction"`
}

// ParserRule is one named filename extraction pattern.
type ParserRule struct {
	Name    string `toml:"name"`
	Pattern string `toml:"pattern"`
}

// Parser contains the ordered filename rule set. An empty list falls back to
// the built-in rules.
type Parser struct {
	Rules []ParserRule `toml:"rules"`
}

// Workflow contains watch-mode timing and output shaping.
type Workflow struct {
	PollInterval   int `toml:"poll_interval"` // seconds
	TopNCandidates int `toml:"top_n_candidates"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for scenematch.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Provider Provider `toml:"provider"`
	Phash    Phash    `toml:"phash"`
	Parser   Parser   `toml:"parser"`
	Workflow Workflow `toml:"workflow"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scenematch/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
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

	projectPath, err := filepath.Abs("scenematch.toml")
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

// EnsureDirectories creates the working directories the pipeline writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WatchDir, c.Paths.AmbiguousDir, c.Paths.FailedDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LibraryDir) != "" {
		// Best-effort to avoid failing config load when storage is offline.
		_ = os.MkdirAll(c.Paths.LibraryDir, 0o755)
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
