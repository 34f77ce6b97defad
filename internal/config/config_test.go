package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scenematch/internal/config"
)

func TestLoadDefaultConfigUsesEnvAPIKeyAndExpandsPaths(t *testing.T) {
	t.Setenv("SCENEMATCH_API_KEY", "test-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWatch := filepath.Join(tempHome, ".local", "share", "scenematch", "watch")
	if cfg.Paths.WatchDir != wantWatch {
		t.Fatalf("unexpected watch dir: got %q want %q", cfg.Paths.WatchDir, wantWatch)
	}
	if cfg.Paths.LibraryDir != filepath.Join(tempHome, "library") {
		t.Fatalf("unexpected library dir: %q", cfg.Paths.LibraryDir)
	}
	if cfg.Paths.DBPath != filepath.Join(cfg.Paths.LogDir, "scenematch.db") {
		t.Fatalf("unexpected db path: %q", cfg.Paths.DBPath)
	}
	if cfg.Provider.Name != "stashdb" {
		t.Fatalf("unexpected provider: %q", cfg.Provider.Name)
	}
	if cfg.Provider.APIKey != "test-key" {
		t.Fatalf("expected API key from env, got %q", cfg.Provider.APIKey)
	}
	if cfg.Provider.Endpoint != config.Default().Provider.Endpoint {
		t.Fatalf("unexpected endpoint: %q", cfg.Provider.Endpoint)
	}
	if cfg.Phash.AcceptDistance != 6 || cfg.Phash.AmbiguousMin != 7 || cfg.Phash.AmbiguousMax != 12 {
		t.Fatalf("unexpected default thresholds: %+v", cfg.Phash)
	}
	if cfg.Workflow.PollInterval != 30 {
		t.Fatalf("unexpected poll interval: %d", cfg.Workflow.PollInterval)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadReadsFileAndNormalizes(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("SCENEMATCH_API_KEY", "")

	path := filepath.Join(t.TempDir(), "config.toml")
	content := strings.Join([]string{
		"[paths]",
		`watch_dir = "~/incoming"`,
		"[provider]",
		`name = "ThePornDB"`,
		`api_key = "abc123"`,
		"[logging]",
		`format = "JSON"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected existing config, got exists=%v resolved=%q", exists, resolved)
	}
	if cfg.Paths.WatchDir != filepath.Join(tempHome, "incoming") {
		t.Fatalf("watch dir not expanded: %q", cfg.Paths.WatchDir)
	}
	if cfg.Provider.Name != "theporndb" {
		t.Fatalf("provider name not lowered: %q", cfg.Provider.Name)
	}
	if cfg.Provider.Endpoint != "https://api.theporndb.net" {
		t.Fatalf("endpoint not derived from provider: %q", cfg.Provider.Endpoint)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("log format not lowered: %q", cfg.Logging.Format)
	}
}

func TestLoadRejectsMissingAPIKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SCENEMATCH_API_KEY", "")

	_, _, _, err := config.Load("")
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if !strings.Contains(err.Error(), "api_key") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsInvalidThresholds(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SCENEMATCH_API_KEY", "key")

	cases := []struct {
		name    string
		section string
	}{
		{"accept not below ambiguous min", "accept_distance = 8\nambiguous_min = 7"},
		{"inverted ambiguous band", "ambiguous_min = 12\nambiguous_max = 7"},
		{"negative margin", "distance_margin_accept = -1"},
		{"fraction above one", "majority_accept_fraction = 1.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			content := "[phash]\n" + tc.section + "\n"
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, _, _, err := config.Load(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SCENEMATCH_API_KEY", "key")

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[provider]\nname = \"imdb\"\napi_key = \"k\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestLoadRejectsBadParserRule(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SCENEMATCH_API_KEY", "key")

	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[[parser.rules]]\nname = \"broken\"\npattern = \"(unclosed\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for invalid rule pattern")
	}
}

func TestCreateSampleWritesParseableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[provider]") {
		t.Fatal("sample missing provider section")
	}
}

func TestThresholdsMirrorConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Phash.AcceptDistance = 4
	cfg.Provider.MinNameSimilarity = 0.9

	th := cfg.Thresholds()
	if th.AcceptDistance != 4 {
		t.Fatalf("unexpected accept distance: %d", th.AcceptDistance)
	}
	if th.MinNameSimilarity != 0.9 {
		t.Fatalf("unexpected name floor: %v", th.MinNameSimilarity)
	}
	if err := th.Validate(); err != nil {
		t.Fatalf("thresholds should validate: %v", err)
	}
}
