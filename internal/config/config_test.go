package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/lehigh-university-libraries/classifier/internal/species"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvSpeciesFile, EnvViewer, EnvCompletion, EnvLogLevel, EnvLogFormat} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "classifier.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
species_file: ./species.txt
viewer: "feh --auto-reload -"
completion: Substring
log_level: DEBUG
log_format: json
`)

	cfg, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Error("Expected config file to be reported as read")
	}
	if cfg.SpeciesFile != "./species.txt" {
		t.Errorf("Expected species file ./species.txt, got %q", cfg.SpeciesFile)
	}
	if cfg.MatchMode() != species.MatchSubstring {
		t.Errorf("Expected substring completion, got %s", cfg.MatchMode())
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("Expected debug/json logging, got %s/%s", cfg.LogLevel, cfg.LogFormat)
	}
	if want := []string{"feh", "--auto-reload", "-"}; !reflect.DeepEqual(cfg.ViewerCommand(), want) {
		t.Errorf("Expected viewer %v, got %v", want, cfg.ViewerCommand())
	}
}

func TestLoadDefaultMissing(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, exists, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Error("Expected no config file to be read")
	}
	if !reflect.DeepEqual(*cfg, Default()) {
		t.Errorf("Expected defaults, got %+v", *cfg)
	}
}

func TestLoadExplicitMissing(t *testing.T) {
	clearEnv(t)
	if _, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing explicit config, got nil")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "species_file: from-file.txt\nlog_level: info\n")
	t.Setenv(EnvSpeciesFile, "from-env.txt")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvViewer, "cat")

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SpeciesFile != "from-env.txt" {
		t.Errorf("Expected env species file, got %q", cfg.SpeciesFile)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Expected env log level, got %q", cfg.LogLevel)
	}
	if cfg.Viewer != "cat" {
		t.Errorf("Expected env viewer, got %q", cfg.Viewer)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "specie_file: x\n"},
		{"bad completion", "completion: fuzzy\n"},
		{"bad level", "log_level: loud\n"},
		{"bad format", "log_format: xml\n"},
		{"bad yaml", "completion: [prefix\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if _, _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Errorf("Expected error for %q, got nil", tt.content)
			}
		})
	}
}

func TestLoadEmptyFile(t *testing.T) {
	clearEnv(t)
	cfg, _, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Completion != "prefix" {
		t.Errorf("Expected default completion, got %q", cfg.Completion)
	}
}
