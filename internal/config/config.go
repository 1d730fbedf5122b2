package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/classifier/internal/species"
)

// DefaultFile is read from the working directory when no path is given
const DefaultFile = "classifier.yaml"

// Environment variables that override the config file
const (
	EnvSpeciesFile = "CLASSIFIER_SPECIES_FILE"
	EnvViewer      = "CLASSIFIER_VIEWER"
	EnvCompletion  = "CLASSIFIER_COMPLETION"
	EnvLogLevel    = "CLASSIFIER_LOG_LEVEL"
	EnvLogFormat   = "CLASSIFIER_LOG_FORMAT"
)

// Config holds settings shared by the classifier commands
type Config struct {
	// SpeciesFile seeds species completions when no species file argument is given
	SpeciesFile string `yaml:"species_file"`
	// Viewer is a command that reads image paths from stdin, one per line
	Viewer string `yaml:"viewer"`
	// Completion is "prefix" or "substring"
	Completion string `yaml:"completion"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`
}

// Default returns the configuration used when no file is present
func Default() Config {
	return Config{
		Completion: "prefix",
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// Load reads the config at path, or DefaultFile when path is empty, then applies
// environment overrides. A missing DefaultFile is not an error; a missing explicit
// path is. The second return value reports whether a file was read.
func Load(path string) (*Config, bool, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	exists := false
	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		if err := decode(file, &cfg); err != nil {
			return nil, false, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		exists = true
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, false, fmt.Errorf("failed to open config: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, exists, err
	}

	return &cfg, exists, nil
}

func decode(r io.Reader, cfg *Config) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) normalize() {
	if value, ok := os.LookupEnv(EnvSpeciesFile); ok {
		c.SpeciesFile = value
	}
	if value, ok := os.LookupEnv(EnvViewer); ok {
		c.Viewer = value
	}
	if value, ok := os.LookupEnv(EnvCompletion); ok {
		c.Completion = value
	}
	if value, ok := os.LookupEnv(EnvLogLevel); ok {
		c.LogLevel = value
	}
	if value, ok := os.LookupEnv(EnvLogFormat); ok {
		c.LogFormat = value
	}

	c.SpeciesFile = strings.TrimSpace(c.SpeciesFile)
	c.Viewer = strings.TrimSpace(c.Viewer)
	c.Completion = strings.ToLower(strings.TrimSpace(c.Completion))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

// Validate ensures the configuration is usable
func (c *Config) Validate() error {
	if _, err := species.ParseMatchMode(c.Completion); err != nil {
		return fmt.Errorf("completion: %w", err)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level: unsupported value %q (supported: debug, info, warn, error)", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format: unsupported value %q (supported: text, json)", c.LogFormat)
	}
	return nil
}

// MatchMode returns the completion mode. Validate has already accepted it.
func (c *Config) MatchMode() species.MatchMode {
	mode, _ := species.ParseMatchMode(c.Completion)
	return mode
}

// ViewerCommand splits Viewer into a program and its arguments
func (c *Config) ViewerCommand() []string {
	return strings.Fields(c.Viewer)
}
