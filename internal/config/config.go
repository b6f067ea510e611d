// Package config holds the tunables of the reserved-port library and loads
// them from disk.
//
// There are only three: the scanned port range, the number of attempts the
// OS query makes before giving up, and the scanner's wraparound threshold.
// Files may be YAML (.yaml, .yml) or JSON with comments (.json, .jsonc);
// JSONC is stripped with github.com/tidwall/jsonc before decoding with
// encoding/json. Fields omitted from a file keep their default values.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/reserved-port/internal/model"
)

// Config is the full set of tunables.
type Config struct {
	// Range is the half-open range [Min, Max) the scanner walks.
	Range model.Range `json:"range" yaml:"range"`

	// OSQueryAttempts bounds how many ephemeral TCP ports the OS query
	// requests before reporting exhaustion.
	OSQueryAttempts int `json:"osQueryAttempts" yaml:"osQueryAttempts"`

	// WrapThreshold is the minimum number of ports the scanner must have
	// found since its last wraparound before it may wrap again.
	WrapThreshold int `json:"wrapThreshold" yaml:"wrapThreshold"`
}

// Default returns the built-in configuration: range [8000, 9999), 100 OS
// query attempts, wraparound threshold 500.
func Default() Config {
	return Config{
		Range:           model.DefaultRange(),
		OSQueryAttempts: model.DefaultOSQueryAttempts,
		WrapThreshold:   model.DefaultWrapThreshold,
	}
}

// Validate checks the configuration for values the finders cannot work with.
func (c Config) Validate() error {
	if err := c.Range.Validate(); err != nil {
		return err
	}
	if c.Range.Min == 0 {
		return fmt.Errorf("port range: min must be at least 1 (0 asks the OS for an ephemeral port)")
	}
	if c.OSQueryAttempts < 1 {
		return fmt.Errorf("osQueryAttempts must be at least 1, got %d", c.OSQueryAttempts)
	}
	if c.WrapThreshold < 0 {
		return fmt.Errorf("wrapThreshold must not be negative, got %d", c.WrapThreshold)
	}
	return nil
}

// Load reads a configuration file, overlays it on Default, and validates the
// result. The decoder is chosen by file extension.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data as YAML or JSONC according to ext (".yaml", ".yml",
// ".json", ".jsonc"), overlays it on Default, and validates the result.
func Parse(data []byte, ext string) (Config, error) {
	cfg := Default()

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	case ".json", ".jsonc":
		// Strip JSONC comments (// and /* */) and trailing commas before parsing.
		if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
			return Config{}, err
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format %q (valid: .yaml, .yml, .json, .jsonc)", ext)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
