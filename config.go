package reservedport

import (
	"github.com/mmr-tortoise/reserved-port/internal/config"
	"github.com/mmr-tortoise/reserved-port/internal/model"
)

// Config is the set of tunables a Registry is built from.
type Config = config.Config

// Range is a half-open port range [Min, Max).
type Range = model.Range

// DefaultConfig returns the built-in configuration: range [8000, 9999),
// 100 OS query attempts and a wraparound threshold of 500.
func DefaultConfig() Config {
	return config.Default()
}

// LoadConfig reads a YAML (.yaml, .yml) or JSONC (.json, .jsonc) file.
// Fields the file omits keep their defaults.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}
