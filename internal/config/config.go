// Package config provides configuration loading and management.
package config

import (
	"runtime"

	"github.com/opmodel/strata/pkg/hashenc"
)

// LogConfig contains logging-related settings.
type LogConfig struct {
	// Timestamps controls whether timestamps are shown in log output.
	// Default: true. Override with --timestamps flag.
	Timestamps *bool `json:"timestamps,omitempty" yaml:"timestamps,omitempty" mapstructure:"timestamps"`
}

// Config represents the strata CLI configuration.
// Loaded from ~/.strata/config.yaml, validated against the embedded CUE schema.
type Config struct {
	// CacheDir is the build cache directory.
	// Env: STRATA_CACHE_DIR, Default: ~/.strata/cache
	CacheDir string `json:"cacheDir,omitempty" yaml:"cacheDir,omitempty" mapstructure:"cacheDir"`

	// Workers is the number of recipes built in parallel.
	// Env: STRATA_WORKERS, Default: number of CPUs
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty" mapstructure:"workers"`

	// Hash is the content hash algorithm, "sha256" or "blake3".
	// Env: STRATA_HASH, Default: sha256
	Hash string `json:"hash,omitempty" yaml:"hash,omitempty" mapstructure:"hash"`

	// Schemas are option schema files loaded for every command.
	Schemas []string `json:"schemas,omitempty" yaml:"schemas,omitempty" mapstructure:"schemas"`

	// Log contains logging-related settings.
	Log LogConfig `json:"log,omitempty" yaml:"log,omitempty" mapstructure:"log"`
}

// DefaultConfig returns a Config with all default values populated.
// Used by `strata config init` to generate the initial config file.
func DefaultConfig() *Config {
	return &Config{
		CacheDir: "~/.strata/cache",
		Workers:  runtime.NumCPU(),
		Hash:     string(hashenc.SHA256),
	}
}
