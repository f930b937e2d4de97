package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/opmodel/strata/internal/output"
)

// ConfigSource indicates where a configuration value came from.
type ConfigSource string

const (
	// SourceFlag indicates value came from command-line flag.
	SourceFlag ConfigSource = "flag"
	// SourceEnv indicates value came from environment variable.
	SourceEnv ConfigSource = "env"
	// SourceConfig indicates value came from config file.
	SourceConfig ConfigSource = "config"
	// SourceDefault indicates value is the built-in default.
	SourceDefault ConfigSource = "default"
)

// ResolvedValue is one configuration value with its source.
type ResolvedValue struct {
	Key    string
	Value  string
	Source ConfigSource

	// Shadowed contains values that were overridden by higher precedence.
	Shadowed map[ConfigSource]string
}

// ResolveOptions holds flag values; empty or zero means not set.
type ResolveOptions struct {
	ConfigFlag   string
	CacheDirFlag string
	WorkersFlag  int
	HashFlag     string
}

// Resolved is the effective configuration of a command.
type Resolved struct {
	ConfigPath string
	Config     *Config

	// Values lists every resolved key in resolution order.
	Values []ResolvedValue
}

// Resolve loads the config file and applies precedence for every key:
// (1) flag, (2) STRATA_* env, (3) config file, (4) default.
func Resolve(opts ResolveOptions) (*Resolved, error) {
	paths, err := DefaultPaths()
	if err != nil {
		return nil, err
	}

	pathValue := resolveString("config", opts.ConfigFlag, EnvConfig, "", paths.ConfigFile)
	fileCfg, err := NewLoader().Load(pathValue.Value)
	if err != nil {
		return nil, err
	}
	def := DefaultConfig()

	cacheDir := resolveString("cacheDir", opts.CacheDirFlag, EnvCacheDir, fileCfg.CacheDir, paths.CacheDir)
	hash := resolveString("hash", opts.HashFlag, EnvHash, fileCfg.Hash, def.Hash)

	workersFlag := ""
	if opts.WorkersFlag > 0 {
		workersFlag = strconv.Itoa(opts.WorkersFlag)
	}
	workersFile := ""
	if fileCfg.Workers > 0 {
		workersFile = strconv.Itoa(fileCfg.Workers)
	}
	workers := resolveString("workers", workersFlag, EnvWorkers, workersFile, strconv.Itoa(def.Workers))
	n, err := strconv.Atoi(workers.Value)
	if err != nil {
		return nil, &ValidationError{Field: "workers", Message: fmt.Sprintf("%q from %s is not a number", workers.Value, workers.Source)}
	}

	expanded, err := ExpandPath(cacheDir.Value)
	if err != nil {
		return nil, fmt.Errorf("expanding cache directory: %w", err)
	}

	cfg := &Config{
		CacheDir: expanded,
		Workers:  n,
		Hash:     hash.Value,
		Schemas:  fileCfg.Schemas,
		Log:      fileCfg.Log,
	}
	return &Resolved{
		ConfigPath: pathValue.Value,
		Config:     cfg,
		Values:     []ResolvedValue{pathValue, cacheDir, workers, hash},
	}, nil
}

// resolveString applies flag > env > config > default to one key.
func resolveString(key, flagValue, envVar, configValue, defaultValue string) ResolvedValue {
	result := ResolvedValue{Key: key, Shadowed: make(map[ConfigSource]string)}
	envValue := ""
	if envVar != "" {
		envValue = os.Getenv(envVar)
	}

	candidates := []struct {
		source ConfigSource
		value  string
	}{
		{SourceFlag, flagValue},
		{SourceEnv, envValue},
		{SourceConfig, configValue},
		{SourceDefault, defaultValue},
	}
	for _, c := range candidates {
		if c.value == "" {
			continue
		}
		if result.Source == "" {
			result.Value = c.value
			result.Source = c.source
			continue
		}
		result.Shadowed[c.source] = c.value
	}
	return result
}

// LogResolvedValues logs configuration resolution at DEBUG level.
func LogResolvedValues(values []ResolvedValue) {
	for _, v := range values {
		output.Debug("config value resolved",
			"key", v.Key,
			"value", v.Value,
			"source", v.Source,
		)
		for source, shadowed := range v.Shadowed {
			output.Debug("  shadowed by higher precedence",
				"key", v.Key,
				"shadowed_source", source,
				"shadowed_value", shadowed,
			)
		}
	}
}
