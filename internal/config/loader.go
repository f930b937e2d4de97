package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/viper"
)

// Environment variables read by strata.
const (
	EnvConfig   = "STRATA_CONFIG"
	EnvCacheDir = "STRATA_CACHE_DIR"
	EnvWorkers  = "STRATA_WORKERS"
	EnvHash     = "STRATA_HASH"
)

// Loader reads the config file only. Environment variables and flags are
// layered on by Resolve, which records where each value came from.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a Loader.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// Load reads the YAML config at configFile. A missing file is an empty
// Config, not an error.
func (l *Loader) Load(configFile string) (*Config, error) {
	path, err := ExpandPath(configFile)
	if err != nil {
		return nil, fmt.Errorf("expanding config path: %w", err)
	}

	l.v.SetConfigFile(path)
	l.v.SetConfigType("yaml")
	if err := l.v.ReadInConfig(); err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config file %s: %w", path, err)
	}
	return cfg, nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// ConfigFileExists reports whether a config file is present.
func ConfigFileExists(configFile string) (bool, error) {
	path, err := ExpandPath(configFile)
	if err != nil {
		return false, err
	}
	switch _, err := os.Stat(path); {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
