package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Paths are the per-user strata locations.
type Paths struct {
	// HomeDir is ~/.strata.
	HomeDir string

	// ConfigFile is ~/.strata/config.yaml.
	ConfigFile string

	// CacheDir is ~/.strata/cache.
	CacheDir string
}

// DefaultPaths returns the per-user paths under the home directory.
func DefaultPaths() (*Paths, error) {
	userHome, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	home := filepath.Join(userHome, ".strata")
	return &Paths{
		HomeDir:    home,
		ConfigFile: filepath.Join(home, "config.yaml"),
		CacheDir:   filepath.Join(home, "cache"),
	}, nil
}

// ExpandPath replaces a leading "~" or "~/" with the home directory.
// Other paths, "~user" forms included, are returned unchanged.
func ExpandPath(path string) (string, error) {
	rest, ok := strings.CutPrefix(path, "~")
	if !ok || (rest != "" && rest[0] != '/' && rest[0] != filepath.Separator) {
		return path, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userHome, rest), nil
}
