// Package cmdtypes provides shared types for the cmd package and its sub-packages.
// It is separate from internal/cmd to avoid import cycles between internal/cmd
// and its sub-packages (internal/cmd/cache, internal/cmd/config).
package cmdtypes

import (
	"github.com/opmodel/strata/internal/config"
	oerrors "github.com/opmodel/strata/internal/errors"
)

// GlobalConfig holds CLI-wide configuration resolved during PersistentPreRunE.
// It is populated once at startup and passed explicitly into every sub-command
// constructor.
type GlobalConfig struct {
	// Resolved is the effective configuration; nil until PersistentPreRunE ran.
	Resolved *config.Resolved

	// ResolveErr is the error resolving configuration failed with. Commands
	// that need configuration report it; config init and vet do not.
	ResolveErr error

	// ConfigFlag is the raw --config flag value.
	ConfigFlag string

	// MetricsFile receives Prometheus metrics in text format after a command.
	MetricsFile string

	Verbose bool
}

// Config returns the effective configuration, or the defaults when nothing
// was resolved.
func (g *GlobalConfig) Config() *config.Config {
	if g == nil || g.Resolved == nil {
		return config.DefaultConfig()
	}
	return g.Resolved.Config
}

// Exit codes, aliased from internal/errors.
const (
	ExitSuccess         = oerrors.ExitSuccess
	ExitGeneralError    = oerrors.ExitGeneralError
	ExitSchemaError     = oerrors.ExitSchemaError
	ExitGraphError      = oerrors.ExitGraphError
	ExitIntegrityError  = oerrors.ExitIntegrityError
	ExitNotFound        = oerrors.ExitNotFound
	ExitBuildError      = oerrors.ExitBuildError
	ExitCacheCorruption = oerrors.ExitCacheCorruption
)

// ExitError is a type alias to internal/errors.ExitError.
type ExitError = oerrors.ExitError
