package cmdutil

import (
	"fmt"

	"github.com/opmodel/strata/internal/cmdtypes"
	"github.com/opmodel/strata/internal/pipeline"
	"github.com/opmodel/strata/pkg/hashenc"
)

// NewPipeline creates a pipeline from the resolved configuration.
func NewPipeline(cfg *cmdtypes.GlobalConfig) (*pipeline.Pipeline, error) {
	if cfg.ResolveErr != nil {
		return nil, &cmdtypes.ExitError{
			Code: cmdtypes.ExitGeneralError,
			Err:  fmt.Errorf("resolving configuration: %w", cfg.ResolveErr),
		}
	}
	c := cfg.Config()
	alg, err := hashenc.ParseAlgorithm(c.Hash)
	if err != nil {
		return nil, &cmdtypes.ExitError{
			Code: cmdtypes.ExitGeneralError,
			Err:  fmt.Errorf("invalid hash algorithm: %w", err),
		}
	}
	return pipeline.New(pipeline.Settings{
		CacheDir:  c.CacheDir,
		Workers:   c.Workers,
		Algorithm: alg,
	}), nil
}
