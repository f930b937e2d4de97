package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/opmodel/strata/internal/builder"
	"github.com/opmodel/strata/internal/cache"
	"github.com/opmodel/strata/internal/closure"
	"github.com/opmodel/strata/internal/history"
	"github.com/opmodel/strata/internal/module"
	"github.com/opmodel/strata/internal/option"
	"github.com/opmodel/strata/internal/output"
	"github.com/opmodel/strata/internal/recipe"
	"github.com/opmodel/strata/internal/resolve"
	"github.com/opmodel/strata/pkg/hashenc"
)

// Settings are the run-independent parameters of a Pipeline.
type Settings struct {
	CacheDir  string
	Workers   int
	Algorithm hashenc.Algorithm

	// Executor replaces the default shell executor.
	Executor builder.StepExecutor

	// Fetcher materializes remote sources.
	Fetcher recipe.Fetcher
}

// Pipeline runs phases against one cache.
type Pipeline struct {
	settings Settings
}

// New creates a Pipeline.
func New(s Settings) *Pipeline {
	if s.Algorithm == "" {
		s.Algorithm = hashenc.SHA256
	}
	return &Pipeline{settings: s}
}

// Resolve runs the resolve phase.
//
// Phase sequence:
//  1. SCHEMA:  built-in options plus opts.Schemas, sealed
//  2. LOAD:    every module and its imports
//  3. MERGE:   resolve.Merge, reporting every failing option
func (p *Pipeline) Resolve(ctx context.Context, opts Options) (*Evaluation, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	reg, err := p.Schema(opts.Schemas)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mods, err := module.NewLoader(reg).LoadAll(opts.Modules)
	if err != nil {
		return nil, err
	}

	cfg, err := resolve.Merge(reg, mods)
	if err != nil {
		return nil, err
	}
	output.Debug("configuration resolved", "modules", len(mods), "options", len(cfg.Paths()))
	return &Evaluation{Registry: reg, Modules: mods, Config: cfg}, nil
}

// Schema returns the sealed registry of built-in options plus the options
// declared in the given schema files.
func (p *Pipeline) Schema(files []string) (*option.Registry, error) {
	reg, err := option.Builtin()
	if err != nil {
		return nil, fmt.Errorf("loading built-in schema: %w", err)
	}
	for _, f := range files {
		if err := reg.LoadSchemaFile(f); err != nil {
			return nil, err
		}
	}
	reg.Seal()
	return reg, nil
}

// Plan runs the resolve and compose phases. Resolution completes before
// any recipe is looked at.
func (p *Pipeline) Plan(ctx context.Context, opts Options) (*Plan, error) {
	ev, err := p.Resolve(ctx, opts)
	if err != nil {
		return nil, err
	}

	sopts := []recipe.StoreOption{recipe.WithAlgorithm(p.settings.Algorithm)}
	if p.settings.Fetcher != nil {
		sopts = append(sopts, recipe.WithFetcher(p.settings.Fetcher))
	}
	store := recipe.NewStore(sopts...)
	for _, f := range opts.Recipes {
		if err := store.LoadFile(f); err != nil {
			return nil, err
		}
	}

	c, err := closure.Compose(ev.Config, store, closure.Options{Outputs: opts.Outputs})
	if err != nil {
		return nil, err
	}

	keys := make(map[string]string, len(c.Order))
	for _, name := range c.Order {
		k, err := store.Key(ctx, name)
		if err != nil {
			return nil, err
		}
		keys[name] = k
	}
	output.Debug("closure composed", "recipes", len(c.Order), "roots", len(c.Roots))
	return &Plan{Evaluation: ev, Store: store, Closure: c, Keys: keys}, nil
}

// Build runs every phase up to and including the build. Build failures are
// in Result.Report; the returned error covers failures before building.
func (p *Pipeline) Build(ctx context.Context, opts Options) (*Result, error) {
	plan, err := p.Plan(ctx, opts)
	if err != nil {
		return nil, err
	}

	c, err := p.OpenCache()
	if err != nil {
		return nil, err
	}

	var bopts []builder.Option
	if p.settings.Executor != nil {
		bopts = append(bopts, builder.WithExecutor(p.settings.Executor))
	}
	b := builder.New(plan.Store, c, bopts...)

	runID := uuid.NewString()
	output.Info("build started", "run", runID, "recipes", len(plan.Closure.Order))

	report, err := builder.NewScheduler(b, plan.Store, p.settings.Workers).Run(ctx, plan.Closure.Order)
	if err != nil {
		return nil, err
	}
	output.Info("build finished", "run", runID, "failed", len(failed(report)))
	return &Result{Plan: plan, RunID: runID, Report: report}, nil
}

// OpenCache opens the configured build cache.
func (p *Pipeline) OpenCache() (*cache.Cache, error) {
	if p.settings.CacheDir == "" {
		return nil, fmt.Errorf("no cache directory configured")
	}
	return cache.Open(p.settings.CacheDir)
}

// OpenHistory opens the out-link history kept beside the build cache.
func (p *Pipeline) OpenHistory() (*history.Store, error) {
	if p.settings.CacheDir == "" {
		return nil, fmt.Errorf("no cache directory configured")
	}
	return history.Open(p.settings.CacheDir)
}

func failed(r *builder.Report) []string {
	var names []string
	for _, n := range r.Order {
		if s := r.Results[n].Status; s == builder.StatusFailed || s == builder.StatusSkipped {
			names = append(names, n)
		}
	}
	return names
}
