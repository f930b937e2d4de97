package builder

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	oerrors "github.com/opmodel/strata/internal/errors"
	"github.com/opmodel/strata/internal/output"
	"github.com/opmodel/strata/internal/recipe"
)

// Status is the outcome of one node in a scheduled run.
type Status string

const (
	StatusBuilt   Status = "built"
	StatusCached  Status = "cached"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result is one node's outcome.
type Result struct {
	Name     string
	Status   Status
	Artifact Artifact
	Err      error
}

// SkipError marks a recipe that never started because a dependency failed.
type SkipError struct {
	Recipe string
	Failed string
	Cause  error
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("skipped %s: dependency %s failed", e.Recipe, e.Failed)
}

// Unwrap returns the failing dependency's error.
func (e *SkipError) Unwrap() error {
	return e.Cause
}

// Report collects every node's result of a run.
type Report struct {
	// Order is the plan order the run was given.
	Order   []string
	Results map[string]Result
}

// Artifacts returns the artifacts of every node that succeeded.
func (r *Report) Artifacts() map[string]Artifact {
	out := make(map[string]Artifact, len(r.Results))
	for name, res := range r.Results {
		if res.Status == StatusBuilt || res.Status == StatusCached {
			out[name] = res.Artifact
		}
	}
	return out
}

// Err joins the errors of nodes that failed themselves, in plan order.
// Skipped nodes are symptoms and are left out.
func (r *Report) Err() error {
	var errs []error
	for _, name := range r.Order {
		if res := r.Results[name]; res.Status == StatusFailed {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

// Scheduler builds a plan with a bounded worker pool.
type Scheduler struct {
	builder *Builder
	store   *recipe.Store
	workers int
}

// NewScheduler creates a Scheduler. workers <= 0 means one per CPU.
func NewScheduler(b *Builder, store *recipe.Store, workers int) *Scheduler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Scheduler{builder: b, store: store, workers: workers}
}

type job struct {
	name string
	deps map[string]Artifact
}

// Run builds every recipe in plan, which must be topologically ordered and
// closed under dependencies. A node starts once all its dependencies
// succeeded. When a node fails, its transitive dependents are marked skipped
// without running; unrelated nodes keep building.
func (s *Scheduler) Run(ctx context.Context, plan []string) (*Report, error) {
	report := &Report{Order: plan, Results: make(map[string]Result, len(plan))}
	if len(plan) == 0 {
		return report, nil
	}

	inPlan := make(map[string]bool, len(plan))
	for _, n := range plan {
		inPlan[n] = true
	}
	waiting := make(map[string]int, len(plan))
	dependents := make(map[string][]string, len(plan))
	for _, n := range plan {
		r, err := s.store.Get(n)
		if err != nil {
			return nil, err
		}
		for _, d := range r.Deps {
			if !inPlan[d] {
				return nil, &oerrors.RecipeError{Kind: oerrors.ErrUnknownRecipe, Recipe: d, Detail: "dependency of " + n + " is not in the plan"}
			}
			waiting[n]++
			dependents[d] = append(dependents[d], n)
		}
	}

	jobs := make(chan job, len(plan))
	results := make(chan Result, len(plan))
	for i := 0; i < s.workers; i++ {
		go s.worker(ctx, jobs, results)
	}
	defer close(jobs)

	output.Debug("starting build", "recipes", len(plan), "workers", s.workers)

	artifacts := make(map[string]Artifact, len(plan))
	dispatch := func(name string) {
		r, _ := s.store.Get(name)
		deps := make(map[string]Artifact, len(r.Deps))
		for _, d := range r.Deps {
			deps[d] = artifacts[d]
		}
		jobs <- job{name: name, deps: deps}
	}
	for _, n := range plan {
		if waiting[n] == 0 {
			dispatch(n)
		}
	}

	var skip func(failed, root string, cause error)
	skip = func(failed, root string, cause error) {
		for _, dep := range dependents[failed] {
			if _, done := report.Results[dep]; done {
				continue
			}
			skippedTotal.Inc()
			report.Results[dep] = Result{Name: dep, Status: StatusSkipped, Err: &SkipError{Recipe: dep, Failed: root, Cause: cause}}
			output.RecipeLogger(dep).Warn("skipped", "failed dependency", root)
			skip(dep, root, cause)
		}
	}

	for len(report.Results) < len(plan) {
		res := <-results
		report.Results[res.Name] = res

		if res.Status == StatusFailed {
			skip(res.Name, res.Name, res.Err)
			continue
		}
		artifacts[res.Name] = res.Artifact
		for _, dep := range dependents[res.Name] {
			waiting[dep]--
			if _, done := report.Results[dep]; !done && waiting[dep] == 0 {
				dispatch(dep)
			}
		}
	}
	return report, nil
}

func (s *Scheduler) worker(ctx context.Context, jobs <-chan job, results chan<- Result) {
	for j := range jobs {
		if err := ctx.Err(); err != nil {
			results <- Result{Name: j.name, Status: StatusFailed, Err: err}
			continue
		}
		art, err := s.builder.Build(ctx, j.name, j.deps)
		switch {
		case err != nil:
			output.RecipeLogger(j.name).Error("build failed", "err", err)
			results <- Result{Name: j.name, Status: StatusFailed, Err: err}
		case art.Cached:
			results <- Result{Name: j.name, Status: StatusCached, Artifact: art}
		default:
			results <- Result{Name: j.name, Status: StatusBuilt, Artifact: art}
		}
	}
}
