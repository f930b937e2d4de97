// Package builder executes recipes and records verified artifacts in the
// build cache.
//
// A build is keyed by the recipe's stable key. A cache hit never executes
// anything. A miss runs the recipe in a private working directory, hashes
// the output and accepts it only if it matches the declared hash, or pins
// the hash on first build when none is declared.
package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/opmodel/strata/internal/cache"
	oerrors "github.com/opmodel/strata/internal/errors"
	"github.com/opmodel/strata/internal/output"
	"github.com/opmodel/strata/internal/recipe"
	"github.com/opmodel/strata/pkg/hashenc"
)

// Artifact is a verified build output.
type Artifact struct {
	Name string
	Key  string
	Path string
	Hash string

	// Cached is true when the artifact was served without executing.
	Cached bool
}

// Builder builds recipes from a store into a cache. Safe for concurrent use.
type Builder struct {
	store *recipe.Store
	cache *cache.Cache
	exec  StepExecutor

	// workRoot holds per-build working directories; empty means os.TempDir.
	workRoot string

	flight singleflight.Group
}

// Option configures a Builder.
type Option func(*Builder)

// WithExecutor replaces the default ShellExecutor.
func WithExecutor(e StepExecutor) Option {
	return func(b *Builder) { b.exec = e }
}

// WithWorkRoot sets where working directories are created.
func WithWorkRoot(dir string) Option {
	return func(b *Builder) { b.workRoot = dir }
}

// New creates a Builder.
func New(store *recipe.Store, c *cache.Cache, opts ...Option) *Builder {
	b := &Builder{store: store, cache: c, exec: ShellExecutor{}}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Cache returns the builder's cache.
func (b *Builder) Cache() *cache.Cache {
	return b.cache
}

// Build produces the artifact for the named recipe. deps must hold the
// artifacts of every dependency of the recipe.
//
// Concurrent calls for the same key within the process share one build.
// Across processes, writers serialize on the key's cache lock and re-check
// the cache once they hold it.
func (b *Builder) Build(ctx context.Context, name string, deps map[string]Artifact) (Artifact, error) {
	r, err := b.store.Get(name)
	if err != nil {
		return Artifact{}, err
	}
	for _, d := range r.Deps {
		if _, ok := deps[d]; !ok {
			return Artifact{}, &oerrors.RecipeError{
				Kind:   oerrors.ErrBuildStepFailure,
				Recipe: name,
				Detail: fmt.Sprintf("dependency %s was not built", d),
			}
		}
	}
	key, err := b.store.Key(ctx, name)
	if err != nil {
		return Artifact{}, err
	}

	v, err, _ := b.flight.Do(key, func() (any, error) {
		return b.build(ctx, r, key, deps)
	})
	if err != nil {
		buildsTotal.WithLabelValues(resultFailed).Inc()
		return Artifact{}, err
	}
	art := v.(Artifact)
	if art.Cached {
		buildsTotal.WithLabelValues(resultCached).Inc()
	} else {
		buildsTotal.WithLabelValues(resultBuilt).Inc()
	}
	return art, nil
}

func (b *Builder) build(ctx context.Context, r *recipe.Recipe, key string, deps map[string]Artifact) (Artifact, error) {
	log := output.RecipeLogger(r.Name)

	expected, declared, err := r.Expected()
	if err != nil {
		return Artifact{}, &oerrors.RecipeError{Kind: oerrors.ErrValidation, Recipe: r.Name, Cause: err}
	}

	if art, ok, err := b.lookup(r, key, expected, declared); ok || err != nil {
		return art, err
	}

	lock, err := b.cache.Lock(ctx, key)
	if err != nil {
		return Artifact{}, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn("releasing cache lock", "key", key, "err", err)
		}
	}()

	// Another process may have finished while we waited.
	if art, ok, err := b.lookup(r, key, expected, declared); ok || err != nil {
		return art, err
	}

	log.Info("building", "key", key)
	start := time.Now()

	staged, err := b.cache.Stage(key)
	if err != nil {
		return Artifact{}, err
	}
	keep := false
	defer func() {
		if !keep {
			_ = os.RemoveAll(staged)
		}
	}()

	// A declared hash fixes the algorithm the output is hashed with.
	alg := b.store.Algorithm()
	if declared {
		alg = expected.Algorithm
	}

	var actual hashenc.Digest
	if r.IsAggregate() {
		actual, err = b.link(r, alg, staged, deps)
	} else {
		actual, err = b.execute(ctx, r, alg, key, staged, deps)
	}
	if err != nil {
		return Artifact{}, err
	}

	if declared && !actual.Equal(expected) {
		integrityFailures.Inc()
		return Artifact{}, &oerrors.RecipeError{
			Kind:     oerrors.ErrIntegrityMismatch,
			Recipe:   r.Name,
			Key:      key,
			Expected: expected.String(),
			Actual:   actual.String(),
		}
	}

	path, err := b.cache.Commit(staged, key, r.Name)
	if err != nil {
		return Artifact{}, err
	}
	keep = true

	entry := cache.Entry{
		Key:       key,
		Name:      r.Name,
		Hash:      actual.String(),
		DepKeys:   depKeys(r, deps),
		Aggregate: r.IsAggregate(),
	}
	if err := b.cache.Put(entry); err != nil {
		// The artifact must not outlive a rejected entry.
		_ = os.RemoveAll(path)
		return Artifact{}, err
	}
	// A rebuild under another algorithm keeps the recorded hash, so
	// dependents and verify see one hash per key.
	if stored, ok := b.cache.Pinned(key); ok {
		entry.Hash = stored.Hash
	}

	buildDuration.Observe(time.Since(start).Seconds())
	log.Info("built", "key", key, "hash", entry.Hash, "duration", time.Since(start).Round(time.Millisecond))
	return Artifact{Name: r.Name, Key: key, Path: path, Hash: entry.Hash}, nil
}

// lookup serves a cache hit, checking it against the declared hash.
func (b *Builder) lookup(r *recipe.Recipe, key string, expected hashenc.Digest, declared bool) (Artifact, bool, error) {
	e, ok := b.cache.Get(key)
	if !ok {
		return Artifact{}, false, nil
	}
	if !declared {
		output.RecipeLogger(r.Name).Debug("cache hit", "key", key)
		return b.cached(r, key, e), true, nil
	}

	match, err := b.cache.Matches(e, expected)
	if err != nil {
		return Artifact{}, false, err
	}
	if !match {
		integrityFailures.Inc()
		return Artifact{}, false, &oerrors.RecipeError{
			Kind:     oerrors.ErrIntegrityMismatch,
			Recipe:   r.Name,
			Key:      key,
			Expected: expected.String(),
			Actual:   e.Hash,
			Detail:   "cached entry",
		}
	}
	output.RecipeLogger(r.Name).Debug("cache hit", "key", key)
	return b.cached(r, key, e), true, nil
}

func (b *Builder) cached(r *recipe.Recipe, key string, e cache.Entry) Artifact {
	return Artifact{Name: r.Name, Key: key, Path: b.cache.ArtifactPath(key, r.Name), Hash: e.Hash, Cached: true}
}

// link fills an aggregate's output with one symlink per dependency and
// returns the hash over the dependencies' names and hashes.
func (b *Builder) link(r *recipe.Recipe, alg hashenc.Algorithm, out string, deps map[string]Artifact) (hashenc.Digest, error) {
	pairs := make([]cache.DepHash, 0, len(r.Deps))
	for _, d := range r.Deps {
		art := deps[d]
		if err := os.Symlink(art.Path, filepath.Join(out, d)); err != nil {
			return hashenc.Digest{}, fmt.Errorf("linking %s into %s: %w", d, r.Name, err)
		}
		pairs = append(pairs, cache.DepHash{Name: d, Hash: art.Hash})
	}
	return cache.AggregateHash(alg, pairs), nil
}

// execute prepares a working directory, runs the steps and hashes out.
func (b *Builder) execute(ctx context.Context, r *recipe.Recipe, alg hashenc.Algorithm, key, out string, deps map[string]Artifact) (hashenc.Digest, error) {
	work, err := os.MkdirTemp(b.workRoot, "strata-build-"+r.Name+"-")
	if err != nil {
		return hashenc.Digest{}, fmt.Errorf("creating working directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(work); err != nil {
			output.Warn("removing working directory", "dir", work, "err", err)
		}
	}()

	sc := StepContext{Recipe: r, Key: key, WorkDir: work, Out: out, Deps: make(map[string]string, len(deps))}
	for _, d := range r.Deps {
		sc.Deps[d] = deps[d].Path
	}

	if !r.Source.IsZero() {
		sc.Src = filepath.Join(work, "src")
		if err := b.prepareSource(ctx, r, sc.Src); err != nil {
			return hashenc.Digest{}, err
		}
	}

	if len(r.Steps) == 0 {
		// A source-only recipe exports its source tree.
		if err := copyTree(sc.Src, filepath.Join(out, filepath.Base(r.Source.Path))); err != nil {
			return hashenc.Digest{}, fmt.Errorf("copying source of %s: %w", r.Name, err)
		}
	} else if err := b.exec.Run(ctx, sc); err != nil {
		var re *oerrors.RecipeError
		if errors.As(err, &re) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return hashenc.Digest{}, err
		}
		return hashenc.Digest{}, &oerrors.RecipeError{Kind: oerrors.ErrBuildStepFailure, Recipe: r.Name, Key: key, Cause: err}
	}

	d, err := hashenc.HashTree(alg, out)
	if err != nil {
		return hashenc.Digest{}, &oerrors.RecipeError{Kind: oerrors.ErrBuildStepFailure, Recipe: r.Name, Key: key, Detail: "hashing output", Cause: err}
	}
	return d, nil
}

func (b *Builder) prepareSource(ctx context.Context, r *recipe.Recipe, dest string) error {
	if r.Source.IsRemote() {
		if err := b.store.Fetcher().Fetch(ctx, r.Source, dest); err != nil {
			return &oerrors.RecipeError{Kind: oerrors.ErrBuildStepFailure, Recipe: r.Name, Detail: "fetching source", Cause: err}
		}
		return nil
	}
	if err := copyTree(r.Source.Path, dest); err != nil {
		return &oerrors.RecipeError{Kind: oerrors.ErrBuildStepFailure, Recipe: r.Name, Detail: "copying source", Cause: err}
	}
	return nil
}

func depKeys(r *recipe.Recipe, deps map[string]Artifact) []string {
	keys := make([]string, 0, len(r.Deps))
	for _, d := range r.Deps {
		keys = append(keys, deps[d].Key)
	}
	return keys
}
