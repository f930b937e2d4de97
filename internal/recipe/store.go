package recipe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	oerrors "github.com/opmodel/strata/internal/errors"
	"github.com/opmodel/strata/pkg/codec"
	"github.com/opmodel/strata/pkg/hashenc"
)

// Fetcher materializes remote sources. Network transport lives outside
// strata; the default fetcher refuses.
type Fetcher interface {
	Fetch(ctx context.Context, src Source, dest string) error
}

// ErrRemoteUnsupported is returned by the default Fetcher.
var ErrRemoteUnsupported = errors.New("remote sources are not supported without a fetcher")

type rejectFetcher struct{}

func (rejectFetcher) Fetch(_ context.Context, src Source, _ string) error {
	return fmt.Errorf("fetching %s: %w", src, ErrRemoteUnsupported)
}

// Store owns recipes by name and memoizes their keys.
type Store struct {
	alg     hashenc.Algorithm
	fetcher Fetcher

	mu      sync.Mutex
	recipes map[string]*Recipe
	keys    map[string]string
	sources map[string]string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithAlgorithm selects the hash algorithm for keys and source hashes.
func WithAlgorithm(alg hashenc.Algorithm) StoreOption {
	return func(s *Store) { s.alg = alg }
}

// WithFetcher installs a remote source fetcher.
func WithFetcher(f Fetcher) StoreOption {
	return func(s *Store) { s.fetcher = f }
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		alg:     hashenc.SHA256,
		fetcher: rejectFetcher{},
		recipes: make(map[string]*Recipe),
		keys:    make(map[string]string),
		sources: make(map[string]string),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Algorithm returns the store's hash algorithm.
func (s *Store) Algorithm() hashenc.Algorithm {
	return s.alg
}

// Fetcher returns the remote source fetcher.
func (s *Store) Fetcher() Fetcher {
	return s.fetcher
}

// Add validates and stores r. Names are unique.
func (s *Store) Add(r *Recipe) error {
	if err := r.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.recipes[r.Name]; ok {
		return &oerrors.RecipeError{
			Kind:   oerrors.ErrValidation,
			Recipe: r.Name,
			Detail: fmt.Sprintf("declared in %s and %s", existing.File, r.File),
		}
	}
	s.recipes[r.Name] = r
	return nil
}

// Get returns the recipe named name.
func (s *Store) Get(name string) (*Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.recipes[name]
	if !ok {
		return nil, &oerrors.RecipeError{Kind: oerrors.ErrUnknownRecipe, Recipe: name}
	}
	return r, nil
}

// Names returns every recipe name, sorted.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.recipes))
	for n := range s.recipes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// keyInput is the canonical form hashed into a recipe key.
type keyInput struct {
	Name   string   `cbor:"name"`
	Source string   `cbor:"source"`
	Steps  []string `cbor:"steps"`
	Deps   []depKey `cbor:"deps"`
}

type depKey struct {
	Name string `cbor:"name"`
	Key  string `cbor:"key"`
}

// Key returns the recipe's stable key, the lowercase hex digest of its
// normalized inputs: name, source identity, steps and the keys of its
// dependencies sorted by name. Filesystem locations and timestamps never
// contribute; a local source contributes its content hash. The declared
// output hash is not an input.
func (s *Store) Key(ctx context.Context, name string) (string, error) {
	return s.key(ctx, name, nil)
}

func (s *Store) key(ctx context.Context, name string, stack []string) (string, error) {
	for i, n := range stack {
		if n == name {
			cycle := append(append([]string(nil), stack[i:]...), name)
			return "", &oerrors.RecipeError{Kind: oerrors.ErrCyclicDependency, Cycle: cycle}
		}
	}

	s.mu.Lock()
	if k, ok := s.keys[name]; ok {
		s.mu.Unlock()
		return k, nil
	}
	s.mu.Unlock()

	r, err := s.Get(name)
	if err != nil {
		return "", err
	}

	source, err := s.SourceIdentity(ctx, r)
	if err != nil {
		return "", err
	}

	deps := append([]string(nil), r.Deps...)
	sort.Strings(deps)
	in := keyInput{Name: r.Name, Source: source, Steps: r.Steps, Deps: make([]depKey, 0, len(deps))}
	if in.Steps == nil {
		in.Steps = []string{}
	}
	path := append(append([]string(nil), stack...), name)
	for _, d := range deps {
		k, err := s.key(ctx, d, path)
		if err != nil {
			return "", err
		}
		in.Deps = append(in.Deps, depKey{Name: d, Key: k})
	}

	data, err := codec.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("encoding key input for %s: %w", name, err)
	}
	k := hashenc.Sum(s.alg, data).Hex()

	s.mu.Lock()
	s.keys[name] = k
	s.mu.Unlock()
	return k, nil
}

// SourceIdentity returns what a recipe's source contributes to its key:
// "path:<content hash>" for a local tree, "url:<url>@<rev>" for a remote one,
// or "" when there is no source. Local hashes are computed once per store.
func (s *Store) SourceIdentity(ctx context.Context, r *Recipe) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch {
	case r.Source.IsZero():
		return "", nil
	case r.Source.IsRemote():
		return "url:" + r.Source.URL + "@" + r.Source.Rev, nil
	}

	s.mu.Lock()
	if id, ok := s.sources[r.Source.Path]; ok {
		s.mu.Unlock()
		return id, nil
	}
	s.mu.Unlock()

	if _, err := os.Lstat(r.Source.Path); err != nil {
		return "", &oerrors.RecipeError{Kind: oerrors.ErrNotFound, Recipe: r.Name, Detail: "source " + r.Source.Path, Cause: err}
	}
	d, err := hashenc.HashTree(s.alg, r.Source.Path)
	if err != nil {
		return "", &oerrors.RecipeError{Kind: oerrors.ErrValidation, Recipe: r.Name, Cause: err}
	}
	id := "path:" + d.String()

	s.mu.Lock()
	s.sources[r.Source.Path] = id
	s.mu.Unlock()
	return id, nil
}

// Describe renders a recipe for listings: name, dependencies and pin.
func Describe(r *Recipe) string {
	var b strings.Builder
	b.WriteString(r.Name)
	if len(r.Deps) > 0 {
		b.WriteString(" <- ")
		b.WriteString(strings.Join(r.Deps, ", "))
	}
	if r.OutputHash != "" {
		b.WriteString(" @ ")
		b.WriteString(r.OutputHash)
	}
	return b.String()
}
