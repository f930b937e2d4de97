package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opmodel/strata/internal/cache"
	oerrors "github.com/opmodel/strata/internal/errors"
	"github.com/opmodel/strata/internal/recipe"
	"github.com/opmodel/strata/internal/testutil"
	"github.com/opmodel/strata/pkg/hashenc"
)

// countingExecutor writes "<name>:<content>" to $out/result and counts runs.
type countingExecutor struct {
	mu      sync.Mutex
	runs    map[string]int
	content map[string]string
	fail    map[string]bool
	delay   time.Duration
}

func newCountingExecutor() *countingExecutor {
	return &countingExecutor{runs: map[string]int{}, content: map[string]string{}, fail: map[string]bool{}}
}

func (e *countingExecutor) Run(_ context.Context, sc StepContext) error {
	e.mu.Lock()
	e.runs[sc.Recipe.Name]++
	content := e.content[sc.Recipe.Name]
	fail := e.fail[sc.Recipe.Name]
	delay := e.delay
	e.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		return errors.New("boom")
	}
	return os.WriteFile(filepath.Join(sc.Out, "result"), []byte(sc.Recipe.Name+":"+content), 0o644)
}

func (e *countingExecutor) count(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runs[name]
}

func (e *countingExecutor) set(name, content string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.content[name] = content
}

type fixture struct {
	store *recipe.Store
	cache *cache.Cache
	exec  *countingExecutor
	b     *Builder
}

func newFixture(t *testing.T, recipes ...*recipe.Recipe) *fixture {
	t.Helper()
	return newFixtureIn(t, t.TempDir(), recipes...)
}

func newFixtureIn(t *testing.T, cacheDir string, recipes ...*recipe.Recipe) *fixture {
	t.Helper()
	s := recipe.NewStore()
	for _, r := range recipes {
		require.NoError(t, s.Add(r))
	}
	c, err := cache.Open(cacheDir)
	require.NoError(t, err)
	e := newCountingExecutor()
	return &fixture{store: s, cache: c, exec: e, b: New(s, c, WithExecutor(e), WithWorkRoot(t.TempDir()))}
}

func TestBuildIsCached(t *testing.T) {
	f := newFixture(t, &recipe.Recipe{Name: "theme", Steps: []string{"make"}})
	ctx := context.Background()

	first, err := f.b.Build(ctx, "theme", nil)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "theme:", testutil.ReadFile(t, filepath.Join(first.Path, "result")))

	second, err := f.b.Build(ctx, "theme", nil)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, 1, f.exec.count("theme"))
}

func TestBuildCachedAcrossProcesses(t *testing.T) {
	dir := t.TempDir()
	r := &recipe.Recipe{Name: "theme", Steps: []string{"make"}}
	f1 := newFixtureIn(t, dir, r)
	_, err := f1.b.Build(context.Background(), "theme", nil)
	require.NoError(t, err)

	f2 := newFixtureIn(t, dir, &recipe.Recipe{Name: "theme", Steps: []string{"make"}})
	art, err := f2.b.Build(context.Background(), "theme", nil)
	require.NoError(t, err)
	assert.True(t, art.Cached)
	assert.Equal(t, 0, f2.exec.count("theme"))
}

func TestBuildConcurrentCallersShareOneBuild(t *testing.T) {
	f := newFixture(t, &recipe.Recipe{Name: "theme", Steps: []string{"make"}})
	f.exec.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	hashes := make([]string, 8)
	for i := range hashes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			art, err := f.b.Build(context.Background(), "theme", nil)
			if assert.NoError(t, err) {
				hashes[i] = art.Hash
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, f.exec.count("theme"))
	for _, h := range hashes {
		assert.Equal(t, hashes[0], h)
	}
}

func TestBuildDeclaredHash(t *testing.T) {
	// Learn the hash from an unpinned build in a separate cache.
	probe := newFixture(t, &recipe.Recipe{Name: "theme", Steps: []string{"make"}})
	art, err := probe.b.Build(context.Background(), "theme", nil)
	require.NoError(t, err)

	t.Run("matching", func(t *testing.T) {
		f := newFixture(t, &recipe.Recipe{Name: "theme", Steps: []string{"make"}, OutputHash: art.Hash})
		got, err := f.b.Build(context.Background(), "theme", nil)
		require.NoError(t, err)
		assert.Equal(t, art.Hash, got.Hash)
	})

	t.Run("mismatch writes nothing", func(t *testing.T) {
		f := newFixture(t, &recipe.Recipe{Name: "theme", Steps: []string{"make"}, OutputHash: art.Hash})
		f.exec.set("theme", "tampered")

		_, err := f.b.Build(context.Background(), "theme", nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, oerrors.ErrIntegrityMismatch))

		var re *oerrors.RecipeError
		require.True(t, errors.As(err, &re))
		assert.Equal(t, art.Hash, re.Expected)
		assert.NotEqual(t, art.Hash, re.Actual)

		assert.Empty(t, f.cache.Entries())
		key, err := f.store.Key(context.Background(), "theme")
		require.NoError(t, err)
		assert.NoDirExists(t, f.cache.ArtifactPath(key, "theme"))
		entries, err := os.ReadDir(filepath.Join(f.cache.Dir(), "store"))
		require.NoError(t, err)
		assert.Empty(t, entries, "staged output must be removed")
	})
}

func TestBuildCacheHitCheckedAgainstDeclaredHash(t *testing.T) {
	dir := t.TempDir()
	f1 := newFixtureIn(t, dir, &recipe.Recipe{Name: "theme", Steps: []string{"make"}})
	_, err := f1.b.Build(context.Background(), "theme", nil)
	require.NoError(t, err)

	// Same key, since the declared hash is not a key input.
	wrong := "sha256-47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU="
	f2 := newFixtureIn(t, dir, &recipe.Recipe{Name: "theme", Steps: []string{"make"}, OutputHash: wrong})
	_, err = f2.b.Build(context.Background(), "theme", nil)
	assert.True(t, errors.Is(err, oerrors.ErrIntegrityMismatch), "got %v", err)
	assert.Equal(t, 0, f2.exec.count("theme"))
}

func TestBuildDeclaredHashInOtherAlgorithm(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	f1 := newFixtureIn(t, dir, &recipe.Recipe{Name: "theme", Steps: []string{"make"}})
	art, err := f1.b.Build(ctx, "theme", nil)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(art.Hash, "sha256-"))

	want, err := hashenc.HashTree(hashenc.BLAKE3, art.Path)
	require.NoError(t, err)

	t.Run("cache hit matches", func(t *testing.T) {
		f := newFixtureIn(t, dir, &recipe.Recipe{Name: "theme", Steps: []string{"make"}, OutputHash: want.String()})
		got, err := f.b.Build(ctx, "theme", nil)
		require.NoError(t, err)
		assert.True(t, got.Cached)
		assert.Equal(t, art.Hash, got.Hash)
		assert.Equal(t, 0, f.exec.count("theme"))
	})

	t.Run("rebuild after the artifact is gone", func(t *testing.T) {
		require.NoError(t, os.RemoveAll(art.Path))
		f := newFixtureIn(t, dir, &recipe.Recipe{Name: "theme", Steps: []string{"make"}, OutputHash: want.String()})
		got, err := f.b.Build(ctx, "theme", nil)
		require.NoError(t, err)
		assert.False(t, got.Cached)
		assert.Equal(t, 1, f.exec.count("theme"))
		assert.Equal(t, art.Hash, got.Hash, "the recorded hash stays")
	})

	t.Run("wrong content still fails", func(t *testing.T) {
		other := hashenc.Sum(hashenc.BLAKE3, []byte("light")).String()
		f := newFixtureIn(t, dir, &recipe.Recipe{Name: "theme", Steps: []string{"make"}, OutputHash: other})
		_, err := f.b.Build(ctx, "theme", nil)
		assert.True(t, errors.Is(err, oerrors.ErrIntegrityMismatch), "got %v", err)
		assert.Equal(t, 0, f.exec.count("theme"))
	})
}

func TestBuildFirstBuildPinsHash(t *testing.T) {
	f := newFixture(t, &recipe.Recipe{Name: "theme", Steps: []string{"make"}})
	ctx := context.Background()
	art, err := f.b.Build(ctx, "theme", nil)
	require.NoError(t, err)

	// The artifact vanishes and the rebuild is not reproducible.
	require.NoError(t, os.RemoveAll(art.Path))
	f.exec.set("theme", "different")

	_, err = f.b.Build(ctx, "theme", nil)
	assert.True(t, errors.Is(err, oerrors.ErrCacheCorruption), "got %v", err)
	assert.Equal(t, 2, f.exec.count("theme"))
	assert.NoDirExists(t, art.Path)

	// A reproducible rebuild restores the artifact.
	f.exec.set("theme", "")
	again, err := f.b.Build(ctx, "theme", nil)
	require.NoError(t, err)
	assert.Equal(t, art.Hash, again.Hash)
	assert.DirExists(t, art.Path)
}

func TestBuildStepFailure(t *testing.T) {
	f := newFixture(t, &recipe.Recipe{Name: "theme", Steps: []string{"make"}})
	f.exec.fail["theme"] = true

	_, err := f.b.Build(context.Background(), "theme", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, oerrors.ErrBuildStepFailure))
	assert.Empty(t, f.cache.Entries())
}

func TestBuildAggregate(t *testing.T) {
	f := newFixture(t,
		&recipe.Recipe{Name: "binary", Steps: []string{"make"}},
		&recipe.Recipe{Name: "theme", Steps: []string{"make"}},
		&recipe.Recipe{Name: "image", Deps: []string{"binary", "theme"}},
	)
	ctx := context.Background()

	deps := map[string]Artifact{}
	for _, n := range []string{"binary", "theme"} {
		art, err := f.b.Build(ctx, n, nil)
		require.NoError(t, err)
		deps[n] = art
	}
	img, err := f.b.Build(ctx, "image", deps)
	require.NoError(t, err)

	target, err := os.Readlink(filepath.Join(img.Path, "theme"))
	require.NoError(t, err)
	assert.Equal(t, deps["theme"].Path, target)
	assert.Equal(t, 0, f.exec.count("image"))

	e, ok := f.cache.Get(img.Key)
	require.True(t, ok)
	assert.True(t, e.Aggregate)
	assert.NoError(t, f.cache.Verify(e))
}

func TestBuildMissingDependencyArtifact(t *testing.T) {
	f := newFixture(t,
		&recipe.Recipe{Name: "theme", Steps: []string{"make"}},
		&recipe.Recipe{Name: "image", Deps: []string{"theme"}},
	)
	_, err := f.b.Build(context.Background(), "image", nil)
	assert.Error(t, err)
}

func TestBuildSourceChangeRebuilds(t *testing.T) {
	src := testutil.WriteTree(t, t.TempDir(), map[string]string{"theme.conf": "dark"})
	f := newFixture(t, &recipe.Recipe{Name: "theme", Source: recipe.Source{Path: src}, Steps: []string{"make"}})
	ctx := context.Background()

	first, err := f.b.Build(ctx, "theme", nil)
	require.NoError(t, err)

	testutil.WriteFile(t, src, "theme.conf", "light")
	f2 := newFixtureIn(t, f.cache.Dir(), &recipe.Recipe{Name: "theme", Source: recipe.Source{Path: src}, Steps: []string{"make"}})
	second, err := f2.b.Build(ctx, "theme", nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.Key, second.Key)
	assert.False(t, second.Cached)
}

func TestBuildSourceOnly(t *testing.T) {
	src := testutil.WriteTree(t, t.TempDir(), map[string]string{"a.txt": "a"})
	f := newFixture(t, &recipe.Recipe{Name: "assets", Source: recipe.Source{Path: src}})

	art, err := f.b.Build(context.Background(), "assets", nil)
	require.NoError(t, err)
	assert.Equal(t, "a", testutil.ReadFile(t, filepath.Join(art.Path, filepath.Base(src), "a.txt")))
}

func TestBuildRemoteSourceWithoutFetcher(t *testing.T) {
	f := newFixture(t, &recipe.Recipe{Name: "font", Source: recipe.Source{URL: "https://example.org/font.tar", Rev: "v1"}, Steps: []string{"make"}})
	_, err := f.b.Build(context.Background(), "font", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, recipe.ErrRemoteUnsupported))
	assert.True(t, errors.Is(err, oerrors.ErrBuildStepFailure))
}

func TestShellExecutorEnvironment(t *testing.T) {
	t.Setenv("STRATA_LEAK", "1")
	src := testutil.WriteTree(t, t.TempDir(), map[string]string{"greeting": "hello"})

	s := recipe.NewStore()
	require.NoError(t, s.Add(&recipe.Recipe{Name: "font-data", Steps: []string{"echo font > $out/font"}}))
	require.NoError(t, s.Add(&recipe.Recipe{
		Name:   "greeter",
		Source: recipe.Source{Path: src},
		Deps:   []string{"font-data"},
		Steps: []string{
			`test -z "$STRATA_LEAK"`,
			`cp "$src/greeting" "$out/greeting"`,
			`cat "$dep_font_data/font" >> "$out/greeting"`,
		},
	}))
	c, err := cache.Open(t.TempDir())
	require.NoError(t, err)
	b := New(s, c, WithWorkRoot(t.TempDir()))
	ctx := context.Background()

	font, err := b.Build(ctx, "font-data", nil)
	require.NoError(t, err)
	art, err := b.Build(ctx, "greeter", map[string]Artifact{"font-data": font})
	require.NoError(t, err)
	assert.Equal(t, "hellofont\n", testutil.ReadFile(t, filepath.Join(art.Path, "greeting")))
}

func TestShellExecutorFailure(t *testing.T) {
	s := recipe.NewStore()
	require.NoError(t, s.Add(&recipe.Recipe{Name: "broken", Steps: []string{"echo first", "echo nope >&2; exit 3"}}))
	c, err := cache.Open(t.TempDir())
	require.NoError(t, err)

	_, err = New(s, c, WithWorkRoot(t.TempDir())).Build(context.Background(), "broken", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, oerrors.ErrBuildStepFailure))
	assert.Contains(t, err.Error(), "step 2")
	assert.Contains(t, err.Error(), "nope")
}

func TestEnvName(t *testing.T) {
	for in, want := range map[string]string{
		"theme":      "theme",
		"font-data":  "font_data",
		"lib.so+1":   "lib_so_1",
		"Mixed_Case": "Mixed_Case",
	} {
		assert.Equal(t, want, envName(in), fmt.Sprintf("envName(%q)", in))
	}
}
