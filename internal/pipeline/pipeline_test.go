package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opmodel/strata/internal/builder"
	oerrors "github.com/opmodel/strata/internal/errors"
	"github.com/opmodel/strata/internal/export"
	"github.com/opmodel/strata/internal/testutil"
)

const recipesYAML = `
recipes:
  - name: binary
    source: {path: ./src}
    steps: ['cp "$src/main" "$out/greeter"']
  - name: theme
    steps: ['echo %s > "$out/theme.conf"']
  - name: image
    deps: [binary, theme]
`

func writeProject(t *testing.T, theme string) (dir string, opts Options) {
	t.Helper()
	dir = t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{
		"src/main": "#!/bin/sh\n",
		"base.yaml": "outputs:\n  image: image\ngreeter:\n  font:\n    family: Terminus\n",
		"host.yaml": "greeter.font.family: !force Hack\nsystem.hostname: kiosk\n",
	})
	writeRecipes(t, dir, theme)
	return dir, Options{
		Modules: []string{filepath.Join(dir, "base.yaml"), filepath.Join(dir, "host.yaml")},
		Recipes: []string{filepath.Join(dir, "recipes.yaml")},
	}
}

func writeRecipes(t *testing.T, dir, theme string) {
	t.Helper()
	testutil.WriteFile(t, dir, "recipes.yaml", strings.Replace(recipesYAML, "%s", theme, 1))
}

func TestResolve(t *testing.T) {
	_, opts := writeProject(t, "dark")
	ev, err := New(Settings{CacheDir: t.TempDir()}).Resolve(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, "Hack", ev.Config.String("greeter.font.family"))
	assert.Equal(t, "kiosk", ev.Config.String("system.hostname"))
	assert.Len(t, ev.Modules, 2)
}

func TestResolveRequiresModules(t *testing.T) {
	_, err := New(Settings{}).Resolve(context.Background(), Options{})
	assert.Error(t, err)
}

func TestResolveReportsConflicts(t *testing.T) {
	dir := t.TempDir()
	a := testutil.WriteFile(t, dir, "a.yaml", "system.hostname: one\ngreeter.font.family: A\n")
	b := testutil.WriteFile(t, dir, "b.yaml", "system.hostname: two\ngreeter.font.family: B\n")

	_, err := New(Settings{}).Resolve(context.Background(), Options{Modules: []string{a, b}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, oerrors.ErrConflictingDefinition))
	assert.Len(t, oerrors.Flatten(err), 2)
}

func TestPlan(t *testing.T) {
	_, opts := writeProject(t, "dark")
	plan, err := New(Settings{}).Plan(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"binary", "theme", "image"}, plan.Closure.Order)
	assert.Len(t, plan.Keys, 3)
	assert.NotEqual(t, plan.Keys["binary"], plan.Keys["theme"])
}

func TestBuildIncremental(t *testing.T) {
	dir, opts := writeProject(t, "dark")
	p := New(Settings{CacheDir: filepath.Join(dir, ".cache"), Workers: 2})
	ctx := context.Background()

	first, err := p.Build(ctx, opts)
	require.NoError(t, err)
	require.NoError(t, first.Report.Err())
	assert.NotEmpty(t, first.RunID)
	for _, n := range []string{"binary", "theme", "image"} {
		assert.Equal(t, builder.StatusBuilt, first.Report.Results[n].Status, n)
	}

	writeRecipes(t, dir, "light")
	second, err := p.Build(ctx, opts)
	require.NoError(t, err)
	require.NoError(t, second.Report.Err())
	assert.Equal(t, builder.StatusCached, second.Report.Results["binary"].Status)
	assert.Equal(t, builder.StatusBuilt, second.Report.Results["theme"].Status)
	assert.Equal(t, builder.StatusBuilt, second.Report.Results["image"].Status)

	link := filepath.Join(dir, "result")
	res, err := export.Export(second.Closure, second.Report, "image", link)
	require.NoError(t, err)
	assert.Equal(t, "light\n", testutil.ReadFile(t, filepath.Join(link, "theme", "theme.conf")))
	assert.Equal(t, "#!/bin/sh\n", testutil.ReadFile(t, filepath.Join(res.Path, "binary", "greeter")))
}

func TestBuildRequiresCacheDir(t *testing.T) {
	_, opts := writeProject(t, "dark")
	_, err := New(Settings{}).Build(context.Background(), opts)
	assert.Error(t, err)
}

func TestSchema(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "extra.yaml", "options:\n  kiosk.url:\n    type: string\n    default: about:blank\n")

	reg, err := New(Settings{}).Schema([]string{path})
	require.NoError(t, err)
	assert.True(t, reg.Sealed())

	opt, err := reg.Lookup("kiosk.url")
	require.NoError(t, err)
	assert.Equal(t, "about:blank", opt.Default)

	_, err = reg.Lookup("system.hostname")
	assert.NoError(t, err)
}
