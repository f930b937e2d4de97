package closure

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oerrors "github.com/opmodel/strata/internal/errors"
	"github.com/opmodel/strata/internal/module"
	"github.com/opmodel/strata/internal/option"
	"github.com/opmodel/strata/internal/recipe"
	"github.com/opmodel/strata/internal/resolve"
)

func resolveYAML(t *testing.T, src string) *resolve.Configuration {
	t.Helper()
	reg, err := option.Builtin()
	require.NoError(t, err)
	reg.Seal()
	m, err := module.NewLoader(reg).LoadBytes("test.yaml", module.FormatYAML, []byte(src))
	require.NoError(t, err)
	cfg, err := resolve.Merge(reg, []*module.Module{m})
	require.NoError(t, err)
	return cfg
}

func storeOf(t *testing.T, recipes ...*recipe.Recipe) *recipe.Store {
	t.Helper()
	s := recipe.NewStore()
	for _, r := range recipes {
		require.NoError(t, s.Add(r))
	}
	return s
}

func step(name string, deps ...string) *recipe.Recipe {
	return &recipe.Recipe{Name: name, Steps: []string{"make"}, Deps: deps}
}

func TestComposeOrder(t *testing.T) {
	cfg := resolveYAML(t, `
outputs:
  image: image
system:
  packages: [zsh]
`)
	s := storeOf(t,
		step("libc"),
		step("binary", "libc"),
		step("theme"),
		&recipe.Recipe{Name: "image", Deps: []string{"theme", "binary"}},
		step("zsh", "libc"),
		step("unused"),
	)

	c, err := Compose(cfg, s, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"libc", "theme", "binary", "zsh", "image"}, c.Order)
	assert.Equal(t, []string{"image", "zsh"}, c.Roots)
	assert.Equal(t, []string{"binary", "theme"}, c.Deps("image"))
	assert.False(t, c.Contains("unused"))

	again, err := Compose(cfg, s, Options{})
	require.NoError(t, err)
	assert.Equal(t, c.Order, again.Order)
}

func TestComposeSelectedOutputs(t *testing.T) {
	cfg := resolveYAML(t, `
outputs:
  image: image
  docs: docs
`)
	s := storeOf(t, step("theme"), &recipe.Recipe{Name: "image", Deps: []string{"theme"}}, step("docs"))

	c, err := Compose(cfg, s, Options{Outputs: []string{"image"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"theme", "image"}, c.Order)
	assert.Equal(t, []string{"docs", "image"}, c.Outputs())
}

func TestComposeUnknownOutput(t *testing.T) {
	cfg := resolveYAML(t, "outputs: {image: image}\n")
	s := storeOf(t, step("image"))

	_, err := Compose(cfg, s, Options{Outputs: []string{"nope"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, oerrors.ErrUnknownOutput))
	assert.Contains(t, err.Error(), "image")
}

func TestComposeUnknownRecipes(t *testing.T) {
	cfg := resolveYAML(t, `
outputs:
  image: image
greeter:
  theme: missing-theme
`)
	s := storeOf(t, step("image", "missing-lib"))

	_, err := Compose(cfg, s, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, oerrors.ErrUnknownRecipe))
	errs := oerrors.Flatten(err)
	assert.Len(t, errs, 2, "every unknown recipe is reported")
	assert.Contains(t, err.Error(), "option greeter.theme")
	assert.Contains(t, err.Error(), "recipe image")
}

func TestComposeCycle(t *testing.T) {
	cfg := resolveYAML(t, "outputs: {app: a}\n")
	s := storeOf(t, step("a", "b"), step("b", "c"), step("c", "a"))

	c, err := Compose(cfg, s, Options{})
	assert.Nil(t, c, "no partial plan")
	require.Error(t, err)
	assert.True(t, errors.Is(err, oerrors.ErrCyclicDependency))

	var re *oerrors.RecipeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, []string{"a", "b", "c", "a"}, re.Cycle)
}

func TestComposeSelfCycle(t *testing.T) {
	cfg := resolveYAML(t, "outputs: {app: a}\n")
	s := storeOf(t, step("a", "a"))

	_, err := Compose(cfg, s, Options{})
	var re *oerrors.RecipeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, []string{"a", "a"}, re.Cycle)
}

func TestNamedOutputs(t *testing.T) {
	cfg := resolveYAML(t, `
outputs:
  image: image
session:
  package: greeter
greeter:
  theme: ""
`)
	assert.Equal(t, map[string]string{
		"image":           "image",
		"session.package": "greeter",
	}, NamedOutputs(cfg))
}
