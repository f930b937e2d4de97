package builder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oerrors "github.com/opmodel/strata/internal/errors"
	"github.com/opmodel/strata/internal/recipe"
)

func TestSchedulerBuildsPlan(t *testing.T) {
	f := newFixture(t,
		&recipe.Recipe{Name: "binary", Steps: []string{"make"}},
		&recipe.Recipe{Name: "theme", Steps: []string{"make"}},
		&recipe.Recipe{Name: "image", Deps: []string{"binary", "theme"}},
	)
	s := NewScheduler(f.b, f.store, 4)

	report, err := s.Run(context.Background(), []string{"binary", "theme", "image"})
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Equal(t, StatusBuilt, report.Results["image"].Status)
	assert.Len(t, report.Artifacts(), 3)

	again, err := s.Run(context.Background(), []string{"binary", "theme", "image"})
	require.NoError(t, err)
	for _, n := range []string{"binary", "theme", "image"} {
		assert.Equal(t, StatusCached, again.Results[n].Status, n)
	}
	assert.Equal(t, 1, f.exec.count("binary"))
}

func TestSchedulerRebuildsOnlyChangedRecipe(t *testing.T) {
	dir := t.TempDir()
	recipes := func(themeStep string) []*recipe.Recipe {
		return []*recipe.Recipe{
			{Name: "binary", Steps: []string{"make"}},
			{Name: "theme", Steps: []string{themeStep}},
			{Name: "image", Deps: []string{"binary", "theme"}},
		}
	}
	first := newFixtureIn(t, dir, recipes("make dark")...)
	_, err := NewScheduler(first.b, first.store, 2).Run(context.Background(), []string{"binary", "theme", "image"})
	require.NoError(t, err)

	second := newFixtureIn(t, dir, recipes("make light")...)
	report, err := NewScheduler(second.b, second.store, 2).Run(context.Background(), []string{"binary", "theme", "image"})
	require.NoError(t, err)
	require.NoError(t, report.Err())

	assert.Equal(t, 0, second.exec.count("binary"))
	assert.Equal(t, 1, second.exec.count("theme"))
	assert.Equal(t, StatusCached, report.Results["binary"].Status)
	assert.Equal(t, StatusBuilt, report.Results["theme"].Status)
	assert.Equal(t, StatusBuilt, report.Results["image"].Status)
}

func TestSchedulerFailurePropagation(t *testing.T) {
	f := newFixture(t,
		&recipe.Recipe{Name: "lib", Steps: []string{"make"}},
		&recipe.Recipe{Name: "app", Deps: []string{"lib"}, Steps: []string{"make"}},
		&recipe.Recipe{Name: "bundle", Deps: []string{"app"}},
		&recipe.Recipe{Name: "docs", Steps: []string{"make"}},
		&recipe.Recipe{Name: "broken", Steps: []string{"make"}},
	)
	f.exec.fail["lib"] = true
	f.exec.fail["broken"] = true

	report, err := NewScheduler(f.b, f.store, 2).Run(context.Background(), []string{"broken", "docs", "lib", "app", "bundle"})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, report.Results["lib"].Status)
	assert.Equal(t, StatusSkipped, report.Results["app"].Status)
	assert.Equal(t, StatusSkipped, report.Results["bundle"].Status)
	assert.Equal(t, StatusBuilt, report.Results["docs"].Status)
	assert.Equal(t, 0, f.exec.count("app"))

	var skip *SkipError
	require.True(t, errors.As(report.Results["bundle"].Err, &skip))
	assert.Equal(t, "lib", skip.Failed)

	errs := oerrors.Flatten(report.Err())
	require.Len(t, errs, 2, "only root failures are reported")
	assert.True(t, errors.Is(report.Err(), oerrors.ErrBuildStepFailure))

	var re *oerrors.RecipeError
	require.True(t, errors.As(errs[0], &re))
	assert.Equal(t, "broken", re.Recipe)
}

func TestSchedulerRejectsOpenPlan(t *testing.T) {
	f := newFixture(t,
		&recipe.Recipe{Name: "lib", Steps: []string{"make"}},
		&recipe.Recipe{Name: "app", Deps: []string{"lib"}, Steps: []string{"make"}},
	)
	_, err := NewScheduler(f.b, f.store, 1).Run(context.Background(), []string{"app"})
	assert.True(t, errors.Is(err, oerrors.ErrUnknownRecipe))
}

func TestSchedulerCancelled(t *testing.T) {
	f := newFixture(t, &recipe.Recipe{Name: "theme", Steps: []string{"make"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewScheduler(f.b, f.store, 1).Run(ctx, []string{"theme"})
	require.NoError(t, err)
	assert.ErrorIs(t, report.Err(), context.Canceled)
	assert.Equal(t, 0, f.exec.count("theme"))
}
