package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opmodel/strata/internal/cmdtypes"
	"github.com/opmodel/strata/internal/testutil"
)

const testRecipes = `
recipes:
  - name: binary
    source: {path: ./src}
    steps: ['cp "$src/main" "$out/greeter"']
  - name: theme
    steps: ['echo dark > "$out/theme.conf"']
  - name: image
    deps: [binary, theme]
`

// project is a module set, recipe file and cache in one temp dir.
type project struct {
	dir      string
	cacheDir string
}

func newProject(t *testing.T) project {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{
		"src/main":     "#!/bin/sh\n",
		"base.yaml":    "outputs:\n  image: image\ngreeter:\n  font:\n    family: Terminus\n",
		"host.yaml":    "greeter.font.family: !force Hack\nsystem.hostname: kiosk\n",
		"recipes.yaml": testRecipes,
	})

	// Keep the user's config and cache out of the tests.
	t.Setenv("HOME", dir)
	t.Setenv("STRATA_CONFIG", filepath.Join(dir, "config.yaml"))
	t.Setenv("STRATA_CACHE_DIR", "")
	t.Setenv("STRATA_WORKERS", "")
	t.Setenv("STRATA_HASH", "")

	return project{dir: dir, cacheDir: filepath.Join(dir, ".cache")}
}

func (p project) path(name string) string {
	return filepath.Join(p.dir, name)
}

// inputs returns the module and recipe flags of the project.
func (p project) inputs() []string {
	return []string{
		"-m", p.path("base.yaml"), "-m", p.path("host.yaml"),
		"-r", p.path("recipes.yaml"),
		"--cache-dir", p.cacheDir,
	}
}

// run executes the root command and returns what it wrote to stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exitErr *cmdtypes.ExitError
	require.ErrorAs(t, err, &exitErr)
	return exitErr.Code
}

func TestExitCodeName(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{cmdtypes.ExitSuccess, "Success"},
		{cmdtypes.ExitSchemaError, "Schema Error"},
		{cmdtypes.ExitGraphError, "Graph Error"},
		{cmdtypes.ExitIntegrityError, "Integrity Mismatch"},
		{cmdtypes.ExitNotFound, "Not Found"},
		{cmdtypes.ExitBuildError, "Build Failure"},
		{cmdtypes.ExitCacheCorruption, "Cache Corruption"},
		{42, "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeName(tt.code))
		})
	}
}

func TestRootRegistersCommands(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"init", "build", "eval", "plan", "diff", "session", "options", "history", "cache", "config", "version"} {
		c, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Name())
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("cache-dir"))
	assert.NotNil(t, root.PersistentFlags().Lookup("metrics-file"))
}

func TestVersionCmd(t *testing.T) {
	newProject(t)

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "strata version")
	assert.Contains(t, out, "CUE SDK")
}

func TestEvalCmd(t *testing.T) {
	p := newProject(t)

	out, err := run(t, "eval", "-m", p.path("base.yaml"), "-m", p.path("host.yaml"), "-o", "json")
	require.NoError(t, err)

	var tree map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &tree))
	greeter := tree["greeter"].(map[string]any)
	font := greeter["font"].(map[string]any)
	assert.Equal(t, "Hack", font["family"])
	assert.Equal(t, "kiosk", tree["system"].(map[string]any)["hostname"])
}

func TestEvalCmdExplain(t *testing.T) {
	p := newProject(t)

	out, err := run(t, "eval", "-m", p.path("base.yaml"), "-m", p.path("host.yaml"), "--explain")
	require.NoError(t, err)
	assert.Contains(t, out, "greeter.font.family")
	assert.Contains(t, out, "shadowed")
	assert.Contains(t, out, "Terminus")
}

func TestEvalCmdConflict(t *testing.T) {
	p := newProject(t)
	other := testutil.WriteFile(t, p.dir, "other.yaml", "system.hostname: desk\n")

	_, err := run(t, "eval", "-m", p.path("host.yaml"), "-m", other)
	require.Error(t, err)
	assert.Equal(t, cmdtypes.ExitSchemaError, exitCode(t, err))
}

func TestEvalCmdInvalidFormat(t *testing.T) {
	p := newProject(t)

	_, err := run(t, "eval", "-m", p.path("base.yaml"), "-o", "table")
	require.Error(t, err)
	assert.Equal(t, cmdtypes.ExitGeneralError, exitCode(t, err))
}

func TestBuildCmd(t *testing.T) {
	p := newProject(t)
	link := p.path("result")

	out, err := run(t, append([]string{"build", "image", "--out-link", link}, p.inputs()...)...)
	require.NoError(t, err)

	artifact := strings.TrimSpace(out)
	assert.DirExists(t, artifact)
	target, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, artifact, target)
	assert.Equal(t, "dark\n", testutil.ReadFile(t, filepath.Join(link, "theme", "theme.conf")))
}

func TestBuildCmdUnknownOutput(t *testing.T) {
	p := newProject(t)

	_, err := run(t, append([]string{"build", "kernel"}, p.inputs()...)...)
	require.Error(t, err)
	assert.Equal(t, cmdtypes.ExitNotFound, exitCode(t, err))
}

func TestBuildCmdStepFailure(t *testing.T) {
	p := newProject(t)
	testutil.WriteFile(t, p.dir, "recipes.yaml", `
recipes:
  - name: image
    steps: ['exit 3']
`)

	_, err := run(t, append([]string{"build", "image"}, p.inputs()...)...)
	require.Error(t, err)
	assert.Equal(t, cmdtypes.ExitBuildError, exitCode(t, err))
}

func TestBuildCmdWritesMetrics(t *testing.T) {
	p := newProject(t)
	metrics := p.path("strata.prom")

	_, err := run(t, append([]string{"build", "image", "--metrics-file", metrics}, p.inputs()...)...)
	require.NoError(t, err)

	assert.Contains(t, testutil.ReadFile(t, metrics), "strata_builds_total")
}

func TestPlanCmd(t *testing.T) {
	p := newProject(t)

	planned := func() []PlanEntry {
		out, err := run(t, append([]string{"plan", "-o", "json"}, p.inputs()...)...)
		require.NoError(t, err)
		var entries []PlanEntry
		require.NoError(t, json.Unmarshal([]byte(out), &entries))
		return entries
	}

	before := planned()
	require.Len(t, before, 3)
	assert.Equal(t, "image", before[2].Recipe)
	assert.Equal(t, []string{"binary", "theme"}, before[2].Deps)
	for _, e := range before {
		assert.Equal(t, planBuild, e.Status, e.Recipe)
		assert.Len(t, e.Key, 64)
	}

	_, err := run(t, append([]string{"build", "image"}, p.inputs()...)...)
	require.NoError(t, err)

	for _, e := range planned() {
		assert.Equal(t, planCached, e.Status, e.Recipe)
	}
}

func TestPlanCmdTable(t *testing.T) {
	p := newProject(t)

	out, err := run(t, append([]string{"plan", "image"}, p.inputs()...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "RECIPE")
	assert.Contains(t, out, "theme")
}

func TestDiffCmd(t *testing.T) {
	p := newProject(t)

	out, err := run(t, "diff", "-m", p.path("base.yaml"), "--against", p.path("base.yaml"), "--against", p.path("host.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "greeter.font.family")
	assert.Contains(t, out, "Hack")
}

func TestDiffCmdIdentical(t *testing.T) {
	p := newProject(t)

	out, err := run(t, "diff", "-m", p.path("base.yaml"), "--against", p.path("base.yaml"))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSessionCmd(t *testing.T) {
	p := newProject(t)

	out, err := run(t, append([]string{"session"}, p.inputs()...)...)
	require.NoError(t, err)

	var handoff struct {
		Target string   `json:"target"`
		Exec   string   `json:"exec"`
		Args   []string `json:"args"`
		Env    []string `json:"env"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &handoff))
	assert.Equal(t, "shell", handoff.Target)
	assert.Equal(t, "/bin/sh", handoff.Exec)
	assert.Equal(t, []string{"-l"}, handoff.Args)
	assert.Contains(t, handoff.Env, "STRATA_SESSION=shell")
}

func TestOptionsCmd(t *testing.T) {
	p := newProject(t)
	schema := testutil.WriteFile(t, p.dir, "kiosk.yaml", "options:\n  kiosk.url:\n    type: string\n")

	out, err := run(t, "options", "--schema", schema, "-o", "json")
	require.NoError(t, err)

	var infos []OptionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	byPath := make(map[string]OptionInfo, len(infos))
	for _, o := range infos {
		byPath[o.Path] = o
	}
	assert.Equal(t, "map<recipe>", byPath["outputs"].Type)
	assert.True(t, byPath["kiosk.url"].Required)
	assert.False(t, byPath["session.target"].Required)
}

func TestInitCmd(t *testing.T) {
	p := newProject(t)
	dir := p.path("kiosk")

	out, err := run(t, "init", dir, "--template", "minimal")
	require.NoError(t, err)
	assert.Contains(t, out, "minimal template")
	assert.Contains(t, out, filepath.Join(dir, "strata.yaml"))
	assert.FileExists(t, filepath.Join(dir, "recipes.yaml"))

	_, err = run(t, "init", dir)
	assert.Error(t, err)
}
