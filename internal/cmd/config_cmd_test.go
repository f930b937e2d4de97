package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opmodel/strata/internal/cmdtypes"
	"github.com/opmodel/strata/internal/testutil"
)

func TestConfigInitCmd(t *testing.T) {
	p := newProject(t)
	path := p.path("config.yaml")

	out, err := run(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, path)

	content := testutil.ReadFile(t, path)
	assert.Contains(t, content, "# strata CLI configuration")
	assert.Contains(t, content, "hash: sha256")

	_, err = run(t, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration already exists")

	_, err = run(t, "config", "init", "--force")
	assert.NoError(t, err)
}

func TestConfigVetCmd(t *testing.T) {
	p := newProject(t)

	_, err := run(t, "config", "vet")
	require.Error(t, err)
	assert.Equal(t, cmdtypes.ExitNotFound, exitCode(t, err))

	testutil.WriteFile(t, p.dir, "config.yaml", "workers: 4\nhash: blake3\n")
	out, err := run(t, "config", "vet")
	require.NoError(t, err)
	assert.Contains(t, out, "Config file is valid")

	testutil.WriteFile(t, p.dir, "config.yaml", "hash: md5\n")
	_, err = run(t, "config", "vet")
	require.Error(t, err)
	assert.Equal(t, cmdtypes.ExitSchemaError, exitCode(t, err))
}

func TestConfigShowCmd(t *testing.T) {
	p := newProject(t)
	testutil.WriteFile(t, p.dir, "config.yaml", "workers: 3\n")
	t.Setenv("STRATA_HASH", "blake3")

	out, err := run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "workers: 3")
	assert.Contains(t, out, "hash: blake3")

	out, err = run(t, "config", "show", "--sources", "--workers", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "flag")
	assert.Contains(t, out, "env")
}

func TestBrokenConfigOnlyFailsCommandsThatNeedIt(t *testing.T) {
	p := newProject(t)
	testutil.WriteFile(t, p.dir, "config.yaml", "workers: many\n")

	_, err := run(t, "eval", "-m", p.path("base.yaml"))
	require.Error(t, err)
	assert.Equal(t, cmdtypes.ExitGeneralError, exitCode(t, err))

	_, err = run(t, "config", "init", "--force")
	assert.NoError(t, err)
}
