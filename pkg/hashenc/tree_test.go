package hashenc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "share", "fonts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "share", "fonts", "mono.ttf"), []byte("glyphs"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bin", "greeter"), []byte("#!/bin/sh\n"), 0o755))
}

func TestHashTreeIndependentOfLocationAndTime(t *testing.T) {
	a := filepath.Join(t.TempDir(), "a")
	b := filepath.Join(t.TempDir(), "elsewhere", "b")
	writeTree(t, a)
	writeTree(t, b)

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(b, "bin", "greeter"), past, past))

	ha, err := HashTree(SHA256, a)
	require.NoError(t, err)
	hb, err := HashTree(SHA256, b)
	require.NoError(t, err)
	assert.True(t, ha.Equal(hb))
}

func TestHashTreeDetectsChanges(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root)
	base, err := HashTree(SHA256, root)
	require.NoError(t, err)

	require.NoError(t, os.Chmod(filepath.Join(root, "bin", "greeter"), 0o644))
	noExec, err := HashTree(SHA256, root)
	require.NoError(t, err)
	assert.False(t, base.Equal(noExec), "executable bit must contribute")

	require.NoError(t, os.WriteFile(filepath.Join(root, "share", "fonts", "mono.ttf"), []byte("glyph"), 0o644))
	changed, err := HashTree(SHA256, root)
	require.NoError(t, err)
	assert.False(t, noExec.Equal(changed))

	require.NoError(t, os.Symlink("bin/greeter", filepath.Join(root, "greeter")))
	linked, err := HashTree(SHA256, root)
	require.NoError(t, err)
	assert.False(t, changed.Equal(linked))
}

func TestHashTreeSingleFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(p, []byte("binary"), 0o644))

	d, err := HashTree(BLAKE3, p)
	require.NoError(t, err)
	assert.Equal(t, BLAKE3, d.Algorithm)

	_, err = HashTree(SHA256, filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestHashFieldsUnambiguous(t *testing.T) {
	a := HashFields(SHA256, []byte("ab"), []byte("c"))
	b := HashFields(SHA256, []byte("a"), []byte("bc"))
	assert.False(t, a.Equal(b))
}
