package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opmodel/strata/internal/builder"
	oerrors "github.com/opmodel/strata/internal/errors"
)

type fakeConfig struct {
	strings map[string]string
	maps    map[string]map[string]any
}

func (c fakeConfig) String(path string) string { return c.strings[path] }
func (c fakeConfig) Map(path string) map[string]any { return c.maps[path] }

func config(target, pkg string, targets map[string]any) fakeConfig {
	return fakeConfig{
		strings: map[string]string{TargetOption: target, PackageOption: pkg, LastUserOption: "/var/cache/ndlm/lastuser"},
		maps: map[string]map[string]any{
			TargetsOption:     targets,
			EnvironmentOption: {"XDG_SESSION_TYPE": "wayland", "LANG": "C.UTF-8"},
		},
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		cfg       fakeConfig
		artifacts map[string]builder.Artifact
		wantExec  string
		wantArgs  []string
	}{
		{
			name:     "absolute command",
			cfg:      config("shell", "", map[string]any{"shell": "/bin/sh -l"}),
			wantExec: "/bin/sh",
			wantArgs: []string{"-l"},
		},
		{
			name:      "relative to package",
			cfg:       config("sway", "desktop", map[string]any{"sway": "bin/sway --unsupported-gpu"}),
			artifacts: map[string]builder.Artifact{"desktop": {Name: "desktop", Path: "/cache/store/k-desktop"}},
			wantExec:  "/cache/store/k-desktop/bin/sway",
			wantArgs:  []string{"--unsupported-gpu"},
		},
		{
			name:     "bare name without package",
			cfg:      config("fish", "", map[string]any{"fish": "fish"}),
			wantExec: "fish",
			wantArgs: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Resolve(tt.cfg, tt.artifacts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantExec, h.Exec)
			assert.Equal(t, tt.wantArgs, h.Args)
			assert.Equal(t, []string{"LANG=C.UTF-8", "XDG_SESSION_TYPE=wayland", "STRATA_SESSION=" + h.Target}, h.Env)
			assert.Equal(t, "/var/cache/ndlm/lastuser", h.LastUserPath)
		})
	}
}

func TestResolveErrors(t *testing.T) {
	t.Run("unknown target", func(t *testing.T) {
		_, err := Resolve(config("kde", "", map[string]any{"shell": "/bin/sh"}), nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, oerrors.ErrNotFound))
		assert.Contains(t, err.Error(), "shell")
	})

	t.Run("package not built", func(t *testing.T) {
		_, err := Resolve(config("sway", "desktop", map[string]any{"sway": "bin/sway"}), nil)
		assert.True(t, errors.Is(err, oerrors.ErrNotFound))
	})

	t.Run("relative path without package", func(t *testing.T) {
		_, err := Resolve(config("sway", "", map[string]any{"sway": "bin/sway"}), nil)
		assert.True(t, errors.Is(err, oerrors.ErrValidation))
	})

	t.Run("empty command", func(t *testing.T) {
		_, err := Resolve(config("shell", "", map[string]any{"shell": "  "}), nil)
		assert.True(t, errors.Is(err, oerrors.ErrValidation))
	})
}

func TestJSONLauncher(t *testing.T) {
	var buf bytes.Buffer
	h := Handoff{Target: "shell", Exec: "/bin/sh", Args: []string{"-l"}, Env: []string{"STRATA_SESSION=shell"}}
	require.NoError(t, JSONLauncher{W: &buf}.Launch(context.Background(), h))

	var got Handoff
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, h, got)
}
