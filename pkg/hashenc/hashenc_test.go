package hashenc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumEmptySHA256(t *testing.T) {
	d := Sum(SHA256, nil)
	assert.Equal(t, "sha256-47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU=", d.String())
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", d.Hex())
}

func TestParseBothForms(t *testing.T) {
	d := Sum(SHA256, []byte("theme"))

	fromSRI, err := Parse(d.String())
	require.NoError(t, err)
	assert.True(t, d.Equal(fromSRI))

	fromHex, err := Parse("sha256:" + d.Hex())
	require.NoError(t, err)
	assert.True(t, d.Equal(fromHex))
}

func TestParseBLAKE3(t *testing.T) {
	d := Sum(BLAKE3, []byte("binary"))
	assert.True(t, strings.HasPrefix(d.String(), "blake3-"))

	parsed, err := Parse(d.String())
	require.NoError(t, err)
	assert.True(t, d.Equal(parsed))
	assert.False(t, d.Equal(Sum(SHA256, []byte("binary"))))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "no label", input: "abcdef"},
		{name: "unknown algorithm", input: "md5-AAAA"},
		{name: "bad base64", input: "sha256-???"},
		{name: "bad hex", input: "sha256:zz"},
		{name: "short digest", input: "sha256:abcd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, SHA256, a)

	a, err = ParseAlgorithm("BLAKE3")
	require.NoError(t, err)
	assert.Equal(t, BLAKE3, a)

	_, err = ParseAlgorithm("sha1")
	assert.Error(t, err)
}
