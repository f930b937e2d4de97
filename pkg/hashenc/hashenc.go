// Package hashenc provides the labeled content-hash encoding used for
// recipe keys and artifact hashes.
//
// The canonical form is SRI style, "<alg>-<base64>", for example
// "sha256-47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU=". Parse also accepts the
// digest form "<alg>:<hex>".
package hashenc

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/zeebo/blake3"
)

// Algorithm names a supported digest.
type Algorithm string

const (
	// SHA256 is the default algorithm.
	SHA256 Algorithm = "sha256"

	// BLAKE3 is the 256-bit BLAKE3 hash.
	BLAKE3 Algorithm = "blake3"
)

// ParseAlgorithm validates an algorithm name. Empty selects SHA256.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(s)) {
	case "", SHA256:
		return SHA256, nil
	case BLAKE3:
		return BLAKE3, nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm %q (valid: sha256, blake3)", s)
	}
}

// New returns a fresh hasher for the algorithm.
func (a Algorithm) New() hash.Hash {
	if a == BLAKE3 {
		return blake3.New()
	}
	return sha256.New()
}

// Digest is an algorithm-labeled hash value.
type Digest struct {
	Algorithm Algorithm
	Sum       []byte
}

// Sum hashes data with the algorithm.
func Sum(alg Algorithm, data []byte) Digest {
	h := alg.New()
	h.Write(data)
	return Digest{Algorithm: alg, Sum: h.Sum(nil)}
}

// FromHash finalizes h into a Digest labeled with alg.
func FromHash(alg Algorithm, h hash.Hash) Digest {
	return Digest{Algorithm: alg, Sum: h.Sum(nil)}
}

// String returns the canonical SRI form.
func (d Digest) String() string {
	if len(d.Sum) == 0 {
		return ""
	}
	return string(d.Algorithm) + "-" + base64.StdEncoding.EncodeToString(d.Sum)
}

// Hex returns the lowercase hex encoding of the sum.
func (d Digest) Hex() string {
	return hex.EncodeToString(d.Sum)
}

// IsZero reports whether the digest is unset.
func (d Digest) IsZero() bool {
	return len(d.Sum) == 0
}

// Equal compares algorithm and sum.
func (d Digest) Equal(o Digest) bool {
	return d.Algorithm == o.Algorithm && bytes.Equal(d.Sum, o.Sum)
}

// Parse decodes "<alg>-<base64>" or "<alg>:<hex>".
func Parse(s string) (Digest, error) {
	s = strings.TrimSpace(s)
	if alg, rest, ok := strings.Cut(s, ":"); ok {
		a, err := parseLabel(alg)
		if err != nil {
			return Digest{}, err
		}
		sum, err := hex.DecodeString(rest)
		if err != nil {
			return Digest{}, fmt.Errorf("parsing hash %q: %w", s, err)
		}
		return checkSize(Digest{Algorithm: a, Sum: sum}, s)
	}
	if alg, rest, ok := strings.Cut(s, "-"); ok {
		a, err := parseLabel(alg)
		if err != nil {
			return Digest{}, err
		}
		sum, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return Digest{}, fmt.Errorf("parsing hash %q: %w", s, err)
		}
		return checkSize(Digest{Algorithm: a, Sum: sum}, s)
	}
	return Digest{}, fmt.Errorf("parsing hash %q: missing algorithm label", s)
}

func parseLabel(label string) (Algorithm, error) {
	if label == "" {
		return "", fmt.Errorf("empty hash algorithm label")
	}
	return ParseAlgorithm(label)
}

func checkSize(d Digest, s string) (Digest, error) {
	if want := d.Algorithm.New().Size(); len(d.Sum) != want {
		return Digest{}, fmt.Errorf("parsing hash %q: %s digest must be %d bytes, got %d", s, d.Algorithm, want, len(d.Sum))
	}
	return d, nil
}
