// Package cache is the durable build cache: recipe key to verified entry.
//
// Layout under the cache directory:
//
//	entries/<kk>/<key>.cbor   entry metadata, write-once
//	store/<key>-<name>        artifact
//	locks/<key>.lock          per-key writer lock
//
// Readers never take the lock. Writers serialize per key across processes
// and re-check for an entry after acquiring it.
package cache

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	oerrors "github.com/opmodel/strata/internal/errors"
	"github.com/opmodel/strata/internal/fsutil"
	"github.com/opmodel/strata/internal/output"
	"github.com/opmodel/strata/pkg/codec"
	"github.com/opmodel/strata/pkg/hashenc"
)

// Entry records one verified build. Entries are never mutated.
type Entry struct {
	Key     string   `cbor:"key"`
	Name    string   `cbor:"name"`
	Hash    string   `cbor:"hash"`
	DepKeys []string `cbor:"deps"`

	// Aggregate marks an artifact made of links to its dependencies.
	Aggregate bool `cbor:"aggregate,omitempty"`

	// Created is the unix time the entry was written.
	Created int64 `cbor:"created"`
}

// CreatedAt returns Created as a time.
func (e Entry) CreatedAt() time.Time {
	return time.Unix(e.Created, 0)
}

// Cache is an on-disk build cache. Safe for concurrent use.
type Cache struct {
	dir string

	mu    sync.RWMutex
	index map[string]Entry
}

// Open prepares the cache directory and loads the entry index.
// Unreadable entry files are skipped with a warning.
func Open(dir string) (*Cache, error) {
	for _, sub := range []string{"entries", "store", "locks"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	c := &Cache{dir: dir, index: make(map[string]Entry)}
	if err := c.load(); err != nil {
		return nil, err
	}
	output.Debug("opened build cache", "dir", dir, "entries", len(c.index))
	return c, nil
}

func (c *Cache) load() error {
	root := filepath.Join(c.dir, "entries")
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".cbor" {
			return nil
		}
		e, err := readEntry(path)
		if err != nil {
			output.Warn("skipping unreadable cache entry", "path", path, "err", err)
			return nil
		}
		c.index[e.Key] = e
		return nil
	})
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

func (c *Cache) entryPath(key string) string {
	if len(key) < 2 {
		return filepath.Join(c.dir, "entries", key+".cbor")
	}
	return filepath.Join(c.dir, "entries", key[:2], key+".cbor")
}

// ArtifactPath returns where the artifact for key lives.
func (c *Cache) ArtifactPath(key, name string) string {
	return filepath.Join(c.dir, "store", key+"-"+name)
}

// Get returns the entry for key. An entry whose artifact no longer exists
// is a miss. Entries written by other processes since Open are picked up.
func (c *Cache) Get(key string) (Entry, bool) {
	e, ok := c.lookup(key)
	if !ok {
		return Entry{}, false
	}
	if _, err := os.Lstat(c.ArtifactPath(e.Key, e.Name)); err != nil {
		output.Debug("cache entry without artifact", "key", key, "name", e.Name)
		return Entry{}, false
	}
	return e, true
}

// Pinned returns the recorded entry for key even when its artifact is gone.
// The recorded hash stays the expectation for a rebuild.
func (c *Cache) Pinned(key string) (Entry, bool) {
	return c.lookup(key)
}

func (c *Cache) lookup(key string) (Entry, bool) {
	c.mu.RLock()
	e, ok := c.index[key]
	c.mu.RUnlock()
	if ok {
		return e, true
	}

	e, err := readEntry(c.entryPath(key))
	if err != nil {
		return Entry{}, false
	}
	c.mu.Lock()
	c.index[key] = e
	c.mu.Unlock()
	return e, true
}

// Put records an entry. An existing entry with the same content makes Put a
// no-op; different content is CacheCorruption and nothing is overwritten.
// When e is hashed with another algorithm than the existing entry, the
// committed artifact is rehashed with the existing entry's algorithm.
func (c *Cache) Put(e Entry) error {
	if existing, ok := c.lookup(e.Key); ok {
		same, err := c.sameContent(existing, e)
		if err != nil {
			return err
		}
		if same {
			return nil
		}
		return &oerrors.RecipeError{
			Kind:     oerrors.ErrCacheCorruption,
			Recipe:   e.Name,
			Key:      e.Key,
			Expected: existing.Hash,
			Actual:   e.Hash,
		}
	}

	if e.Created == 0 {
		e.Created = time.Now().Unix()
	}
	data, err := codec.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding cache entry %s: %w", e.Key, err)
	}

	path := c.entryPath(e.Key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("writing cache entry %s: %w", e.Key, err)
	}

	c.mu.Lock()
	c.index[e.Key] = e
	c.mu.Unlock()
	return nil
}

func (c *Cache) sameContent(existing, e Entry) (bool, error) {
	if existing.Hash == e.Hash {
		return true, nil
	}
	recorded, err := hashenc.Parse(existing.Hash)
	if err != nil {
		return false, &oerrors.RecipeError{Kind: oerrors.ErrCacheCorruption, Recipe: e.Name, Key: e.Key, Detail: "recorded hash unreadable", Cause: err}
	}
	return c.Matches(e, recorded)
}

// Matches reports whether e's artifact has the digest want. A digest in
// the recorded algorithm is compared directly; any other algorithm is
// checked by rehashing the artifact.
func (c *Cache) Matches(e Entry, want hashenc.Digest) (bool, error) {
	recorded, err := hashenc.Parse(e.Hash)
	if err != nil {
		return false, &oerrors.RecipeError{Kind: oerrors.ErrCacheCorruption, Recipe: e.Name, Key: e.Key, Detail: "recorded hash unreadable", Cause: err}
	}
	if recorded.Algorithm == want.Algorithm {
		return recorded.Equal(want), nil
	}
	actual, err := c.rehash(e, want.Algorithm)
	if err != nil {
		return false, &oerrors.RecipeError{Kind: oerrors.ErrCacheCorruption, Recipe: e.Name, Key: e.Key, Detail: "rehashing artifact", Cause: err}
	}
	return actual.Equal(want), nil
}

func (c *Cache) rehash(e Entry, alg hashenc.Algorithm) (hashenc.Digest, error) {
	path := c.ArtifactPath(e.Key, e.Name)
	if e.Aggregate {
		return c.aggregateHash(alg, e, path)
	}
	return hashenc.HashTree(alg, path)
}

// Entries returns every indexed entry, sorted by name then key.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	out := make([]Entry, 0, len(c.index))
	for _, e := range c.index {
		out = append(out, e)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Verify rehashes an entry's artifact and compares it with the recorded
// hash. An aggregate is verified against its dependencies' recorded hashes
// and every link must point at the dependency's artifact.
func (c *Cache) Verify(e Entry) error {
	recorded, err := hashenc.Parse(e.Hash)
	if err != nil {
		return &oerrors.RecipeError{Kind: oerrors.ErrCacheCorruption, Recipe: e.Name, Key: e.Key, Detail: "recorded hash unreadable", Cause: err}
	}
	path := c.ArtifactPath(e.Key, e.Name)
	if _, err := os.Lstat(path); err != nil {
		return &oerrors.RecipeError{Kind: oerrors.ErrNotFound, Recipe: e.Name, Key: e.Key, Detail: "artifact missing"}
	}

	actual, err := c.rehash(e, recorded.Algorithm)
	if err != nil {
		return &oerrors.RecipeError{Kind: oerrors.ErrCacheCorruption, Recipe: e.Name, Key: e.Key, Cause: err}
	}
	if !actual.Equal(recorded) {
		return &oerrors.RecipeError{
			Kind:     oerrors.ErrCacheCorruption,
			Recipe:   e.Name,
			Key:      e.Key,
			Expected: e.Hash,
			Actual:   actual.String(),
		}
	}
	return nil
}

func (c *Cache) aggregateHash(alg hashenc.Algorithm, e Entry, dir string) (hashenc.Digest, error) {
	pairs := make([]DepHash, 0, len(e.DepKeys))
	for _, k := range e.DepKeys {
		dep, ok := c.Get(k)
		if !ok {
			return hashenc.Digest{}, fmt.Errorf("dependency %s has no cached artifact", k)
		}
		link := filepath.Join(dir, dep.Name)
		target, err := os.Readlink(link)
		if err != nil {
			return hashenc.Digest{}, err
		}
		if target != c.ArtifactPath(dep.Key, dep.Name) {
			return hashenc.Digest{}, fmt.Errorf("link %s points at %s", dep.Name, target)
		}
		pairs = append(pairs, DepHash{Name: dep.Name, Hash: dep.Hash})
	}
	return AggregateHash(alg, pairs), nil
}

// DepHash pairs a dependency name with its artifact hash.
type DepHash struct {
	Name string
	Hash string
}

// AggregateHash hashes (name, hash) pairs in name order. The store paths the
// links point at never contribute.
func AggregateHash(alg hashenc.Algorithm, pairs []DepHash) hashenc.Digest {
	sorted := append([]DepHash(nil), pairs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	fields := make([][]byte, 0, 2*len(sorted)+1)
	fields = append(fields, []byte("aggregate"))
	for _, p := range sorted {
		fields = append(fields, []byte(p.Name), []byte(p.Hash))
	}
	return hashenc.HashFields(alg, fields...)
}

// Stage creates a private directory inside the store for building an
// artifact; Commit moves it into place. Same filesystem, so the move is a
// rename.
func (c *Cache) Stage(key string) (string, error) {
	dir, err := os.MkdirTemp(filepath.Join(c.dir, "store"), ".tmp-"+key+"-")
	if err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	return dir, nil
}

// Commit moves a staged artifact to its final store path. The caller must
// hold the key's lock. A leftover artifact without an entry is replaced.
func (c *Cache) Commit(staged, key, name string) (string, error) {
	dest := c.ArtifactPath(key, name)
	if _, err := os.Lstat(dest); err == nil {
		if err := os.RemoveAll(dest); err != nil {
			return "", fmt.Errorf("removing stale artifact %s: %w", dest, err)
		}
	}
	if err := os.Rename(staged, dest); err != nil {
		return "", fmt.Errorf("committing artifact %s: %w", dest, err)
	}
	return dest, nil
}

// CleanStaging removes staging directories left by interrupted builds.
func (c *Cache) CleanStaging() error {
	store := filepath.Join(c.dir, "store")
	entries, err := os.ReadDir(store)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			if err := os.RemoveAll(filepath.Join(store, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

func readEntry(path string) (Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	if err := codec.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	if e.Key == "" {
		return Entry{}, fmt.Errorf("decoding %s: entry has no key", path)
	}
	return e, nil
}
