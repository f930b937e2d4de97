// Package history records the generations an out-link has pointed at.
//
// Each link gets one log under <cache>/history, keyed by its absolute path.
// The log keeps an index of generation IDs, newest first, and the
// generation records themselves. Re-exporting an artifact the link already
// pointed at moves that generation to the front instead of adding a new one.
package history

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	oerrors "github.com/opmodel/strata/internal/errors"
	"github.com/opmodel/strata/internal/fsutil"
	"github.com/opmodel/strata/internal/output"
	"github.com/opmodel/strata/pkg/codec"
	"github.com/opmodel/strata/pkg/hashenc"
)

// DefaultMaxGenerations bounds a log when the caller passes no limit.
const DefaultMaxGenerations = 10

// Generation is one artifact a link pointed at.
type Generation struct {
	ID      string `cbor:"id"`
	Output  string `cbor:"output"`
	Recipe  string `cbor:"recipe"`
	Hash    string `cbor:"hash"`
	Path    string `cbor:"path"`
	RunID   string `cbor:"run,omitempty"`
	Created int64  `cbor:"created"`
}

// CreatedAt returns Created as a time.
func (g *Generation) CreatedAt() time.Time {
	return time.Unix(g.Created, 0)
}

// Missing reports whether the artifact is gone from disk.
func (g *Generation) Missing() bool {
	_, err := os.Stat(g.Path)
	return errors.Is(err, fs.ErrNotExist)
}

// Log is the history of one link.
type Log struct {
	Link        string                 `cbor:"link"`
	Index       []string               `cbor:"index"`
	Generations map[string]*Generation `cbor:"generations"`
}

// Current returns the newest generation, or nil for an empty log.
func (l *Log) Current() *Generation {
	if len(l.Index) == 0 {
		return nil
	}
	return l.Generations[l.Index[0]]
}

// List returns generations newest first.
func (l *Log) List() []*Generation {
	out := make([]*Generation, 0, len(l.Index))
	for _, id := range l.Index {
		if g, ok := l.Generations[id]; ok {
			out = append(out, g)
		}
	}
	return out
}

// GenerationID derives a stable ID from the output name and artifact hash,
// so the same artifact exported under the same name maps to one generation.
func GenerationID(outputName, hash string) string {
	d := hashenc.HashFields(hashenc.SHA256, []byte(outputName), []byte(hash))
	return "gen-" + d.Hex()[:8]
}

// MoveToFront puts id at the head of index, dropping any earlier
// occurrence. The input slice is not modified.
func MoveToFront(index []string, id string) []string {
	out := make([]string, 0, len(index)+1)
	out = append(out, id)
	for _, existing := range index {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

// Prune drops the oldest generations beyond keep. A keep of zero or less
// keeps everything.
func (l *Log) Prune(keep int) []*Generation {
	if keep <= 0 || len(l.Index) <= keep {
		return nil
	}
	var dropped []*Generation
	for _, id := range l.Index[keep:] {
		if g, ok := l.Generations[id]; ok {
			dropped = append(dropped, g)
		}
		delete(l.Generations, id)
	}
	l.Index = l.Index[:keep]
	return dropped
}

// Store reads and writes link logs.
type Store struct {
	dir string

	// MaxGenerations bounds each log on Record.
	MaxGenerations int
}

// Open prepares the history directory under the cache directory.
func Open(cacheDir string) (*Store, error) {
	dir := filepath.Join(cacheDir, "history")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	return &Store{dir: dir, MaxGenerations: DefaultMaxGenerations}, nil
}

func (s *Store) logPath(link string) string {
	d := hashenc.Sum(hashenc.SHA256, []byte(link))
	return filepath.Join(s.dir, d.Hex()[:16]+".cbor")
}

// Get loads the log for link. A link with no history yields an empty log.
func (s *Store) Get(link string) (*Log, error) {
	abs, err := filepath.Abs(link)
	if err != nil {
		return nil, err
	}
	path := s.logPath(abs)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Log{Link: abs, Generations: map[string]*Generation{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history for %s: %w", abs, err)
	}

	var l Log
	if err := codec.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("%w: history %s: %v", oerrors.ErrCacheCorruption, path, err)
	}
	if l.Link != abs {
		return nil, fmt.Errorf("%w: history %s belongs to %s", oerrors.ErrCacheCorruption, path, l.Link)
	}
	if l.Generations == nil {
		l.Generations = map[string]*Generation{}
	}
	return &l, nil
}

// Put writes the log.
func (s *Store) Put(l *Log) error {
	data, err := codec.Marshal(l)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	return fsutil.WriteFileAtomic(s.logPath(l.Link), data, 0o644)
}

// Record adds g as the newest generation of link and prunes the log.
func (s *Store) Record(link string, g Generation) (*Log, error) {
	l, err := s.Get(link)
	if err != nil {
		return nil, err
	}
	if g.ID == "" {
		g.ID = GenerationID(g.Output, g.Hash)
	}
	if g.Created == 0 {
		g.Created = time.Now().Unix()
	}
	l.Generations[g.ID] = &g
	l.Index = MoveToFront(l.Index, g.ID)
	for _, d := range l.Prune(s.MaxGenerations) {
		output.Debug("pruned generation", "link", l.Link, "generation", d.ID)
	}
	if err := s.Put(l); err != nil {
		return nil, err
	}
	return l, nil
}

// Find returns the generation with the given ID.
func (l *Log) Find(id string) (*Generation, error) {
	g, ok := l.Generations[id]
	if !ok {
		return nil, oerrors.NewNotFoundError(fmt.Sprintf("generation %s not found", id), l.Link, "run 'strata history' to list generations")
	}
	return g, nil
}
