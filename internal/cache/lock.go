package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// lockPollInterval is how often a blocked writer retries the lock.
const lockPollInterval = 20 * time.Millisecond

// Lock is a held per-key writer lock.
type Lock struct {
	path string
	f    *os.File
}

// Lock acquires the writer lock for key, waiting until it is free or ctx is
// done. Locks are advisory and only exclude other writers.
func (c *Cache) Lock(ctx context.Context, key string) (*Lock, error) {
	path := filepath.Join(c.dir, "locks", key+".lock")
	for {
		f, ok, err := tryLock(path)
		if err != nil {
			return nil, fmt.Errorf("locking %s: %w", key, err)
		}
		if ok {
			return &Lock{path: path, f: f}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// Unlock releases the lock.
func (l *Lock) Unlock() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := unlock(l.path, l.f)
	l.f = nil
	return err
}
