// Package lock serializes dump and restore operations per target database,
// both between goroutines and between processes sharing a lock directory.
package lock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const retryDelay = 250 * time.Millisecond

// Locker hands out exclusive locks keyed by target.
type Locker struct {
	dir string

	mu    sync.Mutex
	slots map[string]chan struct{}
}

// New returns a Locker that keeps its lock files in dir.
func New(dir string) *Locker {
	return &Locker{dir: dir, slots: make(map[string]chan struct{})}
}

func (l *Locker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Path returns the lock file used for key.
func (l *Locker) Path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(l.dir, ".backupctl-"+hex.EncodeToString(sum[:8])+".lock")
}

// Acquire blocks until the lock for key is held or ctx is done. The returned
// function releases it.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("wait for lock on %s: %w", key, err)
	}
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for lock on %s: %w", key, ctx.Err())
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		<-ch
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fileLock := flock.New(l.Path(key))
	locked, err := fileLock.TryLockContext(ctx, retryDelay)
	if err != nil || !locked {
		<-ch
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("lock file %s for %s: %w", fileLock.Path(), key, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = fileLock.Unlock()
			<-ch
		})
	}, nil
}
