package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_Serializes(t *testing.T) {
	l := New(t.TempDir())

	var (
		wg      sync.WaitGroup
		active  int32
		maxSeen int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Acquire(context.Background(), "postgres://db/app")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen)
}

func TestAcquire_IndependentKeys(t *testing.T) {
	l := New(t.TempDir())

	unlockA, err := l.Acquire(context.Background(), "postgres://db/a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := l.Acquire(ctx, "postgres://db/b")
	require.NoError(t, err)
	unlockB()
}

func TestAcquire_ContextCanceledWhileHeld(t *testing.T) {
	l := New(t.TempDir())

	unlock, err := l.Acquire(context.Background(), "mysql://db/app")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "mysql://db/app")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // releasing twice is harmless

	again, err := l.Acquire(context.Background(), "mysql://db/app")
	require.NoError(t, err)
	again()
}

func TestAcquire_HeldByAnotherProcess(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)

	// a separate flock handle behaves like another process holding the file
	other := flock.New(l.Path("postgres://db/app"))
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "postgres://db/app")
	assert.Error(t, err)

	require.NoError(t, other.Unlock())
	unlock, err := l.Acquire(context.Background(), "postgres://db/app")
	require.NoError(t, err)
	unlock()
}
