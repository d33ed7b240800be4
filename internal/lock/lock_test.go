package lock_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"santabot/backend/internal/lock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_Exclusive(t *testing.T) {
	l := lock.NewLocalLocker()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Acquire(ctx, "k")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestLocalLocker_KeysIndependent(t *testing.T) {
	l := lock.NewLocalLocker()
	ctx := context.Background()

	unlockA, err := l.Acquire(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := l.Acquire(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestLocalLocker_ContextTimeout(t *testing.T) {
	l := lock.NewLocalLocker()
	unlock, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "k")

	assert.ErrorIs(t, err, lock.ErrNotAcquired)

	unlock()
	unlock() // double unlock is harmless
	again, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	again()
}
