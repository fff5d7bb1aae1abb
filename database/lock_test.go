package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockCoordinator_readersDontBlockEachOther(t *testing.T) {
	c := newLockCoordinator()
	var h1, h2 handleLocks

	require.NoError(t, c.Lock(context.Background(), &h1, LockRead, WaitForever))
	require.NoError(t, c.Lock(context.Background(), &h2, LockRead, WaitForever))

	c.Unlock(&h1, LockRead)
	c.Unlock(&h2, LockRead)
}

func TestLockCoordinator_writerExcludesReaders(t *testing.T) {
	c := newLockCoordinator()
	var writer, reader handleLocks

	require.NoError(t, c.Lock(context.Background(), &writer, LockReadWrite, WaitForever))

	acquired := make(chan struct{})
	go func() {
		_ = c.Lock(context.Background(), &reader, LockRead, WaitForever)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("reader acquired the lock while a writer still holds it")
	case <-time.After(50 * time.Millisecond):
	}

	c.Unlock(&writer, LockReadWrite)

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("reader never acquired the lock after the writer released it")
	}

	c.Unlock(&reader, LockRead)
}

func TestLockCoordinator_reentrantWriteLockForSameHandle(t *testing.T) {
	c := newLockCoordinator()
	var h handleLocks

	require.NoError(t, c.Lock(context.Background(), &h, LockReadWrite, WaitForever))
	// The same handle re-acquiring ReadWrite (e.g. a transaction nested
	// inside an already-held write lock) must not deadlock against itself.
	require.NoError(t, c.Lock(context.Background(), &h, LockReadWrite, WaitForever))

	c.Unlock(&h, LockReadWrite)
	c.Unlock(&h, LockReadWrite)
}

func TestLockCoordinator_timeout(t *testing.T) {
	c := newLockCoordinator()
	var writer, reader handleLocks

	require.NoError(t, c.Lock(context.Background(), &writer, LockReadWrite, WaitForever))

	err := c.Lock(context.Background(), &reader, LockReadWrite, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)

	c.Unlock(&writer, LockReadWrite)
}

func TestLockCoordinator_contextCancellation(t *testing.T) {
	c := newLockCoordinator()
	var writer, second handleLocks

	require.NoError(t, c.Lock(context.Background(), &writer, LockReadWrite, WaitForever))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Lock(ctx, &second, LockReadWrite, WaitForever)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrInterrupted)
	case <-time.After(time.Second):
		t.Fatal("Lock never returned after its context was cancelled")
	}

	c.Unlock(&writer, LockReadWrite)
}

func TestLockCoordinator_transactionCountsAsWriteLock(t *testing.T) {
	c := newLockCoordinator()
	var tx, reader handleLocks

	require.NoError(t, c.Lock(context.Background(), &tx, LockTransaction, WaitForever))

	readAcquired := make(chan struct{})
	go func() {
		_ = c.Lock(context.Background(), &reader, LockRead, WaitForever)
		close(readAcquired)
	}()

	select {
	case <-readAcquired:
		t.Fatal("a read lock was granted while a transaction held the write lock")
	case <-time.After(50 * time.Millisecond):
	}

	c.Unlock(&tx, LockTransaction)

	select {
	case <-readAcquired:
	case <-time.After(time.Second):
		t.Fatal("reader never unblocked after the transaction committed")
	}
	c.Unlock(&reader, LockRead)
}

func TestLockCoordinator_manyReadersOneWriterFairness(t *testing.T) {
	c := newLockCoordinator()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var h handleLocks
			require.NoError(t, c.Lock(context.Background(), &h, LockRead, WaitForever))
			time.Sleep(time.Millisecond)
			c.Unlock(&h, LockRead)
		}()
	}

	var writer handleLocks
	require.NoError(t, c.Lock(context.Background(), &writer, LockReadWrite, WaitForever))
	c.Unlock(&writer, LockReadWrite)

	wg.Wait()
}

func TestLockCoordinator_hasWaiters(t *testing.T) {
	c := newLockCoordinator()
	var writer, contender handleLocks

	assert.False(t, c.hasWaiters(), "a fresh coordinator has no waiters")

	require.NoError(t, c.Lock(context.Background(), &writer, LockReadWrite, WaitForever))
	assert.False(t, c.hasWaiters(), "holding the only lock is not waiting on it")

	blocked := make(chan struct{})
	go func() {
		_ = c.Lock(context.Background(), &contender, LockReadWrite, WaitForever)
		close(blocked)
	}()

	assert.Eventually(t, c.hasWaiters, time.Second, time.Millisecond,
		"a second writer blocked behind the held write lock must be reported as a waiter")

	c.Unlock(&writer, LockReadWrite)

	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("contender never acquired the lock after it was released")
	}
	c.Unlock(&contender, LockReadWrite)

	assert.False(t, c.hasWaiters(), "no one is waiting once the contender has acquired and released")
}
