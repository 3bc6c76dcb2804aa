package vault

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// maxReaders bounds the weighted semaphore used to emulate an RWMutex with
// context-aware (optionally timed-out) acquisition — §5 "Lock acquisition
// may optionally time out; on timeout the operation reports a transient
// error and leaves state unchanged."
const maxReaders = 1 << 30

// ctxRWMutex is a reader/writer lock whose acquisition can be bounded by a
// context deadline, unlike sync.RWMutex. A write holds all maxReaders
// weight; a read holds one unit — the standard semaphore encoding of an
// RWMutex.
type ctxRWMutex struct {
	sem *semaphore.Weighted
}

func newCtxRWMutex() *ctxRWMutex {
	return &ctxRWMutex{sem: semaphore.NewWeighted(maxReaders)}
}

// lock acquires the lock for writing. ctx == nil means block indefinitely.
func (m *ctxRWMutex) lock(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := m.sem.Acquire(ctx, maxReaders); err != nil {
		return wrapErr(Transient, err, "timed out acquiring write lock")
	}
	return nil
}

func (m *ctxRWMutex) unlock() {
	m.sem.Release(maxReaders)
}

// rlock acquires the lock for reading.
func (m *ctxRWMutex) rlock(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return wrapErr(Transient, err, "timed out acquiring read lock")
	}
	return nil
}

func (m *ctxRWMutex) runlock() {
	m.sem.Release(1)
}
