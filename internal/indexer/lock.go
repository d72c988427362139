package indexer

import "sync/atomic"

// IndexLock provides non-blocking lock semantics using atomic operations.
// A full index of a project holds its lock for the whole run.
type IndexLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
// Returns true if the lock was successfully acquired, false otherwise.
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// lockFor returns the lock of a project, creating it on first use
func (idx *Indexer) lockFor(projectID string) *IndexLock {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	lock, ok := idx.locks[projectID]
	if !ok {
		lock = &IndexLock{}
		idx.locks[projectID] = lock
	}
	return lock
}
