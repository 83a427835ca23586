package service

import "sync"

// batchLocks serializes load-mutate-save sequences per batch ID
type batchLocks struct {
	mu    sync.Mutex
	locks map[string]*batchLock
}

type batchLock struct {
	mu   sync.Mutex
	refs int
}

func newBatchLocks() *batchLocks {
	return &batchLocks{locks: make(map[string]*batchLock)}
}

// lock acquires the lock for id and returns its release function
func (l *batchLocks) lock(id string) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &batchLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
