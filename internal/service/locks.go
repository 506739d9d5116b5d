package service

import "sync"

// keyedLock serializes syncs per (db key, collection) pair. TryAcquire does
// not block: a second caller for the same key is rejected so at most one sync
// is ever in flight per collection.
type keyedLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newKeyedLock() *keyedLock {
	return &keyedLock{held: make(map[string]struct{})}
}

func (l *keyedLock) TryAcquire(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, taken := l.held[key]; taken {
		return false
	}
	l.held[key] = struct{}{}
	return true
}

func (l *keyedLock) Release(key string) {
	l.mu.Lock()
	delete(l.held, key)
	l.mu.Unlock()
}
