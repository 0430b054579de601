package holdings

import "sync"

// Locks serializes read-then-write operations per holding. Operations on
// different holdings proceed in parallel; there is no global lock.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocks creates an empty lock registry.
func NewLocks() *Locks {
	return &Locks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for a holding id and returns its unlock function.
func (l *Locks) Lock(holdingID string) func() {
	l.mu.Lock()
	m, ok := l.locks[holdingID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[holdingID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
