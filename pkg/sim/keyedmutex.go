package sim

import "sync"

// keyedMutex serializes work per key. Every lifecycle operation is a whole
// document read-modify-write, so two racing operations on the same user would
// silently drop one another's write; holding the user's lock for the duration
// of the read-modify-write prevents that. Different users never contend.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it on first use. Locks are never
// reaped; the key space is bounded by the user population.
func (km *keyedMutex) Lock(key string) {
	km.mu.Lock()
	l, ok := km.locks[key]
	if !ok {
		l = &sync.Mutex{}
		km.locks[key] = l
	}
	km.mu.Unlock()
	l.Lock()
}

func (km *keyedMutex) Unlock(key string) {
	km.mu.Lock()
	l := km.locks[key]
	km.mu.Unlock()
	l.Unlock()
}
