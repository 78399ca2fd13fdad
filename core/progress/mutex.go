package progress

import "sync"

// keyedMutex serializes operations sharing a key (a (user, lesson) pair or an
// attempt id) while leaving distinct keys fully independent. Entries are
// refcounted so the map does not grow with every key ever seen.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

func (km *keyedMutex) lock(key string) {
	km.mu.Lock()
	kl, ok := km.locks[key]
	if !ok {
		kl = new(keyedLock)
		km.locks[key] = kl
	}
	kl.refs++
	km.mu.Unlock()

	kl.Lock()
}

func (km *keyedMutex) unlock(key string) {
	km.mu.Lock()
	kl := km.locks[key]
	kl.refs--
	if kl.refs == 0 {
		delete(km.locks, key)
	}
	km.mu.Unlock()

	kl.Unlock()
}
