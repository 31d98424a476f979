package engine

import "sync"

// keyedMutex serializes grading and intake per evaluator so concurrent
// requests cannot interleave read-modify-write cycles on the same record.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*entry)}
}

// lock acquires the mutex for key and returns its release func. Entries
// are reference-counted and dropped from the map when the last holder
// releases, so the map does not grow with dead evaluators.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	en, ok := k.locks[key]
	if !ok {
		en = &entry{}
		k.locks[key] = en
	}
	en.refs++
	k.mu.Unlock()

	en.mu.Lock()

	return func() {
		en.mu.Unlock()
		k.mu.Lock()
		en.refs--
		if en.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
