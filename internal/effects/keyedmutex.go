package effects

import "sync"

// keyedMutex serializes work per string key. Locks are created on
// first use and never reclaimed; the key space is team ids, which is
// small and stable for the lifetime of a competition.
type keyedMutex struct {
	locks sync.Map
}

func (k *keyedMutex) lock(key string) *sync.Mutex {
	mu, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m
}

// lockPair locks two keys in a deterministic order so concurrent
// activations between the same pair of teams cannot deadlock.
func (k *keyedMutex) lockPair(a, b string) func() {
	if a == b || b == "" {
		m := k.lock(a)
		return m.Unlock
	}
	first, second := a, b
	if second < first {
		first, second = second, first
	}
	m1 := k.lock(first)
	m2 := k.lock(second)
	return func() {
		m2.Unlock()
		m1.Unlock()
	}
}
