package board

import (
	"sort"
	"sync"
)

// keyedMutex serializes the load-compute-persist window per key so two drags
// touching the same columns cannot interleave and clobber each other's
// positions.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[string]*lockEntry)}
}

// lock blocks until the key is held and returns the release func.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &lockEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}

// lockAll locks every distinct key in sorted order, so two movers touching
// overlapping column sets always contend instead of interleaving. The
// returned func releases in reverse order.
func (k *keyedMutex) lockAll(keys ...string) func() {
	sort.Strings(keys)
	unlocks := make([]func(), 0, len(keys))
	var prev string
	for i, key := range keys {
		if i > 0 && key == prev {
			continue
		}
		prev = key
		unlocks = append(unlocks, k.lock(key))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// columnKey is the lock key guarding one column's ordering.
func columnKey(projectID, columnID string) string {
	return projectID + "|col|" + columnID
}

// columnsKey is the lock key guarding a project's column list ordering.
func columnsKey(projectID string) string {
	return projectID + "|columns"
}
