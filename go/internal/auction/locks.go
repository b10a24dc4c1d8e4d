package auction

import "sync"

// itemLocks serializes share processing per item within this process.
// Entries are reference counted and removed once no caller holds or waits on them.
type itemLocks struct {
	mu    sync.Mutex
	locks map[string]*itemLock
}

type itemLock struct {
	mu   sync.Mutex
	refs int
}

func newItemLocks() *itemLocks {
	return &itemLocks{locks: make(map[string]*itemLock)}
}

// lock blocks until the caller owns itemID and returns the matching unlock.
func (l *itemLocks) lock(itemID string) func() {
	l.mu.Lock()
	il, ok := l.locks[itemID]
	if !ok {
		il = &itemLock{}
		l.locks[itemID] = il
	}
	il.refs++
	l.mu.Unlock()

	il.mu.Lock()

	return func() {
		il.mu.Unlock()

		l.mu.Lock()
		il.refs--
		if il.refs == 0 {
			delete(l.locks, itemID)
		}
		l.mu.Unlock()
	}
}

func (l *itemLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
