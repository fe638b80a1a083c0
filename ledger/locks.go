// SPDX-License-Identifier: GPL-3.0-only

package ledger

import "sync"

// accountLocks hands out one mutex per account id so that at most one
// mutation per account runs in this process at a time. Entries are dropped
// once no goroutine holds or waits for them.
type accountLocks struct {
	mu    sync.Mutex
	locks map[uint]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[uint]*accountLock)}
}

func (l *accountLocks) lock(id uint) func() {
	l.mu.Lock()
	al, ok := l.locks[id]
	if !ok {
		al = &accountLock{}
		l.locks[id] = al
	}
	al.refs++
	l.mu.Unlock()

	al.mu.Lock()
	return func() {
		al.mu.Unlock()
		l.mu.Lock()
		al.refs--
		if al.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *accountLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
