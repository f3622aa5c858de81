package chain

import "sync"

// userLocks serializes transitions per (bot, user) pair so two concurrent
// updates from the same user cannot both read the same current step and
// double-advance. Entries are reference counted and removed when the last
// holder releases, so the table does not grow with the user base.
type userLocks struct {
	mu    sync.Mutex
	locks map[userKey]*userLock
}

type userKey struct {
	botID  int64
	userID int64
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[userKey]*userLock)}
}

// acquire blocks until the pair's lock is held and returns the release func.
func (l *userLocks) acquire(botID, userID int64) func() {
	key := userKey{botID: botID, userID: userID}

	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &userLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs <= 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
