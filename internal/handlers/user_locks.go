package handlers

import "sync"

// userLocks serializes room actions per user, so that checking a user's
// current room and acting on it happen as one step even across sockets.
type userLocks struct {
	mu    sync.Mutex
	locks map[int32]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[int32]*userLock)}
}

// lock blocks until userID's lock is held and returns the matching unlock.
// Entries are dropped once nobody holds or waits on them.
func (l *userLocks) lock(userID int32) func() {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.Lock()
	return func() {
		ul.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

// len reports how many users currently have a lock entry.
func (l *userLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
