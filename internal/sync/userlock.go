package sync

import stdsync "sync"

// userLocks serializes syncs per user id. Entries are never evicted;
// the map grows with the number of distinct users synced by this
// process, which is bounded by the connected-user population.
type userLocks struct {
	locks stdsync.Map // user id -> *stdsync.Mutex
}

func (l *userLocks) lock(userID string) (unlock func()) {
	value, _ := l.locks.LoadOrStore(userID, &stdsync.Mutex{})
	mu := value.(*stdsync.Mutex)
	mu.Lock()
	return mu.Unlock
}
