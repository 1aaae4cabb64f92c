package bot

import "sync"

// chatLocks serializes read-modify-write cycles per conversation identity.
// The store's Replace is an unconditional overwrite, so without this two
// concurrent events for the same chat would race and the second writer
// would silently discard the first writer's change. Mutexes are never
// reclaimed; the per-chat footprint is one mutex.
type chatLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newChatLocks() *chatLocks {
	return &chatLocks{locks: make(map[int64]*sync.Mutex)}
}

// acquire locks the mutex for the given chat and returns its unlock func.
func (c *chatLocks) acquire(chatID int64) func() {
	c.mu.Lock()
	l, ok := c.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[chatID] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}
