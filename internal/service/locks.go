package service

import "sync"

// CharacterLocks provides per-character mutual exclusion for store writes.
// Ingestion's bio replacement and retrieval's write-back+prune serialize on
// the same lock; operations on different characters run in parallel.
type CharacterLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// NewCharacterLocks creates an empty lock set.
func NewCharacterLocks() *CharacterLocks {
	return &CharacterLocks{locks: make(map[string]*sync.RWMutex)}
}

// Get returns the lock for a character, creating it on first use. Locks are
// never released back; the character population is small and long-lived.
func (c *CharacterLocks) Get(characterID string) *sync.RWMutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.locks[characterID]
	if !ok {
		lock = &sync.RWMutex{}
		c.locks[characterID] = lock
	}
	return lock
}
