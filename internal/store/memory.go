// Package store holds the sync engine's process-lifetime memory: the set of
// dispatched call ids and the phone to contact id cache.
package store

import "sync"

// SeenSet remembers call ids that have already been dispatched. Ids are never
// removed for the lifetime of the set.
type SeenSet interface {
	Has(id string) bool
	Add(id string)
	Len() int
}

// IdentityCache maps a normalized phone number to a CRM contact id. Entries
// are never evicted.
type IdentityCache interface {
	Get(phone string) (string, bool)
	Put(phone, contactID string)
	Len() int
}

// MemorySeenSet is an in-process SeenSet.
type MemorySeenSet struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewMemorySeenSet creates an empty MemorySeenSet.
func NewMemorySeenSet() *MemorySeenSet {
	return &MemorySeenSet{ids: make(map[string]struct{})}
}

func (s *MemorySeenSet) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

func (s *MemorySeenSet) Add(id string) {
	s.mu.Lock()
	s.ids[id] = struct{}{}
	s.mu.Unlock()
}

func (s *MemorySeenSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// MemoryIdentityCache is an in-process IdentityCache.
type MemoryIdentityCache struct {
	mu      sync.RWMutex
	byPhone map[string]string
}

// NewMemoryIdentityCache creates an empty MemoryIdentityCache.
func NewMemoryIdentityCache() *MemoryIdentityCache {
	return &MemoryIdentityCache{byPhone: make(map[string]string)}
}

func (c *MemoryIdentityCache) Get(phone string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byPhone[phone]
	return id, ok
}

// Put records the contact id for phone, replacing any previous mapping.
func (c *MemoryIdentityCache) Put(phone, contactID string) {
	if phone == "" || contactID == "" {
		return
	}
	c.mu.Lock()
	c.byPhone[phone] = contactID
	c.mu.Unlock()
}

func (c *MemoryIdentityCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byPhone)
}
