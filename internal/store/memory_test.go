package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemorySeenSet(t *testing.T) {
	s := NewMemorySeenSet()
	assert.False(t, s.Has("c1"))

	s.Add("c1")
	s.Add("c1")
	assert.True(t, s.Has("c1"))
	assert.False(t, s.Has("c2"))
	assert.Equal(t, 1, s.Len())
}

func TestMemoryIdentityCache(t *testing.T) {
	c := NewMemoryIdentityCache()
	_, ok := c.Get("11999990000")
	assert.False(t, ok)

	c.Put("11999990000", "501")
	id, ok := c.Get("11999990000")
	assert.True(t, ok)
	assert.Equal(t, "501", id)

	c.Put("11999990000", "502")
	id, _ = c.Get("11999990000")
	assert.Equal(t, "502", id, "a phone maps to at most one id at a time")
	assert.Equal(t, 1, c.Len())
}

func TestMemoryIdentityCache_IgnoresEmpty(t *testing.T) {
	c := NewMemoryIdentityCache()
	c.Put("", "501")
	c.Put("11999990000", "")
	assert.Equal(t, 0, c.Len())
}

func TestMemoryStores_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	s := NewMemorySeenSet()
	c := NewMemoryIdentityCache()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%10)
			s.Add(key)
			_ = s.Has(key)
			c.Put(key, "id")
			_, _ = c.Get(key)
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, s.Len())
	assert.Equal(t, 10, c.Len())
}
