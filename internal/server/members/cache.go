package members

import (
	"errors"
	"sync"

	"github.com/dmitrijs2005/members/internal/common"
)

// cache is a map guarded by a RWMutex. Entries are only removed explicitly.
type cache[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

func newCache[K comparable, V any]() *cache[K, V] {
	return &cache[K, V]{m: make(map[K]V)}
}

func (c *cache[K, V]) Load(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	return v, ok
}

// LoadOrStore returns the cached value for key if there is one; otherwise it
// stores and returns value. loaded reports which happened.
func (c *cache[K, V]) LoadOrStore(key K, value V) (actual V, loaded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.m[key]; ok {
		return v, true
	}
	c.m[key] = value
	return value, false
}

func (c *cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
}

func (c *cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

func isNotFound(err error) bool  { return errors.Is(err, common.ErrorNotFound) }
func isAmbiguous(err error) bool { return errors.Is(err, common.ErrAmbiguous) }
