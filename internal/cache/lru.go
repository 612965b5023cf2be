package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// LRUCache keeps a 2Q cache per class. Safe for concurrent use.
type LRUCache struct {
	mu      sync.Mutex
	size    int
	classes map[string]*lru.TwoQueueCache
}

var _ Adapter = (*LRUCache)(nil)

func NewLRUCache(size int) *LRUCache {
	if size <= 0 {
		size = DefaultClassSize
	}
	return &LRUCache{
		size:    size,
		classes: make(map[string]*lru.TwoQueueCache),
	}
}

func (c *LRUCache) class(name string, create bool) *lru.TwoQueueCache {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl, ok := c.classes[name]
	if !ok && create {
		// size is validated in NewLRUCache
		cl, _ = lru.New2Q(c.size)
		c.classes[name] = cl
	}
	return cl
}

func (c *LRUCache) Get(class, key string) (interface{}, bool) {
	cl := c.class(class, false)
	if cl == nil {
		return nil, false
	}
	return cl.Get(key)
}

func (c *LRUCache) Put(class, key string, value interface{}) {
	c.class(class, true).Add(key, value)
}

func (c *LRUCache) Clear(class string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cl, ok := c.classes[class]; ok {
		cl.Purge()
		delete(c.classes, class)
	}
}

func (c *LRUCache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, cl := range c.classes {
		cl.Purge()
	}
	c.classes = make(map[string]*lru.TwoQueueCache)
}

// Len returns the number of entries held for class.
func (c *LRUCache) Len(class string) int {
	cl := c.class(class, false)
	if cl == nil {
		return 0
	}
	return cl.Len()
}
