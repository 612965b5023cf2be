package cache

import "math"

const (
	// DefaultClassSize bounds the number of entries per class.
	DefaultClassSize = 1000

	evictFraction = 0.2
)

type agingClass struct {
	entries map[string]interface{}
	order   []string
}

// AgingCache evicts the oldest fifth of a class, by insertion order, when
// the class is full. It is not safe for concurrent use.
type AgingCache struct {
	size    int
	classes map[string]*agingClass
}

var _ Adapter = (*AgingCache)(nil)

func NewAgingCache(size int) *AgingCache {
	if size <= 0 {
		size = DefaultClassSize
	}
	return &AgingCache{
		size:    size,
		classes: make(map[string]*agingClass),
	}
}

func (c *AgingCache) Get(class, key string) (interface{}, bool) {
	cl, ok := c.classes[class]
	if !ok {
		return nil, false
	}
	v, ok := cl.entries[key]
	return v, ok
}

func (c *AgingCache) Put(class, key string, value interface{}) {
	cl, ok := c.classes[class]
	if !ok {
		cl = &agingClass{entries: make(map[string]interface{})}
		c.classes[class] = cl
	}

	if _, exists := cl.entries[key]; exists {
		cl.entries[key] = value
		return
	}

	if len(cl.order) >= c.size {
		c.evict(cl)
	}

	cl.entries[key] = value
	cl.order = append(cl.order, key)
}

func (c *AgingCache) evict(cl *agingClass) {
	n := int(math.Round(float64(len(cl.order)) * evictFraction))
	if n < 1 {
		n = 1
	}
	for _, key := range cl.order[:n] {
		delete(cl.entries, key)
	}
	cl.order = append([]string(nil), cl.order[n:]...)
}

func (c *AgingCache) Clear(class string) {
	delete(c.classes, class)
}

func (c *AgingCache) ClearAll() {
	c.classes = make(map[string]*agingClass)
}

// Len returns the number of entries held for class.
func (c *AgingCache) Len(class string) int {
	cl, ok := c.classes[class]
	if !ok {
		return 0
	}
	return len(cl.order)
}
