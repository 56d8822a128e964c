package schema

import (
	"container/list"
	"strings"
	"sync"
)

// LRUCache is a thread-safe LRU cache of compiled entity metadata, keyed by
// case-folded entity name. Entries are also reachable by their entity-set
// name; both keys share one slot.
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	cache    map[string]*list.Element
	sets     map[string]*list.Element
	order    *list.List
}

type cacheEntry struct {
	key    string
	set    string
	entity *EntityType
}

func cacheKey(name string) string { return strings.ToLower(name) }

// NewLRUCache creates a new LRU cache with the given capacity.
func NewLRUCache(capacity int) *LRUCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &LRUCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		sets:     make(map[string]*list.Element),
		order:    list.New(),
	}
}

// lookup finds name as a type name first, then as an entity-set name.
func (c *LRUCache) lookup(name string) (*list.Element, bool) {
	key := cacheKey(name)
	if elem, ok := c.cache[key]; ok {
		return elem, true
	}
	elem, ok := c.sets[key]
	return elem, ok
}

func (c *LRUCache) remove(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	delete(c.cache, entry.key)
	if entry.set != "" && c.sets[entry.set] == elem {
		delete(c.sets, entry.set)
	}
	c.order.Remove(elem)
}

// Get retrieves an entity by type or entity-set name. Returns nil if not found.
func (c *LRUCache) Get(name string) *EntityType {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.lookup(name)
	if !exists {
		return nil
	}

	c.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).entity.clone()
}

// Put adds an entity to the cache, evicting the least recently used if full.
func (c *LRUCache) Put(entity *EntityType) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(entity.Name)
	set := cacheKey(entity.EntitySet)

	if elem, exists := c.cache[key]; exists {
		c.order.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		if entry.set != set && c.sets[entry.set] == elem {
			delete(c.sets, entry.set)
		}
		entry.set = set
		entry.entity = entity.clone()
		if set != "" {
			c.sets[set] = elem
		}
		return
	}

	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.remove(oldest)
		}
	}

	elem := c.order.PushFront(&cacheEntry{key: key, set: set, entity: entity.clone()})
	c.cache[key] = elem
	if set != "" {
		c.sets[set] = elem
	}
}

// Invalidate removes an entity from the cache by type or entity-set name.
func (c *LRUCache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.lookup(name)
	if !exists {
		return
	}
	c.remove(elem)
}

// Clear removes all entries from the cache.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]*list.Element)
	c.sets = make(map[string]*list.Element)
	c.order = list.New()
}

// Len returns the number of cached entities.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.Len()
}
