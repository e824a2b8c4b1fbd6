package repository

import (
	"sync"

	"github.com/okian/jobfit/internal/domain/artifact"
)

// node is a single entry in the cache's insertion list.
type node struct {
	version string
	set     *artifact.Set
	next    *node
}

func (n *node) reset() {
	n.version = ""
	n.set = nil
	n.next = nil
}

// setCache keeps decoded artifact sets keyed by version. Versions are
// immutable on disk, so entries never go stale; the oldest insertion is
// evicted once the cache is full.
type setCache struct {
	mu       sync.Mutex
	byID     map[string]*node
	head     *node // most recently added
	maxSize  int
	nodePool sync.Pool
}

func newSetCache(maxSize int) *setCache {
	return &setCache{
		byID:     make(map[string]*node),
		maxSize:  maxSize,
		nodePool: sync.Pool{New: func() any { return &node{} }},
	}
}

func (c *setCache) get(version string) (*artifact.Set, bool) {
	if c.maxSize <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.byID[version]
	if !ok {
		return nil, false
	}
	return n.set, true
}

func (c *setCache) put(version string, set *artifact.Set) {
	if c.maxSize <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.byID[version]; ok {
		return
	}
	if len(c.byID) >= c.maxSize {
		c.evictOldest()
	}

	n := c.nodePool.Get().(*node) //nolint:errcheck // pool only holds *node
	n.version = version
	n.set = set
	n.next = c.head
	c.head = n
	c.byID[version] = n
}

func (c *setCache) remove(version string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.byID[version]
	if !ok {
		return
	}
	delete(c.byID, version)
	if c.head == n {
		c.head = n.next
	} else {
		cur := c.head
		for cur != nil && cur.next != n {
			cur = cur.next
		}
		if cur != nil {
			cur.next = n.next
		}
	}
	n.reset()
	c.nodePool.Put(n)
}

func (c *setCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID)
}

// evictOldest removes the tail of the list. Must be called with c.mu held.
func (c *setCache) evictOldest() {
	if c.head == nil {
		return
	}
	var prev *node
	cur := c.head
	for cur.next != nil {
		prev = cur
		cur = cur.next
	}
	if prev == nil {
		c.head = nil
	} else {
		prev.next = nil
	}
	delete(c.byID, cur.version)
	cur.reset()
	c.nodePool.Put(cur)
}
