// Package dedupe tracks idempotency keys for retraining submissions.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

const defaultMaxSize = 1000

// Index binds client idempotency keys to the job they first produced.
type Index interface {
	// Claim atomically returns the job bound to key, or binds id to key.
	// seen is true when key was already bound; existing is then its job id.
	Claim(ctx context.Context, key, id string) (existing string, seen bool)

	// Release forgets key so a submission that failed to enqueue can be
	// retried with the same key.
	Release(ctx context.Context, key string)

	Size() int64
}

type binding struct {
	key string
	id  string
}

// inMemoryIndex keeps at most maxSize keys, evicting the oldest binding
// first. maxSize <= 0 keeps every key.
type inMemoryIndex struct {
	mu      sync.Mutex
	keys    map[string]*list.Element
	order   *list.List // front is the newest binding
	maxSize int
	size    atomic.Int64
}

// NewInMemoryIndex creates an in-memory index with configuration options.
func NewInMemoryIndex(opts ...Option) Index {
	d := &inMemoryIndex{
		maxSize: defaultMaxSize,
		keys:    make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryIndex) Claim(_ context.Context, key, id string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.keys[key]; ok {
		return el.Value.(binding).id, true
	}

	if d.maxSize > 0 {
		for d.order.Len() >= d.maxSize {
			d.removeElement(d.order.Back())
		}
	}
	d.keys[key] = d.order.PushFront(binding{key: key, id: id})
	d.size.Add(1)
	return id, false
}

func (d *inMemoryIndex) Release(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.keys[key]; ok {
		d.removeElement(el)
	}
}

// removeElement must be called with mu held.
func (d *inMemoryIndex) removeElement(el *list.Element) {
	delete(d.keys, el.Value.(binding).key)
	d.order.Remove(el)
	d.size.Add(-1)
}

func (d *inMemoryIndex) Size() int64 {
	return d.size.Load()
}
