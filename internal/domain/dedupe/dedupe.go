// Package dedupe guards job ids against reuse.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

// Deduper records claimed job ids so a second submission with the same id is
// refused.
type Deduper interface {
	// Claim atomically records id. It returns false if id was already claimed.
	Claim(ctx context.Context, id string) bool

	// Release forgets id, allowing it to be claimed again. Used when a job was
	// claimed but could not be enqueued.
	Release(ctx context.Context, id string)

	Size() int
}

// inMemoryDeduper remembers up to maxSize ids, evicting the oldest claim
// first. maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front = oldest
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000,
		seen:    make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) Claim(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; exists {
		return false
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.seen, oldest.Value.(string))
	}
	d.seen[id] = d.order.PushBack(id)
	return true
}

func (d *inMemoryDeduper) Release(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.seen[id]; ok {
		d.order.Remove(el)
		delete(d.seen, id)
	}
}

func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
