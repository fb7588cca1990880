// Package memory provides the in-process cache tier: a bounded map with
// least-recently-used eviction. It is the fastest tier in the cascade and is
// purely an accelerator — contents live only for the process lifetime.
package memory

import (
	"container/list"
	"context"
	"sync"

	"github.com/hanzicard/hanzicache/pkg/asset"
	"github.com/hanzicard/hanzicache/pkg/tier"
)

// DefaultCapacity is the default maximum number of entries held.
const DefaultCapacity = 200

// Tier is a bounded LRU cache keyed by [asset.Key]. Get never fails except
// with [tier.ErrNotFound]; Put never fails and may evict the least recently
// used entry.
//
// Tier is safe for concurrent use.
type Tier struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	items    map[asset.Key]*list.Element
}

// Compile-time interface assertions.
var (
	_ tier.Tier    = (*Tier)(nil)
	_ tier.Deleter = (*Tier)(nil)
)

// cell is the list element payload.
type cell struct {
	key     asset.Key
	payload []byte
}

// New creates a memory tier holding at most capacity entries. A capacity
// <= 0 falls back to [DefaultCapacity].
func New(capacity int) *Tier {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tier{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[asset.Key]*list.Element, capacity),
	}
}

// Get returns the payload for key and marks it most recently used.
func (t *Tier) Get(_ context.Context, key asset.Key) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	el, ok := t.items[key]
	if !ok {
		return nil, tier.ErrNotFound
	}
	t.order.MoveToFront(el)
	return el.Value.(*cell).payload, nil
}

// Put stores payload under key, evicting the least recently used entry when
// the tier is full. Storing an existing key replaces its payload.
func (t *Tier) Put(_ context.Context, key asset.Key, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if el, ok := t.items[key]; ok {
		el.Value.(*cell).payload = payload
		t.order.MoveToFront(el)
		return nil
	}

	if t.order.Len() >= t.capacity {
		oldest := t.order.Back()
		if oldest != nil {
			t.order.Remove(oldest)
			delete(t.items, oldest.Value.(*cell).key)
		}
	}
	t.items[key] = t.order.PushFront(&cell{key: key, payload: payload})
	return nil
}

// Delete removes the entry for key. Deleting an absent key is a no-op.
func (t *Tier) Delete(_ context.Context, key asset.Key) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if el, ok := t.items[key]; ok {
		t.order.Remove(el)
		delete(t.items, key)
	}
	return nil
}

// Len returns the current number of entries.
func (t *Tier) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.order.Len()
}
