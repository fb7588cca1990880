// Package mock provides a test double for the tier.Tier interface.
//
// Use Tier as a scripted backing store: seed it with entries, force Get/Put
// errors, and inspect recorded calls afterwards.
package mock

import (
	"context"
	"sync"

	"github.com/hanzicard/hanzicache/pkg/asset"
	"github.com/hanzicard/hanzicache/pkg/tier"
)

// Tier is a mock implementation of tier.Tier and tier.Deleter backed by a
// plain map.
type Tier struct {
	mu sync.Mutex

	// --- Configurable behaviour ---

	// GetErr, if non-nil, is returned from every Get call.
	GetErr error

	// PutErr, if non-nil, is returned from every Put call.
	PutErr error

	// DeleteErr, if non-nil, is returned from every Delete call.
	DeleteErr error

	// --- Recorded state ---

	// Entries holds the stored payloads. May be pre-seeded before use.
	Entries map[asset.Key][]byte

	// GetCalls, PutCalls, DeleteCalls record the keys of each invocation in
	// order.
	GetCalls    []asset.Key
	PutCalls    []asset.Key
	DeleteCalls []asset.Key
}

// Compile-time interface assertions.
var (
	_ tier.Tier    = (*Tier)(nil)
	_ tier.Deleter = (*Tier)(nil)
)

// New creates an empty mock tier.
func New() *Tier {
	return &Tier{Entries: make(map[asset.Key][]byte)}
}

// Seed stores payload under key without recording a Put call.
func (t *Tier) Seed(key asset.Key, payload []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Entries == nil {
		t.Entries = make(map[asset.Key][]byte)
	}
	t.Entries[key] = payload
}

// Get returns the seeded or stored payload, GetErr, or tier.ErrNotFound.
func (t *Tier) Get(_ context.Context, key asset.Key) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.GetCalls = append(t.GetCalls, key)
	if t.GetErr != nil {
		return nil, t.GetErr
	}
	payload, ok := t.Entries[key]
	if !ok {
		return nil, tier.ErrNotFound
	}
	return payload, nil
}

// Put stores payload under key, or returns PutErr.
func (t *Tier) Put(_ context.Context, key asset.Key, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.PutCalls = append(t.PutCalls, key)
	if t.PutErr != nil {
		return t.PutErr
	}
	if t.Entries == nil {
		t.Entries = make(map[asset.Key][]byte)
	}
	t.Entries[key] = payload
	return nil
}

// Delete removes the entry for key, or returns DeleteErr.
func (t *Tier) Delete(_ context.Context, key asset.Key) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.DeleteCalls = append(t.DeleteCalls, key)
	if t.DeleteErr != nil {
		return t.DeleteErr
	}
	delete(t.Entries, key)
	return nil
}

// Has reports whether key is currently stored.
func (t *Tier) Has(key asset.Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.Entries[key]
	return ok
}
