// Package mock provides a test double for the generate.Generator interface.
//
// Use Generator to script payloads or failures per key and to count how many
// times generation actually ran — the singleflight tests rely on the counter.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/hanzicard/hanzicache/pkg/asset"
	"github.com/hanzicard/hanzicache/pkg/generate"
)

// Generator is a mock implementation of generate.Generator.
type Generator struct {
	mu sync.Mutex

	// --- Configurable behaviour ---

	// Payloads maps keys to the bytes Generate returns. Keys not present
	// fall back to Default.
	Payloads map[asset.Key][]byte

	// Default is returned for keys without a scripted payload.
	Default []byte

	// Err, if non-nil, is returned from every Generate call.
	Err error

	// Delay, if non-zero, is slept (context-aware) before returning. Used
	// to hold a generation open while concurrent callers pile up.
	Delay time.Duration

	// --- Recorded state ---

	// Calls records the key of each Generate invocation in order.
	Calls []asset.Key
}

// Compile-time interface assertion.
var _ generate.Generator = (*Generator)(nil)

// CallCount returns the number of Generate invocations so far.
func (g *Generator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Calls)
}

// Generate returns the scripted payload or error for key.
func (g *Generator) Generate(ctx context.Context, key asset.Key) ([]byte, error) {
	g.mu.Lock()
	g.Calls = append(g.Calls, key)
	payload, ok := g.Payloads[key]
	if !ok {
		payload = g.Default
	}
	err := g.Err
	delay := g.Delay
	g.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}
