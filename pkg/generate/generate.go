// Package generate defines the Generator interface wrapping the external
// asset producers: the text-to-speech engine for audio keys and the
// stroke-order source for stroke keys.
//
// Generators are pluggable, possibly-failing externals. They must be
// idempotent in effect: generating the same key twice yields semantically
// equivalent payloads, so a cross-process duplicate generation is wasteful
// but harmless once it lands in the fallback tier's upsert.
//
// Implementations must be safe for concurrent use.
package generate

import (
	"context"
	"errors"
	"fmt"

	"github.com/hanzicard/hanzicache/pkg/asset"
)

// ErrUnsupportedText is returned when the TTS engine rejects the input text.
var ErrUnsupportedText = errors.New("generate: unsupported text")

// ErrCharacterNotFound is returned when the stroke-order source has no entry
// for the requested character or stroke ordinal.
var ErrCharacterNotFound = errors.New("generate: character not found")

// Generator produces the payload for a cache key. A returned error is
// surfaced to the caller of the fetch and is never cached; the next request
// for the same key retries generation.
type Generator interface {
	Generate(ctx context.Context, key asset.Key) ([]byte, error)
}

// Router dispatches keys to the generator registered for their kind. It is
// a closed set fixed at construction — unknown kinds fail loudly rather than
// being resolved by runtime type inspection.
type Router struct {
	generators map[asset.Kind]Generator
}

// Compile-time interface assertion.
var _ Generator = (*Router)(nil)

// NewRouter creates a Router. Register generators with [Router.Register]
// before first use; Router is not safe for concurrent mutation afterwards.
func NewRouter() *Router {
	return &Router{generators: make(map[asset.Kind]Generator)}
}

// Register binds a generator to a key kind, replacing any previous binding.
func (r *Router) Register(kind asset.Kind, g Generator) {
	r.generators[kind] = g
}

// Generate validates the key and forwards it to the generator for its kind.
func (r *Router) Generate(ctx context.Context, key asset.Key) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	g, ok := r.generators[key.Kind]
	if !ok {
		return nil, fmt.Errorf("generate: no generator registered for kind %q", key.Kind)
	}
	return g.Generate(ctx, key)
}
