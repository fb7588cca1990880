// Package tier defines the uniform get/put contract implemented by each
// backing store in the cache cascade: the in-process memory tier, the network
// blob-store tier, and the relational fallback tier.
//
// A Get that finds nothing returns [ErrNotFound]; any other error is a
// transient tier failure (network, auth, timeout) that callers are expected
// to absorb by falling through to the next tier.
//
// Implementations must be safe for concurrent use.
package tier

import (
	"context"
	"errors"

	"github.com/hanzicard/hanzicache/pkg/asset"
)

// ErrNotFound is returned by Get when the tier does not hold the key.
// It is the only non-transient Get error.
var ErrNotFound = errors.New("tier: not found")

// Tier is one backing store in the cascade.
type Tier interface {
	// Get returns the payload stored under key, or ErrNotFound.
	Get(ctx context.Context, key asset.Key) ([]byte, error)

	// Put stores payload under key. Puts are stable upserts: writing the
	// same key twice keeps exactly one record.
	Put(ctx context.Context, key asset.Key, payload []byte) error
}

// Deleter is an optional extension implemented by tiers that support
// explicit removal. The retention sweeper uses it to cascade deletions from
// the authoritative tier into accelerators.
type Deleter interface {
	Delete(ctx context.Context, key asset.Key) error
}
