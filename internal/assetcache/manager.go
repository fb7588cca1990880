// Package assetcache implements the tiered lookup cascade and on-demand
// generation pipeline for learning assets.
//
// A fetch walks the tiers from fastest to slowest: the in-process memory
// tier, then the object-store blob tier, then the relational fallback tier.
// Transient failures in the middle tiers are absorbed and the cascade falls
// through; only the final generation step can fail a request. Misses end in
// a singleflight-deduplicated call to the generator, after which the payload
// is written back to every tier so later fetches stop earlier.
package assetcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hanzicard/hanzicache/internal/observe"
	"github.com/hanzicard/hanzicache/pkg/asset"
	"github.com/hanzicard/hanzicache/pkg/generate"
	"github.com/hanzicard/hanzicache/pkg/tier"
)

// defaultBlobTimeout bounds a single blob-tier lookup so a slow object store
// degrades a fetch to the fallback tier instead of stalling it.
const defaultBlobTimeout = 3 * time.Second

// Tier names used in logs and metric attributes.
const (
	tierMemory   = "memory"
	tierBlob     = "blob"
	tierFallback = "postgres"
)

// Source values reported for where a fetch was served from.
const sourceGenerated = "generated"

// Manager coordinates the cache tiers and the generator. Create one with
// [New]; it is safe for concurrent use.
type Manager struct {
	memory   tier.Tier
	blob     tier.Tier
	fallback tier.Tier
	gen      generate.Generator

	flight      Flight
	metrics     *observe.Metrics
	log         *slog.Logger
	blobTimeout time.Duration
}

// Option configures a [Manager].
type Option func(*Manager)

// WithBlobTimeout overrides the per-lookup deadline for the blob tier.
func WithBlobTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.blobTimeout = d
		}
	}
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(met *observe.Metrics) Option {
	return func(m *Manager) {
		if met != nil {
			m.metrics = met
		}
	}
}

// New creates a Manager over the three tiers and the generator. memory and
// blob may be nil to run without that tier; fallback and gen are required.
func New(memory, blob, fallback tier.Tier, gen generate.Generator, opts ...Option) (*Manager, error) {
	if fallback == nil {
		return nil, errors.New("assetcache: fallback tier is required")
	}
	if gen == nil {
		return nil, errors.New("assetcache: generator is required")
	}
	m := &Manager{
		memory:      memory,
		blob:        blob,
		fallback:    fallback,
		gen:         gen,
		log:         slog.Default(),
		blobTimeout: defaultBlobTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m, nil
}

// Fetch returns the payload for key, serving it from the fastest tier that
// holds it and generating it on a full miss. Generation errors are returned
// to the caller and never cached; the next fetch for the same key retries.
func (m *Manager) Fetch(ctx context.Context, key asset.Key) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	ctx, span := observe.StartKeySpan(ctx, "assetcache.Fetch", key.ID())
	defer span.End()
	start := time.Now()

	if payload, ok := m.fromMemory(ctx, key); ok {
		m.metrics.RecordTierHit(ctx, tierMemory)
		m.metrics.RecordFetch(ctx, key.Kind.String(), tierMemory, time.Since(start))
		return payload, nil
	}
	if payload, ok := m.fromBlob(ctx, key); ok {
		m.metrics.RecordTierHit(ctx, tierBlob)
		m.metrics.RecordFetch(ctx, key.Kind.String(), tierBlob, time.Since(start))
		return payload, nil
	}
	if payload, ok, err := m.fromFallback(ctx, key); err != nil {
		return nil, err
	} else if ok {
		m.metrics.RecordTierHit(ctx, tierFallback)
		m.metrics.RecordFetch(ctx, key.Kind.String(), tierFallback, time.Since(start))
		return payload, nil
	}

	payload, err := m.generateAndStore(ctx, key)
	if err != nil {
		return nil, err
	}
	m.metrics.RecordFetch(ctx, key.Kind.String(), sourceGenerated, time.Since(start))
	return payload, nil
}

// fromMemory consults the in-process tier. It cannot fail in a way the
// cascade cares about, so any error just reads as a miss.
func (m *Manager) fromMemory(ctx context.Context, key asset.Key) ([]byte, bool) {
	if m.memory == nil {
		return nil, false
	}
	payload, err := m.memory.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	return payload, true
}

// fromBlob consults the object store under a short deadline. Transient
// failures are absorbed: the cascade treats them as a miss and falls through
// to the fallback tier.
func (m *Manager) fromBlob(ctx context.Context, key asset.Key) ([]byte, bool) {
	if m.blob == nil {
		return nil, false
	}
	lookupCtx, cancel := context.WithTimeout(ctx, m.blobTimeout)
	defer cancel()

	payload, err := m.blob.Get(lookupCtx, key)
	switch {
	case err == nil:
		m.repairMemory(ctx, key, payload)
		return payload, true
	case errors.Is(err, tier.ErrNotFound):
		return nil, false
	default:
		m.metrics.RecordTierError(ctx, tierBlob, "get")
		observe.Logger(ctx).Warn("blob tier lookup failed, falling through",
			"key", key.ID(), "error", err)
		return nil, false
	}
}

// fromFallback consults the relational tier. A transient failure here is
// ambiguous — the entry may exist but be unreachable — so the cascade falls
// through to generation rather than failing the fetch; the upsert on the way
// back keeps a duplicate generation harmless.
func (m *Manager) fromFallback(ctx context.Context, key asset.Key) ([]byte, bool, error) {
	payload, err := m.fallback.Get(ctx, key)
	switch {
	case err == nil:
		m.repairBlob(ctx, key, payload)
		m.repairMemory(ctx, key, payload)
		return payload, true, nil
	case errors.Is(err, tier.ErrNotFound):
		return nil, false, nil
	case ctx.Err() != nil:
		return nil, false, ctx.Err()
	default:
		m.metrics.RecordTierError(ctx, tierFallback, "get")
		observe.Logger(ctx).Warn("fallback tier lookup failed, proceeding to generation",
			"key", key.ID(), "error", err)
		return nil, false, nil
	}
}

// generateAndStore runs the generator under singleflight and writes the
// result back to every tier. The fallback write happens first: it is the
// durable record the other tiers are rebuilt from. If even that write fails
// the payload is still returned — the caller asked for the asset, not for
// its persistence.
func (m *Manager) generateAndStore(ctx context.Context, key asset.Key) ([]byte, error) {
	payload, shared, err := m.flight.Do(ctx, key.ID(), func(ctx context.Context) ([]byte, error) {
		// A caller that raced in behind a finished flight finds the entry
		// already cached.
		if p, ok := m.fromMemory(ctx, key); ok {
			return p, nil
		}

		genStart := time.Now()
		p, err := m.gen.Generate(ctx, key)
		if err != nil {
			m.metrics.RecordGeneration(ctx, key.Kind.String(), "error", time.Since(genStart))
			return nil, fmt.Errorf("assetcache: generate %s: %w", key.ID(), err)
		}
		m.metrics.RecordGeneration(ctx, key.Kind.String(), "ok", time.Since(genStart))

		if err := m.fallback.Put(ctx, key, p); err != nil {
			m.metrics.RecordTierError(ctx, tierFallback, "put")
			observe.Logger(ctx).Error("fallback tier write failed after generation",
				"key", key.ID(), "error", err)
		}
		m.repairBlob(ctx, key, p)
		m.repairMemory(ctx, key, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		m.metrics.RecordFlightShared(ctx, key.Kind.String())
	}
	return payload, nil
}

// repairMemory backfills the in-process tier after a deeper hit.
func (m *Manager) repairMemory(ctx context.Context, key asset.Key, payload []byte) {
	if m.memory == nil {
		return
	}
	_ = m.memory.Put(ctx, key, payload)
}

// repairBlob backfills the object store after a fallback hit or a
// generation. Best effort: a failed write only costs the next fetch a
// deeper lookup.
func (m *Manager) repairBlob(ctx context.Context, key asset.Key, payload []byte) {
	if m.blob == nil {
		return
	}
	putCtx, cancel := context.WithTimeout(ctx, m.blobTimeout)
	defer cancel()

	if err := m.blob.Put(putCtx, key, payload); err != nil {
		m.metrics.RecordTierError(ctx, tierBlob, "put")
		observe.Logger(ctx).Warn("blob tier backfill failed",
			"key", key.ID(), "error", err)
	}
}
