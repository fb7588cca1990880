// Package sweeper implements the retention sweeper: a background loop that
// deletes entries older than the retention horizon from the authoritative
// relational tier and cascades the deletions into the accelerator tiers.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hanzicard/hanzicache/internal/observe"
	"github.com/hanzicard/hanzicache/pkg/asset"
	"github.com/hanzicard/hanzicache/pkg/tier"
)

// Defaults used when the corresponding option is not given.
const (
	DefaultInterval  = 24 * time.Hour
	DefaultRetention = 8760 * time.Hour // one year
)

// Store is the authoritative tier's sweep surface. Both methods delete every
// entry created before cutoff and return the keys they removed.
type Store interface {
	SweepAudio(ctx context.Context, cutoff time.Time) ([]asset.Key, error)
	SweepStrokes(ctx context.Context, cutoff time.Time) ([]asset.Key, error)
}

// Sweeper periodically expires old entries. Create one with [New] and start
// it with [Sweeper.Run].
type Sweeper struct {
	store     Store
	cascade   []tier.Deleter
	interval  time.Duration
	retention time.Duration
	metrics   *observe.Metrics
	log       *slog.Logger
	now       func() time.Time
}

// Option configures a [Sweeper].
type Option func(*Sweeper)

// WithInterval sets the pause between sweep passes.
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithRetention sets how long entries are kept before deletion.
func WithRetention(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithCascade adds tiers whose copies are removed after the authoritative
// delete. Cascade deletes are best effort.
func WithCascade(deleters ...tier.Deleter) Option {
	return func(s *Sweeper) {
		s.cascade = append(s.cascade, deleters...)
	}
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(s *Sweeper) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(met *observe.Metrics) Option {
	return func(s *Sweeper) {
		if met != nil {
			s.metrics = met
		}
	}
}

// withClock overrides the time source in tests.
func withClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// New creates a Sweeper over the authoritative store.
func New(store Store, opts ...Option) (*Sweeper, error) {
	if store == nil {
		return nil, errors.New("sweeper: store is required")
	}
	s := &Sweeper{
		store:     store,
		interval:  DefaultInterval,
		retention: DefaultRetention,
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s, nil
}

// Run sweeps once immediately, then on every interval tick until ctx is
// cancelled. Pass failures are logged and the loop keeps going; a broken
// database today does not stop retention tomorrow.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("retention sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep performs one retention pass: delete everything older than the
// retention horizon from the authoritative store, then cascade the removed
// keys into the accelerator tiers.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := s.now().Add(-s.retention)
	ctx, span := observe.StartSpan(ctx, "sweeper.Sweep")
	defer span.End()

	var errs []error

	audio, err := s.store.SweepAudio(ctx, cutoff)
	if err != nil {
		errs = append(errs, err)
	} else {
		s.metrics.RecordSweep(ctx, asset.KindAudio.String(), int64(len(audio)))
		s.cascadeDelete(ctx, audio)
	}

	strokes, err := s.store.SweepStrokes(ctx, cutoff)
	if err != nil {
		errs = append(errs, err)
	} else {
		s.metrics.RecordSweep(ctx, asset.KindStroke.String(), int64(len(strokes)))
		s.cascadeDelete(ctx, strokes)
	}

	if len(errs) == 0 && len(audio)+len(strokes) > 0 {
		s.log.Info("retention sweep completed",
			"cutoff", cutoff.Format(time.RFC3339),
			"audio_deleted", len(audio),
			"strokes_deleted", len(strokes),
		)
	}
	return errors.Join(errs...)
}

// cascadeDelete removes swept keys from the accelerator tiers. Failures are
// logged but never fail the sweep: a stale accelerator copy ages out on its
// own and the authoritative record is already gone.
func (s *Sweeper) cascadeDelete(ctx context.Context, keys []asset.Key) {
	for _, d := range s.cascade {
		for _, key := range keys {
			if err := d.Delete(ctx, key); err != nil {
				s.log.Warn("cascade delete failed", "key", key.ID(), "error", err)
			}
		}
	}
}
