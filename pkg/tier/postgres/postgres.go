// Package postgres provides the relational fallback tier — the authoritative,
// durable store of record for generated assets. Absence here means the asset
// has never been generated (or was swept).
//
// Assets live in two tables: tts_cache keyed by the pronounced text, and
// stroke_gifs keyed by (character, stroke_order). Composite primary keys
// guarantee at most one record per key, making concurrent duplicate
// generations collapse into an idempotent upsert.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hanzicard/hanzicache/pkg/asset"
	"github.com/hanzicard/hanzicache/pkg/tier"
)

// Schema is the SQL DDL for the asset cache tables. Execute it via
// [Tier.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS tts_cache (
    hanzi      TEXT PRIMARY KEY,
    audio      BYTEA NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS stroke_gifs (
    character    TEXT NOT NULL,
    stroke_order INTEGER NOT NULL,
    gif_data     BYTEA NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (character, stroke_order)
);
CREATE INDEX IF NOT EXISTS idx_tts_cache_created ON tts_cache(created_at);
CREATE INDEX IF NOT EXISTS idx_stroke_gifs_created ON stroke_gifs(created_at);
`

// DB is the database interface used by [Tier]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Pinger is implemented by *pgxpool.Pool and *pgx.Conn; used for readiness
// checks when available.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Tier is the authoritative [tier.Tier] backed by PostgreSQL.
type Tier struct {
	db DB
}

// Compile-time interface assertions.
var (
	_ tier.Tier    = (*Tier)(nil)
	_ tier.Deleter = (*Tier)(nil)
)

// New creates a postgres tier using the given connection or pool. The caller
// is responsible for calling [Tier.Migrate] before issuing queries.
func New(db DB) *Tier {
	return &Tier{db: db}
}

// Migrate executes the [Schema] DDL, creating the cache tables and indexes
// if they do not already exist.
func (t *Tier) Migrate(ctx context.Context) error {
	_, err := t.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Get retrieves the payload for key. Returns [tier.ErrNotFound] when no
// record exists.
func (t *Tier) Get(ctx context.Context, key asset.Key) ([]byte, error) {
	var (
		payload []byte
		err     error
	)
	switch key.Kind {
	case asset.KindAudio:
		const query = `SELECT audio FROM tts_cache WHERE hanzi = $1`
		err = t.db.QueryRow(ctx, query, key.Text).Scan(&payload)
	case asset.KindStroke:
		const query = `SELECT gif_data FROM stroke_gifs WHERE character = $1 AND stroke_order = $2`
		err = t.db.QueryRow(ctx, query, key.Character, key.Ordinal).Scan(&payload)
	default:
		return nil, fmt.Errorf("postgres: get: unknown key kind %q", key.Kind)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tier.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get %s: %w", key, err)
	}
	return payload, nil
}

// Put stores payload for key as an upsert. Re-writing an existing key
// replaces its payload and refreshes created_at, which also restarts the
// retention clock for the entry.
func (t *Tier) Put(ctx context.Context, key asset.Key, payload []byte) error {
	var err error
	switch key.Kind {
	case asset.KindAudio:
		const query = `
			INSERT INTO tts_cache (hanzi, audio)
			VALUES ($1, $2)
			ON CONFLICT (hanzi) DO UPDATE SET
				audio = EXCLUDED.audio,
				created_at = now()`
		_, err = t.db.Exec(ctx, query, key.Text, payload)
	case asset.KindStroke:
		const query = `
			INSERT INTO stroke_gifs (character, stroke_order, gif_data)
			VALUES ($1, $2, $3)
			ON CONFLICT (character, stroke_order) DO UPDATE SET
				gif_data = EXCLUDED.gif_data,
				created_at = now()`
		_, err = t.db.Exec(ctx, query, key.Character, key.Ordinal, payload)
	default:
		return fmt.Errorf("postgres: put: unknown key kind %q", key.Kind)
	}
	if err != nil {
		return fmt.Errorf("postgres: put %s: %w", key, err)
	}
	return nil
}

// Delete removes the record for key. Deleting a non-existent record is not
// an error.
func (t *Tier) Delete(ctx context.Context, key asset.Key) error {
	var err error
	switch key.Kind {
	case asset.KindAudio:
		_, err = t.db.Exec(ctx, `DELETE FROM tts_cache WHERE hanzi = $1`, key.Text)
	case asset.KindStroke:
		_, err = t.db.Exec(ctx, `DELETE FROM stroke_gifs WHERE character = $1 AND stroke_order = $2`, key.Character, key.Ordinal)
	default:
		return fmt.Errorf("postgres: delete: unknown key kind %q", key.Kind)
	}
	if err != nil {
		return fmt.Errorf("postgres: delete %s: %w", key, err)
	}
	return nil
}

// SweepAudio deletes all audio entries created before cutoff and returns
// their keys so the caller can cascade the deletion into accelerator tiers.
func (t *Tier) SweepAudio(ctx context.Context, cutoff time.Time) ([]asset.Key, error) {
	const query = `DELETE FROM tts_cache WHERE created_at < $1 RETURNING hanzi`
	rows, err := t.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("postgres: sweep audio: %w", err)
	}
	defer rows.Close()

	var keys []asset.Key
	for rows.Next() {
		var hanzi string
		if err := rows.Scan(&hanzi); err != nil {
			return keys, fmt.Errorf("postgres: sweep audio scan: %w", err)
		}
		keys = append(keys, asset.AudioKey(hanzi))
	}
	if err := rows.Err(); err != nil {
		return keys, fmt.Errorf("postgres: sweep audio: %w", err)
	}
	return keys, nil
}

// SweepStrokes deletes all stroke entries created before cutoff and returns
// their keys.
func (t *Tier) SweepStrokes(ctx context.Context, cutoff time.Time) ([]asset.Key, error) {
	const query = `DELETE FROM stroke_gifs WHERE created_at < $1 RETURNING character, stroke_order`
	rows, err := t.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("postgres: sweep strokes: %w", err)
	}
	defer rows.Close()

	var keys []asset.Key
	for rows.Next() {
		var (
			character string
			ordinal   int
		)
		if err := rows.Scan(&character, &ordinal); err != nil {
			return keys, fmt.Errorf("postgres: sweep strokes scan: %w", err)
		}
		keys = append(keys, asset.StrokeKey(character, ordinal))
	}
	if err := rows.Err(); err != nil {
		return keys, fmt.Errorf("postgres: sweep strokes: %w", err)
	}
	return keys, nil
}

// Ping probes database connectivity when the underlying DB supports it.
func (t *Tier) Ping(ctx context.Context) error {
	if p, ok := t.db.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: ping: %w", err)
		}
		return nil
	}
	if _, err := t.db.Exec(ctx, `SELECT 1`); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}
