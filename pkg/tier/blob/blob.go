// Package blob provides the network object-store tier. It speaks the
// Supabase-Storage-style REST API (get/put/delete by path within a bucket,
// Bearer auth, upsert via the x-upsert header), which also fronts
// S3-compatible stores behind a storage gateway.
//
// Every request carries a bounded timeout so a slow or unreachable object
// store can never stall the whole lookup cascade.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hanzicard/hanzicache/pkg/asset"
	"github.com/hanzicard/hanzicache/pkg/tier"
)

// defaultTimeout bounds a single object-store round trip.
const defaultTimeout = 3 * time.Second

// maxObjectSize caps response bodies read from the store (16 MiB, matching
// the platform's upload limit).
const maxObjectSize = 16 << 20

// Option is a functional option for configuring the blob [Tier].
type Option func(*Tier)

// WithHTTPClient replaces the default HTTP client. Useful in tests.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Tier) { t.httpClient = c }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(t *Tier) { t.timeout = d }
}

// Tier is a [tier.Tier] backed by a Supabase-Storage-compatible object API.
//
// Tier is safe for concurrent use.
type Tier struct {
	baseURL    string // e.g. "https://xyz.supabase.co/storage/v1"
	bucket     string
	serviceKey string
	timeout    time.Duration
	httpClient *http.Client
}

// Compile-time interface assertions.
var (
	_ tier.Tier    = (*Tier)(nil)
	_ tier.Deleter = (*Tier)(nil)
)

// New creates a blob tier for the given storage endpoint and bucket.
// baseURL and bucket must be non-empty; serviceKey may be empty for stores
// that do not require auth.
func New(baseURL, bucket, serviceKey string, opts ...Option) (*Tier, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("blob: baseURL must not be empty")
	}
	if bucket == "" {
		return nil, fmt.Errorf("blob: bucket must not be empty")
	}
	t := &Tier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		bucket:     bucket,
		serviceKey: serviceKey,
		timeout:    defaultTimeout,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// objectURL builds the full URL for a key's object path. Path segments are
// escaped individually so hanzi characters survive the round trip.
func (t *Tier) objectURL(key asset.Key) string {
	parts := strings.Split(key.ObjectPath(), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return t.baseURL + "/object/" + t.bucket + "/" + strings.Join(parts, "/")
}

// Get downloads the object stored for key. A 404 (or the Supabase 400
// "not found" variant) maps to [tier.ErrNotFound]; any other failure is a
// transient tier error.
func (t *Tier) Get(ctx context.Context, key asset.Key) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.objectURL(key), nil)
	if err != nil {
		return nil, fmt.Errorf("blob: get %s: %w", key, err)
	}
	t.setAuth(req)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("blob: get %s: %w", key, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		payload, err := io.ReadAll(io.LimitReader(resp.Body, maxObjectSize))
		if err != nil {
			return nil, fmt.Errorf("blob: get %s: read body: %w", key, err)
		}
		return payload, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		// Supabase storage reports missing objects as 400 with an error
		// body; plain gateways use 404.
		return nil, tier.ErrNotFound
	default:
		return nil, fmt.Errorf("blob: get %s: unexpected status %d", key, resp.StatusCode)
	}
}

// Put uploads payload for key as a stable upsert.
func (t *Tier) Put(ctx context.Context, key asset.Key, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.objectURL(key), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("blob: put %s: %w", key, err)
	}
	t.setAuth(req)
	req.Header.Set("Content-Type", key.ContentType())
	req.Header.Set("x-upsert", "true")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("blob: put %s: %w", key, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("blob: put %s: unexpected status %d", key, resp.StatusCode)
	}
	return nil
}

// Delete removes the object for key. Deleting a missing object is not an
// error.
func (t *Tier) Delete(ctx context.Context, key asset.Key) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, t.objectURL(key), nil)
	if err != nil {
		return fmt.Errorf("blob: delete %s: %w", key, err)
	}
	t.setAuth(req)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("blob: delete %s: %w", key, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("blob: delete %s: unexpected status %d", key, resp.StatusCode)
	}
	return nil
}

// Ping checks that the bucket endpoint is reachable. Used by the readiness
// probe.
func (t *Tier) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, t.baseURL+"/bucket/"+t.bucket, nil)
	if err != nil {
		return fmt.Errorf("blob: ping: %w", err)
	}
	t.setAuth(req)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("blob: ping: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("blob: ping: storage returned %d", resp.StatusCode)
	}
	return nil
}

// setAuth attaches the Bearer token when a service key is configured.
func (t *Tier) setAuth(req *http.Request) {
	if t.serviceKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.serviceKey)
	}
}
