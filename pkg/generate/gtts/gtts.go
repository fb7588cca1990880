// Package gtts provides the audio generator backed by the Google Translate
// text-to-speech endpoint. It fetches an MP3 clip for normalized hanzi text.
//
// The endpoint is unauthenticated but rate-limited and occasionally flaky, so
// a failed call is retried exactly once before the error is surfaced.
package gtts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hanzicard/hanzicache/pkg/asset"
	"github.com/hanzicard/hanzicache/pkg/generate"
)

const (
	defaultBaseURL = "https://translate.google.com"
	defaultLang    = "zh-CN"
	defaultTimeout = 10 * time.Second
)

// maxClipSize caps the audio response body (4 MiB is far beyond any clip the
// endpoint produces).
const maxClipSize = 4 << 20

// Option is a functional option for configuring the Generator.
type Option func(*Generator)

// WithBaseURL overrides the endpoint base URL. Useful in tests.
func WithBaseURL(base string) Option {
	return func(g *Generator) { g.baseURL = base }
}

// WithLanguage sets the TTS language tag (default "zh-CN").
func WithLanguage(lang string) Option {
	return func(g *Generator) { g.lang = lang }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Generator) { g.httpClient = c }
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) { g.timeout = d }
}

// Generator implements generate.Generator for audio keys.
type Generator struct {
	baseURL    string
	lang       string
	timeout    time.Duration
	httpClient *http.Client
}

// Compile-time interface assertion.
var _ generate.Generator = (*Generator)(nil)

// New creates a Google Translate TTS generator.
func New(opts ...Option) *Generator {
	g := &Generator{
		baseURL:    defaultBaseURL,
		lang:       defaultLang,
		timeout:    defaultTimeout,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate synthesises an MP3 clip for the key's text. Transport errors and
// 5xx responses are retried once; a 4xx means the engine rejected the text
// and maps to [generate.ErrUnsupportedText] without retry.
func (g *Generator) Generate(ctx context.Context, key asset.Key) ([]byte, error) {
	if key.Kind != asset.KindAudio {
		return nil, fmt.Errorf("gtts: cannot generate %s keys", key.Kind)
	}

	payload, err := g.fetch(ctx, key.Text)
	if err == nil || errors.Is(err, generate.ErrUnsupportedText) || ctx.Err() != nil {
		return payload, err
	}

	// Retryable-once per the engine's observed flakiness.
	payload, retryErr := g.fetch(ctx, key.Text)
	if retryErr != nil {
		return nil, fmt.Errorf("gtts: %s: retry failed: %w (first attempt: %v)", key, retryErr, err)
	}
	return payload, nil
}

// fetch performs a single synthesis request.
func (g *Generator) fetch(ctx context.Context, text string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", g.lang)
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/translate_tts?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("gtts: build request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gtts: request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		payload, err := io.ReadAll(io.LimitReader(resp.Body, maxClipSize))
		if err != nil {
			return nil, fmt.Errorf("gtts: read body: %w", err)
		}
		if len(payload) == 0 {
			return nil, errors.New("gtts: engine returned an empty clip")
		}
		return payload, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("%w: engine returned %d", generate.ErrUnsupportedText, resp.StatusCode)
	default:
		return nil, fmt.Errorf("gtts: unexpected status %d", resp.StatusCode)
	}
}
