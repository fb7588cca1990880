// Package strokes provides the stroke-frame generator backed by an external
// stroke-order dictionary site. Producing one frame is a two-step fetch:
// retrieve the character's page, extract the ordered stroke GIF URLs from its
// markup, then download the frame at the requested ordinal.
//
// The source is the slowest and least reliable external in the pipeline
// (page structure can change, characters can be missing), so failures are
// permanent for the call — retry policy belongs to the caller.
package strokes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/hanzicard/hanzicache/pkg/asset"
	"github.com/hanzicard/hanzicache/pkg/generate"
)

const defaultTimeout = 15 * time.Second

// maxFrameSize caps a downloaded GIF frame (8 MiB).
const maxFrameSize = 8 << 20

// maxPageSize caps the character page read while scanning for frame URLs.
const maxPageSize = 4 << 20

// frameURLPattern matches src attributes of stroke animation images on the
// character page, in document order.
var frameURLPattern = regexp.MustCompile(`(?i)<img[^>]+src=["']([^"']*strokes?[^"']*\.gif)["']`)

// Option is a functional option for configuring the Generator.
type Option func(*Generator)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Generator) { g.httpClient = c }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) { g.timeout = d }
}

// Generator implements generate.Generator for stroke keys.
type Generator struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// Compile-time interface assertion.
var _ generate.Generator = (*Generator)(nil)

// New creates a stroke-frame generator for the given source base URL
// (e.g. "https://dictionary.writtenchinese.com").
func New(baseURL string, opts ...Option) (*Generator, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("strokes: baseURL must not be empty")
	}
	g := &Generator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    defaultTimeout,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// Generate fetches the GIF frame for the key's (character, ordinal) pair.
// A missing character or an ordinal past the character's stroke count maps
// to [generate.ErrCharacterNotFound].
func (g *Generator) Generate(ctx context.Context, key asset.Key) ([]byte, error) {
	if key.Kind != asset.KindStroke {
		return nil, fmt.Errorf("strokes: cannot generate %s keys", key.Kind)
	}

	frames, err := g.FrameURLs(ctx, key.Character)
	if err != nil {
		return nil, err
	}
	if key.Ordinal > len(frames) {
		return nil, fmt.Errorf("%w: %q has %d strokes, ordinal %d requested",
			generate.ErrCharacterNotFound, key.Character, len(frames), key.Ordinal)
	}
	return g.fetchFrame(ctx, frames[key.Ordinal-1])
}

// FrameURLs fetches the character page and returns the absolute URLs of its
// stroke frames in stroke order.
func (g *Generator) FrameURLs(ctx context.Context, character string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	pageURL := g.baseURL + "/character/" + url.PathEscape(character)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("strokes: build request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("strokes: fetch page for %q: %w", character, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %q", generate.ErrCharacterNotFound, character)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("strokes: fetch page for %q: unexpected status %d", character, resp.StatusCode)
	}

	page, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("strokes: read page for %q: %w", character, err)
	}

	matches := frameURLPattern.FindAllStringSubmatch(string(page), -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no stroke frames on page for %q", generate.ErrCharacterNotFound, character)
	}

	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		urls = append(urls, g.absolute(m[1]))
	}
	return urls, nil
}

// fetchFrame downloads one GIF frame.
func (g *Generator) fetchFrame(ctx context.Context, frameURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, frameURL, nil)
	if err != nil {
		return nil, fmt.Errorf("strokes: build frame request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("strokes: fetch frame %s: %w", frameURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("strokes: fetch frame %s: unexpected status %d", frameURL, resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameSize))
	if err != nil {
		return nil, fmt.Errorf("strokes: read frame %s: %w", frameURL, err)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("strokes: frame %s is empty", frameURL)
	}
	return payload, nil
}

// absolute resolves a possibly-relative frame URL against the source base.
func (g *Generator) absolute(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	if strings.HasPrefix(u, "/") {
		return g.baseURL + u
	}
	return g.baseURL + "/" + u
}
