// Package server exposes the asset fetch pipeline over HTTP.
//
// Two endpoints serve learning assets:
//
//   - GET /api/audio?hanzi=<text>            — pronunciation MP3
//   - GET /api/stroke?hanzi=<char>&order=<n> — stroke-order GIF frame
//
// Errors are JSON objects with a single "error" field. Payload responses
// carry a long-lived Cache-Control header: entries are immutable until the
// retention sweeper removes them.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hanzicard/hanzicache/internal/observe"
	"github.com/hanzicard/hanzicache/pkg/asset"
	"github.com/hanzicard/hanzicache/pkg/generate"
)

// cacheControl is sent with every payload response. Generated assets never
// change for a given key, so clients may cache aggressively.
const cacheControl = "public, max-age=86400"

// Fetcher resolves a key to its payload through the tier cascade.
type Fetcher interface {
	Fetch(ctx context.Context, key asset.Key) ([]byte, error)
}

// Server holds the HTTP handlers for the asset API.
type Server struct {
	cache Fetcher
	log   *slog.Logger
}

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a Server over the given fetcher.
func New(cache Fetcher, opts ...Option) (*Server, error) {
	if cache == nil {
		return nil, errors.New("server: cache fetcher is required")
	}
	s := &Server{cache: cache, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register adds the asset API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/audio", s.handleAudio)
	mux.HandleFunc("GET /api/stroke", s.handleStroke)
}

// handleAudio serves the pronunciation MP3 for the hanzi query parameter.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("hanzi")
	if text == "" {
		writeError(w, http.StatusBadRequest, "missing required query parameter: hanzi")
		return
	}

	key := asset.AudioKey(text)
	if err := key.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.servePayload(w, r, key)
}

// handleStroke serves one stroke-order GIF frame for the hanzi and order
// query parameters.
func (s *Server) handleStroke(w http.ResponseWriter, r *http.Request) {
	char := r.URL.Query().Get("hanzi")
	if char == "" {
		writeError(w, http.StatusBadRequest, "missing required query parameter: hanzi")
		return
	}
	orderParam := r.URL.Query().Get("order")
	if orderParam == "" {
		writeError(w, http.StatusBadRequest, "missing required query parameter: order")
		return
	}
	order, err := strconv.Atoi(orderParam)
	if err != nil || order < 1 {
		writeError(w, http.StatusBadRequest, "order must be a positive integer")
		return
	}

	key := asset.StrokeKey(char, order)
	if err := key.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.servePayload(w, r, key)
}

// servePayload runs the fetch and writes the payload or the mapped error.
func (s *Server) servePayload(w http.ResponseWriter, r *http.Request, key asset.Key) {
	payload, err := s.cache.Fetch(r.Context(), key)
	if err != nil {
		s.writeFetchError(w, r, key, err)
		return
	}

	w.Header().Set("Content-Type", key.ContentType())
	w.Header().Set("Cache-Control", cacheControl)
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	_, _ = w.Write(payload)
}

// writeFetchError maps pipeline errors to HTTP statuses. Generator
// rejections are client errors; everything else is an upstream failure.
func (s *Server) writeFetchError(w http.ResponseWriter, r *http.Request, key asset.Key, err error) {
	switch {
	case errors.Is(err, generate.ErrCharacterNotFound):
		writeError(w, http.StatusNotFound, "no stroke-order data for this character")
	case errors.Is(err, generate.ErrUnsupportedText):
		writeError(w, http.StatusBadRequest, "text cannot be converted to speech")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Client went away or ran out of patience; 499-style close.
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		observe.Logger(r.Context()).Error("asset fetch failed",
			"key", key.ID(), "error", err)
		writeError(w, http.StatusBadGateway, "asset generation failed")
	}
}

// errorBody is the JSON error response shape.
type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}
