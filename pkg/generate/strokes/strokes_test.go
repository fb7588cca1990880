package strokes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hanzicard/hanzicache/pkg/asset"
	"github.com/hanzicard/hanzicache/pkg/generate"
)

// newTestSource serves a character page with three stroke frames plus the
// frames themselves.
func newTestSource(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/character/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/character/学" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `<html><body>
			<img src="/strokes/xue_1.gif" alt="stroke 1">
			<img src='%s/strokes/xue_2.gif' alt="stroke 2">
			<img class="anim" src="/strokes/xue_3.gif">
			<img src="/logo.png">
		</body></html>`, srv.URL)
	})
	mux.HandleFunc("/strokes/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "gif:%s", r.URL.Path)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerator_FetchesRequestedFrame(t *testing.T) {
	srv := newTestSource(t)
	g, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	payload, err := g.Generate(context.Background(), asset.StrokeKey("学", 2))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if string(payload) != "gif:/strokes/xue_2.gif" {
		t.Errorf("payload = %q", payload)
	}
}

func TestGenerator_FrameURLs_OrderAndFiltering(t *testing.T) {
	srv := newTestSource(t)
	g, _ := New(srv.URL)

	urls, err := g.FrameURLs(context.Background(), "学")
	if err != nil {
		t.Fatalf("FrameURLs: %v", err)
	}
	if len(urls) != 3 {
		t.Fatalf("got %d frame URLs, want 3 (non-gif images must be skipped)", len(urls))
	}
	if urls[0] != srv.URL+"/strokes/xue_1.gif" {
		t.Errorf("urls[0] = %q", urls[0])
	}
	// Absolute URL in the page must survive untouched.
	if urls[1] != srv.URL+"/strokes/xue_2.gif" {
		t.Errorf("urls[1] = %q", urls[1])
	}
}

func TestGenerator_UnknownCharacter(t *testing.T) {
	srv := newTestSource(t)
	g, _ := New(srv.URL)

	_, err := g.Generate(context.Background(), asset.StrokeKey("冇", 1))
	if !errors.Is(err, generate.ErrCharacterNotFound) {
		t.Fatalf("err = %v, want ErrCharacterNotFound", err)
	}
}

func TestGenerator_OrdinalOutOfRange(t *testing.T) {
	srv := newTestSource(t)
	g, _ := New(srv.URL)

	_, err := g.Generate(context.Background(), asset.StrokeKey("学", 9))
	if !errors.Is(err, generate.ErrCharacterNotFound) {
		t.Fatalf("err = %v, want ErrCharacterNotFound", err)
	}
}

func TestGenerator_PageWithoutFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body>no animations here</body></html>")
	}))
	defer srv.Close()

	g, _ := New(srv.URL)
	_, err := g.Generate(context.Background(), asset.StrokeKey("学", 1))
	if !errors.Is(err, generate.ErrCharacterNotFound) {
		t.Fatalf("err = %v, want ErrCharacterNotFound", err)
	}
}

func TestGenerator_RejectsAudioKeys(t *testing.T) {
	g, _ := New("http://example.invalid")
	if _, err := g.Generate(context.Background(), asset.AudioKey("你好")); err == nil {
		t.Fatal("Generate should reject audio keys")
	}
}

func TestNew_EmptyBaseURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("New with empty baseURL should error")
	}
}
