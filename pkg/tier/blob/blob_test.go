package blob

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/hanzicard/hanzicache/pkg/asset"
	"github.com/hanzicard/hanzicache/pkg/tier"
)

// fakeStore is a minimal in-memory Supabase-Storage-style server.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	lastAuth   string
	lastUpsert string
	lastCT     string
}

func (f *fakeStore) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastAuth = r.Header.Get("Authorization")

		path, err := url.PathUnescape(r.URL.EscapedPath())
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		switch r.Method {
		case http.MethodGet:
			data, ok := f.objects[path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write(data)
		case http.MethodPost:
			f.lastUpsert = r.Header.Get("x-upsert")
			f.lastCT = r.Header.Get("Content-Type")
			var buf bytes.Buffer
			buf.ReadFrom(r.Body)
			f.objects[path] = buf.Bytes()
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			if _, ok := f.objects[path]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			delete(f.objects, path)
			w.WriteHeader(http.StatusOK)
		case http.MethodHead:
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func newTestTier(t *testing.T) (*Tier, *fakeStore) {
	t.Helper()
	store := &fakeStore{objects: make(map[string][]byte)}
	srv := httptest.NewServer(store.handler())
	t.Cleanup(srv.Close)

	bt, err := New(srv.URL, "assets", "secret-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return bt, store
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "bucket", ""); err == nil {
		t.Error("empty baseURL should error")
	}
	if _, err := New("http://x", "", ""); err == nil {
		t.Error("empty bucket should error")
	}
}

func TestTier_PutGetRoundTrip(t *testing.T) {
	bt, store := newTestTier(t)
	ctx := context.Background()
	key := asset.StrokeKey("学", 3)

	if err := bt.Put(ctx, key, []byte("gif-bytes")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if store.lastUpsert != "true" {
		t.Errorf("x-upsert = %q, want true", store.lastUpsert)
	}
	if store.lastCT != "image/gif" {
		t.Errorf("Content-Type = %q, want image/gif", store.lastCT)
	}
	if store.lastAuth != "Bearer secret-key" {
		t.Errorf("Authorization = %q", store.lastAuth)
	}

	got, err := bt.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "gif-bytes" {
		t.Errorf("Get = %q", got)
	}
}

func TestTier_GetMissing(t *testing.T) {
	bt, _ := newTestTier(t)
	_, err := bt.Get(context.Background(), asset.AudioKey("没有"))
	if !errors.Is(err, tier.ErrNotFound) {
		t.Fatalf("Get = %v, want ErrNotFound", err)
	}
}

func TestTier_DeleteMissingIsNoError(t *testing.T) {
	bt, _ := newTestTier(t)
	if err := bt.Delete(context.Background(), asset.AudioKey("没有")); err != nil {
		t.Fatalf("Delete missing = %v, want nil", err)
	}
}

func TestTier_DeleteRemovesObject(t *testing.T) {
	bt, _ := newTestTier(t)
	ctx := context.Background()
	key := asset.AudioKey("你好")

	_ = bt.Put(ctx, key, []byte("mp3"))
	if err := bt.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := bt.Get(ctx, key); !errors.Is(err, tier.ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestTier_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	bt, err := New(srv.URL, "assets", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = bt.Get(context.Background(), asset.AudioKey("你好"))
	if err == nil || errors.Is(err, tier.ErrNotFound) {
		t.Fatalf("Get = %v, want transient error", err)
	}
}

func TestTier_TimeoutBoundsSlowStore(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	bt, err := New(srv.URL, "assets", "", WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	start := time.Now()
	_, err = bt.Get(context.Background(), asset.AudioKey("你好"))
	if err == nil {
		t.Fatal("Get should time out")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Get took %v, timeout not applied", elapsed)
	}
}
