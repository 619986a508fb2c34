package scene

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newRedisCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := NewRedisCache(mr.Addr(), ttl)
	t.Cleanup(func() { rc.Close() })
	if err := rc.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	return rc, mr
}

func TestCachesShareContract(t *testing.T) {
	rc, _ := newRedisCache(t, time.Hour)
	caches := map[string]Cache{
		"memory": NewMemoryCache(),
		"redis":  rc,
	}

	ctx := context.Background()
	for name, c := range caches {
		if _, ok := c.Get(ctx, "scene:tesla|model y|electric"); ok {
			t.Fatalf("%s: expected a miss on an empty cache", name)
		}
		if err := c.Set(ctx, "scene:tesla|model y|electric", "https://img.example/y.png"); err != nil {
			t.Fatalf("%s: set: %v", name, err)
		}
		got, ok := c.Get(ctx, "scene:tesla|model y|electric")
		if !ok || got != "https://img.example/y.png" {
			t.Fatalf("%s: get = %q, %v", name, got, ok)
		}
		if err := c.Set(ctx, "scene:tesla|model y|electric", "https://img.example/y2.png"); err != nil {
			t.Fatalf("%s: overwrite: %v", name, err)
		}
		if got, _ := c.Get(ctx, "scene:tesla|model y|electric"); got != "https://img.example/y2.png" {
			t.Fatalf("%s: expected overwritten value, got %q", name, got)
		}
	}
}

func TestRedisCacheExpires(t *testing.T) {
	rc, mr := newRedisCache(t, time.Hour)
	ctx := context.Background()

	if err := rc.Set(ctx, "scene:kia|ev6|electric", "https://img.example/ev6.png"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ttl := mr.TTL("scene:kia|ev6|electric"); ttl != time.Hour {
		t.Fatalf("ttl = %v, want 1h", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, ok := rc.Get(ctx, "scene:kia|ev6|electric"); ok {
		t.Fatalf("expected the entry to expire")
	}
}

func TestRedisCacheMissesWhenServerIsGone(t *testing.T) {
	rc, mr := newRedisCache(t, time.Hour)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, ok := rc.Get(ctx, "scene:ford|ranger|large_ute"); ok {
		t.Fatalf("expected a miss without a server")
	}
	if err := rc.Set(ctx, "scene:ford|ranger|large_ute", "x"); err == nil {
		t.Fatalf("expected set to fail without a server")
	}
}

func TestClientImageUsesRedisCache(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"url":"https://img.example/ranger.png"}]}`))
	}))
	defer srv.Close()

	rc, _ := newRedisCache(t, time.Hour)
	for i := 0; i < 2; i++ {
		// A fresh client each time so only Redis can remember the image.
		c := NewClient(Config{APIKey: "test-key", APIURL: srv.URL}, rc)
		url, err := c.Image(context.Background(), "Ford", "Ranger", "large_ute")
		if err != nil {
			t.Fatalf("image: %v", err)
		}
		if url != "https://img.example/ranger.png" {
			t.Fatalf("unexpected url %q", url)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected one upstream call, got %d", got)
	}
}
