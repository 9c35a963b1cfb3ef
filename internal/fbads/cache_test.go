package fbads

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestCacheRoundTrip(t *testing.T) {
	c := New("tok", "123", Options{CacheDir: t.TempDir()})

	want := []Ad{{ID: "a1", Name: "Winner", Insights: &Insights{Spend: 3500, CPA: 500}}}
	if err := c.saveCache(want); err != nil {
		t.Fatalf("saveCache: %v", err)
	}

	got, ok := c.loadCache()
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 1 || got[0].ID != "a1" || got[0].Insights.Spend != 3500 {
		t.Errorf("cache = %+v", got)
	}
}

func TestCacheExpiresByMtime(t *testing.T) {
	c := New("tok", "123", Options{CacheDir: t.TempDir(), CacheTTL: 24 * time.Hour})
	if err := c.saveCache([]Ad{{ID: "a1"}}); err != nil {
		t.Fatalf("saveCache: %v", err)
	}

	// Age the file past the TTL.
	stale := time.Now().Add(-25 * time.Hour)
	if err := os.Chtimes(c.cachePath(), stale, stale); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	if _, ok := c.loadCache(); ok {
		t.Fatal("stale cache must be ignored")
	}
}

func TestMalformedCacheIsAMiss(t *testing.T) {
	dir := t.TempDir()
	c := New("tok", "123", Options{CacheDir: dir})
	if err := os.WriteFile(filepath.Join(dir, "facebook_cache_123.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.loadCache(); ok {
		t.Fatal("malformed cache must be ignored")
	}
}

func TestAdHocFiltersBypassCache(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/act_123/ads", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"data":[]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := New("tok", "123", Options{BaseURL: srv.URL, CacheDir: t.TempDir()})
	if err := c.saveCache([]Ad{{ID: "cached"}}); err != nil {
		t.Fatalf("saveCache: %v", err)
	}

	// Default filters hit the fresh cache, no API call.
	if ads := c.WinningAds(context.Background(), Filters{}); len(ads) != 1 || ads[0].ID != "cached" {
		t.Fatalf("default filters should serve cache, got %v", ads)
	}
	if hits.Load() != 0 {
		t.Fatalf("API hit on cached read: %d", hits.Load())
	}

	// An ad-hoc spend filter must go to the API and leave the cache alone.
	spend := 100.0
	c.WinningAds(context.Background(), Filters{SpendMin: &spend})
	if hits.Load() == 0 {
		t.Fatal("ad-hoc filter should bypass cache")
	}
	if ads, ok := c.loadCache(); !ok || len(ads) != 1 || ads[0].ID != "cached" {
		t.Errorf("ad-hoc query must not refresh the cache, got %v", ads)
	}
}
