package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/voxanet/adwin/internal/config"
	"github.com/voxanet/adwin/internal/fbads"
	"github.com/voxanet/adwin/internal/pipeline"
	"github.com/voxanet/adwin/internal/store"
)

type countingAds struct{ calls *int }

func (c countingAds) WinningAds(ctx context.Context, _ fbads.Filters) []fbads.Ad {
	*c.calls++
	return nil
}

func newTestScheduler(t *testing.T) (*Scheduler, *store.Store, *config.Config, *int) {
	t.Helper()

	cfg := config.Default()
	cfg.Server.DataDir = t.TempDir()
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	st, err := store.New(cfg.DataPath("adwin.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	calls := 0
	s := New(cfg, st, func(store.Client) pipeline.AdsSource { return countingAds{calls: &calls} })
	return s, st, cfg, &calls
}

func TestWarmCachesHitsEveryClient(t *testing.T) {
	s, st, _, calls := newTestScheduler(t)

	for _, name := range []string{"Acme", "Globex"} {
		if _, err := st.CreateClient(&store.Client{Name: name, AccessToken: "t", AdAccountID: "act_1"}); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.WarmCaches(context.Background()); err != nil {
		t.Fatalf("WarmCaches: %v", err)
	}
	if *calls != 2 {
		t.Errorf("winning-ads fetches = %d, want 2", *calls)
	}
}

func TestSweepTempMediaRemovesOnlyStaleFiles(t *testing.T) {
	s, _, cfg, _ := newTestScheduler(t)
	dir := cfg.DataPath("tmp", "media")

	stale := filepath.Join(dir, "old.mp4")
	fresh := filepath.Join(dir, "new.mp4")
	for _, p := range []string{stale, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	old := time.Now().Add(-49 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	if err := s.SweepTempMedia(context.Background()); err != nil {
		t.Fatalf("SweepTempMedia: %v", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale file survived the sweep")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh file was swept")
	}
}

func TestSweepMissingDirIsNoop(t *testing.T) {
	s, _, cfg, _ := newTestScheduler(t)
	if err := os.RemoveAll(cfg.DataPath("tmp", "media")); err != nil {
		t.Fatal(err)
	}
	if err := s.SweepTempMedia(context.Background()); err != nil {
		t.Errorf("SweepTempMedia on missing dir: %v", err)
	}
}
