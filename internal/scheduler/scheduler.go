// Package scheduler runs the periodic maintenance tasks: the nightly
// per-client cache warm and the temp-media sweep.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/voxanet/adwin/internal/config"
	"github.com/voxanet/adwin/internal/fbads"
	"github.com/voxanet/adwin/internal/pipeline"
	"github.com/voxanet/adwin/internal/store"
)

// tempMediaMaxAge is how long downloaded creatives may sit in tmp
// before the sweep removes them.
const tempMediaMaxAge = 48 * time.Hour

// Job represents a scheduled task.
type Job func(ctx context.Context) error

// Scheduler manages periodic tasks.
type Scheduler struct {
	cron *cron.Cron
	jobs map[string]cron.EntryID

	cfg    *config.Config
	store  *store.Store
	newAds func(c store.Client) pipeline.AdsSource
}

// New creates a scheduler for the given store and ads-source factory.
func New(cfg *config.Config, st *store.Store, newAds func(c store.Client) pipeline.AdsSource) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		jobs:   make(map[string]cron.EntryID),
		cfg:    cfg,
		store:  st,
		newAds: newAds,
	}
}

// AddJob adds a job with a cron schedule, e.g. "0 3 * * *".
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		log.Printf("[scheduler] Starting job: %s", name)
		start := time.Now()

		if err := job(ctx); err != nil {
			log.Printf("[scheduler] Job %s failed: %v", name, err)
		} else {
			log.Printf("[scheduler] Job %s completed in %v", name, time.Since(start))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.jobs[name] = entryID
	log.Printf("[scheduler] Added job: %s (schedule: %s)", name, schedule)
	return nil
}

// Start registers the standard jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if err := s.AddJob("cache-warm", "0 3 * * *", s.WarmCaches); err != nil {
		return err
	}
	if err := s.AddJob("tmp-sweep", "30 3 * * *", s.SweepTempMedia); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("[scheduler] Stopped")
}

// WarmCaches refreshes the winning-ads cache for every client so the
// first morning run serves from disk.
func (s *Scheduler) WarmCaches(ctx context.Context) error {
	clients, err := s.store.ListClients()
	if err != nil {
		return fmt.Errorf("list clients: %w", err)
	}

	for _, c := range clients {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ads := s.newAds(c).WinningAds(ctx, fbads.Filters{})
		log.Printf("[scheduler] warmed cache for client %q: %d winning ads", c.Name, len(ads))
	}
	return nil
}

// SweepTempMedia removes downloaded creatives older than 48h from the
// temp directory. Files in storage are untouched.
func (s *Scheduler) SweepTempMedia(ctx context.Context) error {
	dir := s.cfg.DataPath("tmp", "media")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read temp dir: %w", err)
	}

	cutoff := time.Now().Add(-tempMediaMaxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			log.Printf("[scheduler] sweep %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Printf("[scheduler] swept %d stale media files", removed)
	}
	return nil
}
