// Package pipeline orchestrates an analysis run: winning-ad selection,
// media download, LLM analysis, concept-image generation, and the final
// report, driven by a bounded worker pool.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/voxanet/adwin/internal/analyzer"
	"github.com/voxanet/adwin/internal/config"
	"github.com/voxanet/adwin/internal/fbads"
	"github.com/voxanet/adwin/internal/report"
	"github.com/voxanet/adwin/internal/store"
)

// AdsSource lists winning ads for a client account.
type AdsSource interface {
	WinningAds(ctx context.Context, f fbads.Filters) []fbads.Ad
}

// MediaFetcher downloads ad creatives to local files.
type MediaFetcher interface {
	DownloadImage(ctx context.Context, imageURL, adID string) (string, error)
	DownloadVideo(ctx context.Context, videoID, adID string) (string, error)
}

// AdAnalyzer runs one creative through the LLM.
type AdAnalyzer interface {
	Analyze(ctx context.Context, ad fbads.Ad, mediaPath, mediaType string) (*analyzer.Result, error)
}

// ImageGenerator renders one concept image per prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt, outPath string) error
}

// Job is one queued analysis run.
type Job struct {
	ReportID  int64
	Client    store.Client
	MediaType string // "image", "video" or "top"
	TopN      int    // used when MediaType == "top"
	Filters   fbads.Filters
}

// Runner owns the worker pool and the per-job pipeline.
type Runner struct {
	cfg      *config.Config
	store    *store.Store
	renderer *report.Renderer

	// newAds builds an ads source per client, so each job carries the
	// client's own token and account.
	newAds func(c store.Client) AdsSource
	media  MediaFetcher
	llm    AdAnalyzer
	images ImageGenerator // nil when generation is disabled

	jobs   chan Job
	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewRunner wires the pipeline dependencies.
func NewRunner(cfg *config.Config, st *store.Store, renderer *report.Renderer,
	newAds func(c store.Client) AdsSource, media MediaFetcher, llm AdAnalyzer, images ImageGenerator) *Runner {
	return &Runner{
		cfg:      cfg,
		store:    st,
		renderer: renderer,
		newAds:   newAds,
		media:    media,
		llm:      llm,
		images:   images,
		jobs:     make(chan Job, 32),
	}
}

// Start launches the worker pool.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	workers := r.cfg.Pipeline.Workers
	if workers <= 0 {
		workers = 2
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.workerLoop(ctx, i)
	}
	log.Printf("[pipeline] started %d workers", workers)
}

func (r *Runner) workerLoop(ctx context.Context, id int) {
	defer r.wg.Done()
	for job := range r.jobs {
		if ctx.Err() != nil {
			// Shutdown in progress: mark whatever is still queued as
			// failed rather than leaving it PENDING forever.
			if err := r.store.FailReport(job.ReportID, "server shut down before the run started"); err != nil {
				log.Printf("[pipeline] worker %d: fail queued report %d: %v", id, job.ReportID, err)
			}
			continue
		}
		if err := r.RunJob(ctx, job); err != nil {
			log.Printf("[pipeline] worker %d: report %d failed: %v", id, job.ReportID, err)
		}
	}
}

// Enqueue adds a job to the pool. Fails when the queue is full or the
// runner has been closed.
func (r *Runner) Enqueue(job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("pipeline is shut down")
	}
	select {
	case r.jobs <- job:
		return nil
	default:
		return fmt.Errorf("pipeline queue is full")
	}
}

// Close stops accepting jobs, cancels in-flight work, and waits for the
// workers to drain.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.jobs)
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	r.wg.Wait()
}
