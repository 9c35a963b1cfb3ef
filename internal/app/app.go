// Package app wires configuration, storage, the pipeline, the scheduler
// and the web server into one runnable unit.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/voxanet/adwin/internal/analyzer"
	"github.com/voxanet/adwin/internal/analyzer/providers"
	"github.com/voxanet/adwin/internal/config"
	"github.com/voxanet/adwin/internal/fbads"
	"github.com/voxanet/adwin/internal/imagegen"
	"github.com/voxanet/adwin/internal/media"
	"github.com/voxanet/adwin/internal/pipeline"
	"github.com/voxanet/adwin/internal/report"
	"github.com/voxanet/adwin/internal/scheduler"
	"github.com/voxanet/adwin/internal/store"
	"github.com/voxanet/adwin/internal/web"
)

// App holds the application state.
type App struct {
	Config    *config.Config
	Store     *store.Store
	Runner    *pipeline.Runner
	Scheduler *scheduler.Scheduler

	server *http.Server
}

// New builds the full dependency graph from config.
func New(cfg *config.Config) (*App, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("prepare data directories: %w", err)
	}

	st, err := store.New(cfg.DataPath("adwin.db"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	renderer, err := report.New()
	if err != nil {
		st.Close()
		return nil, err
	}

	newAds := AdsFactory(cfg)
	downloader := media.NewDownloader(cfg.DataPath("tmp", "media"), cfg.Pipeline.Headless)
	llm := &settingsAnalyzer{cfg: cfg, store: st}

	var images pipeline.ImageGenerator
	if cfg.ImageGen.Enabled {
		images = imagegen.New(cfg.ImageGen.APIKey, cfg.ImageGen.Model)
	}

	runner := pipeline.NewRunner(cfg, st, renderer, newAds, downloader, llm, images)
	sched := scheduler.New(cfg, st, newAds)

	srv, err := web.NewServer(cfg, st, runner)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &App{
		Config:    cfg,
		Store:     st,
		Runner:    runner,
		Scheduler: sched,
		server: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// AdsFactory builds per-client winning-ads sources, folding the client's
// own thresholds over the configured defaults.
func AdsFactory(cfg *config.Config) func(c store.Client) pipeline.AdsSource {
	return func(c store.Client) pipeline.AdsSource {
		opts := fbads.Options{
			CacheDir:       cfg.DataPath("facebook_cache"),
			CacheTTL:       time.Duration(cfg.Facebook.CacheTTLHours) * time.Hour,
			SpendThreshold: cfg.Facebook.SpendThreshold,
			CPAThreshold:   cfg.Facebook.CPAThreshold,
			SortBy:         cfg.Facebook.SortBy,
			WindowDays:     cfg.Facebook.WindowDays,
		}
		if c.SpendThreshold != nil {
			opts.SpendThreshold = *c.SpendThreshold
		}
		if c.CPAThreshold != nil {
			opts.CPAThreshold = *c.CPAThreshold
		}
		return fbads.New(c.AccessToken, c.AdAccountID, opts)
	}
}

// Run starts everything and blocks until ctx is canceled, then shuts
// down in reverse order.
func (a *App) Run(ctx context.Context) error {
	a.Runner.Start()
	if err := a.Scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[app] listening on http://%s", a.Config.Server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("[app] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[app] http shutdown: %v", err)
	}

	a.Scheduler.Stop()
	a.Runner.Close()
	return a.Store.Close()
}

// settingsAnalyzer resolves the API key at job time so a key saved
// through the settings page takes effect without a restart.
type settingsAnalyzer struct {
	cfg   *config.Config
	store *store.Store

	mu    sync.Mutex
	key   string
	inner *analyzer.Analyzer
}

func (s *settingsAnalyzer) resolveKey() string {
	if key, err := s.store.GetSetting("gemini_api_key"); err == nil && key != "" {
		return key
	}
	return s.cfg.Analysis.APIKey
}

func (s *settingsAnalyzer) current() (*analyzer.Analyzer, error) {
	key := s.resolveKey()
	if key == "" {
		return nil, fmt.Errorf("no analysis API key configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inner != nil && s.key == key {
		return s.inner, nil
	}

	uploadTimeout := time.Duration(s.cfg.Analysis.UploadTimeout) * time.Second

	var primary analyzer.Provider
	switch s.cfg.Analysis.Provider {
	case "anthropic":
		primary = providers.NewAnthropicProvider(key, s.cfg.Analysis.Model)
	default:
		primary = providers.NewGeminiProvider(key, s.cfg.Analysis.Model, uploadTimeout)
	}

	var fallbacks []analyzer.Provider
	for _, model := range s.cfg.Analysis.FallbackModels {
		fallbacks = append(fallbacks, providers.NewGeminiProvider(key, model, uploadTimeout))
	}

	s.key = key
	s.inner = analyzer.New(primary, fallbacks...)
	return s.inner, nil
}

func (s *settingsAnalyzer) Analyze(ctx context.Context, ad fbads.Ad, mediaPath, mediaType string) (*analyzer.Result, error) {
	a, err := s.current()
	if err != nil {
		return nil, err
	}
	return a.Analyze(ctx, ad, mediaPath, mediaType)
}
