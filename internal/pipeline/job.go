package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/voxanet/adwin/internal/analyzer"
	"github.com/voxanet/adwin/internal/fbads"
	"github.com/voxanet/adwin/internal/report"
	"github.com/voxanet/adwin/internal/store"
)

// adOutcome is the finished analysis of a single ad.
type adOutcome struct {
	Ad           fbads.Ad
	MediaType    string
	MediaPath    string
	AnalysisText string
	ScriptText   string
	Concepts     []report.ConceptImage
	InputTokens  int
	OutputTokens int
	ImageCount   int
}

// RunJob executes one analysis run synchronously. Workers call it from
// the pool; adwinctl calls it directly.
func (r *Runner) RunJob(ctx context.Context, job Job) error {
	if err := r.store.TransitionReport(job.ReportID, store.StatusPending, store.StatusRunning); err != nil {
		return fmt.Errorf("report %d not in PENDING: %w", job.ReportID, err)
	}
	log.Printf("[pipeline] report %d: starting %s run for client %q", job.ReportID, job.MediaType, job.Client.Name)

	if err := r.runReport(ctx, job); err != nil {
		if ferr := r.store.FailReport(job.ReportID, err.Error()); ferr != nil {
			log.Printf("[pipeline] report %d: recording failure: %v", job.ReportID, ferr)
		}
		return err
	}
	log.Printf("[pipeline] report %d: completed", job.ReportID)
	return nil
}

func (r *Runner) runReport(ctx context.Context, job Job) error {
	ads := r.newAds(job.Client).WinningAds(ctx, job.Filters)
	if len(ads) == 0 {
		return fmt.Errorf("no winning ads found for client %q", job.Client.Name)
	}

	selected := selectAds(ads, job)
	if len(selected) == 0 {
		return fmt.Errorf("no winning ads with usable %s media", job.MediaType)
	}

	cachePath := r.cfg.DataPath("analysis_cache", fmt.Sprintf("analysis_%d.json", job.Client.ID))
	cache := loadAnalysisCache(cachePath)

	var outcomes []adOutcome
	for _, ad := range selected {
		out, err := r.processAd(ctx, job, cache, ad)
		if err != nil {
			log.Printf("[pipeline] report %d: ad %s failed: %v", job.ReportID, ad.ID, err)
			if rerr := r.store.RecordAnalysisError(job.ReportID, ad.ID, err.Error()); rerr != nil {
				log.Printf("[pipeline] report %d: recording ad error: %v", job.ReportID, rerr)
			}
			continue
		}
		cache[ad.ID] = cacheEntryFrom(out)
		outcomes = append(outcomes, out)
	}

	if err := saveAnalysisCache(cachePath, cache); err != nil {
		log.Printf("[pipeline] report %d: saving analysis cache: %v", job.ReportID, err)
	}

	if len(outcomes) == 0 {
		return fmt.Errorf("every selected ad failed analysis")
	}

	return r.finishReport(job, outcomes)
}

// selectAds picks which winning ads this run analyzes. Single-ad runs
// take the best ad carrying the requested medium; top runs take the
// first N ads that have any usable creative.
func selectAds(ads []fbads.Ad, job Job) []fbads.Ad {
	if job.MediaType != "top" {
		best, ok := fbads.BestAd(ads, job.MediaType)
		if !ok {
			return nil
		}
		return []fbads.Ad{best}
	}

	n := job.TopN
	if n <= 0 {
		n = 3
	}
	var selected []fbads.Ad
	for _, ad := range ads {
		if !ad.HasVideo() && !ad.HasImage() {
			continue
		}
		selected = append(selected, ad)
		if len(selected) == n {
			break
		}
	}
	return selected
}

func (r *Runner) processAd(ctx context.Context, job Job, cache map[string]cacheEntry, ad fbads.Ad) (adOutcome, error) {
	mediaType := job.MediaType
	if mediaType == "top" {
		if ad.HasVideo() {
			mediaType = "video"
		} else {
			mediaType = "image"
		}
	}

	if entry, ok := cache[ad.ID]; ok && entry.usable() {
		log.Printf("[pipeline] ad %s: using cached analysis", ad.ID)
		return entry.outcome(ad), nil
	}

	var mediaPath string
	var err error
	switch mediaType {
	case "video":
		if !ad.HasVideo() {
			return adOutcome{}, fmt.Errorf("ad %s has no video creative", ad.ID)
		}
		mediaPath, err = r.media.DownloadVideo(ctx, ad.VideoID, ad.ID)
	default:
		if !ad.HasImage() {
			return adOutcome{}, fmt.Errorf("ad %s has no image creative", ad.ID)
		}
		mediaPath, err = r.media.DownloadImage(ctx, ad.ImageURL, ad.ID)
	}
	if err != nil {
		return adOutcome{}, fmt.Errorf("download media: %w", err)
	}

	res, err := r.llm.Analyze(ctx, ad, mediaPath, mediaType)
	if err != nil {
		return adOutcome{}, fmt.Errorf("analyze media: %w", err)
	}

	analysisText, scriptText := analyzer.SplitResponse(res.Text)
	out := adOutcome{
		Ad:           ad,
		MediaType:    mediaType,
		AnalysisText: analysisText,
		ScriptText:   scriptText,
		InputTokens:  res.Usage.InputTokens,
		OutputTokens: res.Usage.OutputTokens,
	}

	out.Concepts = r.generateConcepts(ctx, ad.ID, analyzer.ExtractImagePrompts(res.Text), filepath.Dir(mediaPath))
	out.ImageCount = len(out.Concepts)

	storageDir := r.cfg.DataPath("storage")
	out.MediaPath, err = moveFile(mediaPath, storageDir)
	if err != nil {
		return adOutcome{}, fmt.Errorf("move media to storage: %w", err)
	}
	for i := range out.Concepts {
		moved, err := moveFile(out.Concepts[i].Path, storageDir)
		if err != nil {
			log.Printf("[pipeline] ad %s: move concept image: %v", ad.ID, err)
			continue
		}
		out.Concepts[i].Path = moved
	}

	return out, nil
}

// generateConcepts renders up to the configured number of concept
// images. Generation failures only cost us the image.
func (r *Runner) generateConcepts(ctx context.Context, adID string, prompts []string, dir string) []report.ConceptImage {
	if r.images == nil || !r.cfg.ImageGen.Enabled || len(prompts) == 0 {
		return nil
	}

	max := r.cfg.ImageGen.MaxImages
	if max <= 0 {
		max = 3
	}
	if len(prompts) > max {
		prompts = prompts[:max]
	}

	var concepts []report.ConceptImage
	for i, prompt := range prompts {
		outPath := filepath.Join(dir, fmt.Sprintf("generated_concept_%s_%d.png", adID, i+1))
		if err := r.images.Generate(ctx, prompt, outPath); err != nil {
			log.Printf("[pipeline] ad %s: concept image %d failed: %v", adID, i+1, err)
			continue
		}
		concepts = append(concepts, report.ConceptImage{Prompt: prompt, Path: outPath})
	}
	return concepts
}

// finishReport persists scripts, renders the HTML report, and moves the
// report row to COMPLETED.
func (r *Runner) finishReport(job Job, outcomes []adOutcome) error {
	adIDs := make([]string, 0, len(outcomes))
	var analysisCost, generationCost float64

	for _, out := range outcomes {
		adIDs = append(adIDs, out.Ad.ID)
		analysisCost += r.tokenCost(out.InputTokens, out.OutputTokens)
		generationCost += float64(out.ImageCount) * r.cfg.Pricing.PerImage

		scriptHTML, err := r.renderer.MarkdownHTML(out.ScriptText)
		if err != nil {
			return fmt.Errorf("render script for ad %s: %w", out.Ad.ID, err)
		}
		if err := r.store.SaveAdScript(job.ReportID, out.Ad.ID, scriptHTML); err != nil {
			return fmt.Errorf("save script for ad %s: %w", out.Ad.ID, err)
		}
	}

	if err := r.store.SetReportAdIDs(job.ReportID, adIDs); err != nil {
		return fmt.Errorf("record ad ids: %w", err)
	}

	// The stored report page and inline columns show the lead ad; the
	// rest stay reachable through their ad_scripts rows.
	lead := outcomes[0]
	reportPath, err := r.renderer.Write(r.cfg.DataPath("reports"), report.RenderData{
		ClientName:    job.Client.Name,
		Ad:            lead.Ad,
		MediaType:     lead.MediaType,
		MediaPath:     lead.MediaPath,
		AnalysisText:  lead.AnalysisText,
		ScriptText:    lead.ScriptText,
		ConceptImages: lead.Concepts,
	})
	if err != nil {
		return fmt.Errorf("write report file: %w", err)
	}

	analysisHTML, err := r.renderer.MarkdownHTML(lead.AnalysisText)
	if err != nil {
		return fmt.Errorf("render analysis: %w", err)
	}
	scriptHTML, err := r.renderer.MarkdownHTML(lead.ScriptText)
	if err != nil {
		return fmt.Errorf("render script: %w", err)
	}

	return r.store.CompleteReport(job.ReportID, store.ReportResult{
		AnalysisHTML:   analysisHTML,
		ScriptHTML:     scriptHTML,
		AnalysisCost:   analysisCost,
		GenerationCost: generationCost,
		ReportPath:     reportPath,
	})
}

// tokenCost converts token usage to USD with the configured rates.
func (r *Runner) tokenCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*r.cfg.Pricing.InputPerMillion/1e6 +
		float64(outputTokens)*r.cfg.Pricing.OutputPerMillion/1e6
}

// moveFile relocates path into dir, copying when rename crosses
// filesystems. Returns the new path.
func moveFile(path, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	dst := filepath.Join(dir, filepath.Base(path))
	if err := os.Rename(path, dst); err == nil {
		return dst, nil
	}

	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, src); err != nil {
		return "", err
	}
	os.Remove(path)
	return dst, nil
}
