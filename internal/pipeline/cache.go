package pipeline

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/voxanet/adwin/internal/fbads"
	"github.com/voxanet/adwin/internal/report"
)

// cacheEntry is one ad's finished analysis, persisted per client so a
// re-run skips the paid API calls when the artifacts still exist.
type cacheEntry struct {
	MediaType    string       `json:"media_type"`
	MediaPath    string       `json:"media_path"`
	AnalysisText string       `json:"analysis_text"`
	ScriptText   string       `json:"script_text"`
	Concepts     []conceptRef `json:"generated_images,omitempty"`
	InputTokens  int          `json:"input_tokens"`
	OutputTokens int          `json:"output_tokens"`
	ImageCount   int          `json:"image_count"`
}

type conceptRef struct {
	Prompt string `json:"prompt"`
	Path   string `json:"path"`
}

// usable reports whether every artifact the entry references still
// exists on disk.
func (e cacheEntry) usable() bool {
	if e.MediaPath == "" {
		return false
	}
	if _, err := os.Stat(e.MediaPath); err != nil {
		return false
	}
	for _, c := range e.Concepts {
		if _, err := os.Stat(c.Path); err != nil {
			return false
		}
	}
	return true
}

func (e cacheEntry) outcome(ad fbads.Ad) adOutcome {
	out := adOutcome{
		Ad:           ad,
		MediaType:    e.MediaType,
		MediaPath:    e.MediaPath,
		AnalysisText: e.AnalysisText,
		ScriptText:   e.ScriptText,
		InputTokens:  e.InputTokens,
		OutputTokens: e.OutputTokens,
		ImageCount:   e.ImageCount,
	}
	for _, c := range e.Concepts {
		out.Concepts = append(out.Concepts, report.ConceptImage{Prompt: c.Prompt, Path: c.Path})
	}
	return out
}

func cacheEntryFrom(out adOutcome) cacheEntry {
	e := cacheEntry{
		MediaType:    out.MediaType,
		MediaPath:    out.MediaPath,
		AnalysisText: out.AnalysisText,
		ScriptText:   out.ScriptText,
		InputTokens:  out.InputTokens,
		OutputTokens: out.OutputTokens,
		ImageCount:   out.ImageCount,
	}
	for _, c := range out.Concepts {
		e.Concepts = append(e.Concepts, conceptRef{Prompt: c.Prompt, Path: c.Path})
	}
	return e
}

// loadAnalysisCache reads the per-client cache; any problem is a miss.
func loadAnalysisCache(path string) map[string]cacheEntry {
	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return map[string]cacheEntry{}
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return map[string]cacheEntry{}
	}
	var cache map[string]cacheEntry
	if err := json.Unmarshal(data, &cache); err != nil {
		log.Printf("[pipeline] malformed analysis cache %s: %v", path, err)
		return map[string]cacheEntry{}
	}
	return cache
}

// saveAnalysisCache writes the cache atomically under an exclusive lock.
func saveAnalysisCache(path string, cache map[string]cacheEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
