// Package analyzer runs winning-ad creatives through an LLM and shapes
// the response into the analysis and script sections stored per ad.
package analyzer

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/voxanet/adwin/internal/fbads"
)

// Usage reports the token counts consumed by one analysis call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Result is the raw outcome of one provider call.
type Result struct {
	Text  string
	Usage Usage
	Model string
}

// Provider defines the interface for LLM providers that can read media.
type Provider interface {
	// AnalyzeImage analyzes a local image file alongside the ad's metrics.
	AnalyzeImage(ctx context.Context, path, prompt string) (*Result, error)
	// AnalyzeVideo analyzes a local video file alongside the ad's metrics.
	AnalyzeVideo(ctx context.Context, path, prompt string) (*Result, error)
	// Model returns the model identifier this provider calls.
	Model() string
}

// Analyzer runs a primary provider with an ordered fallback chain for
// transient failures.
type Analyzer struct {
	providers []Provider
}

// New creates an analyzer over a primary provider and its fallbacks.
func New(primary Provider, fallbacks ...Provider) *Analyzer {
	return &Analyzer{providers: append([]Provider{primary}, fallbacks...)}
}

// transient reports whether an error is worth retrying on a fallback
// model rather than failing the ad outright.
func transient(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Deadline Exceeded") ||
		strings.Contains(msg, "Socket closed")
}

// Analyze runs the ad's media through the provider chain. Only transient
// errors advance to the next model; anything else fails immediately.
func (a *Analyzer) Analyze(ctx context.Context, ad fbads.Ad, mediaPath, mediaType string) (*Result, error) {
	prompt := BuildPrompt(ad, mediaType)

	var lastErr error
	for _, p := range a.providers {
		var res *Result
		var err error
		switch mediaType {
		case "video":
			res, err = p.AnalyzeVideo(ctx, mediaPath, prompt)
		default:
			res, err = p.AnalyzeImage(ctx, mediaPath, prompt)
		}
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !transient(err) {
			return nil, err
		}
		log.Printf("[analyzer] model %s failed transiently (%v), trying next", p.Model(), err)
	}
	return nil, fmt.Errorf("all models failed: %w", lastErr)
}

// SplitResponse separates the LLM output into the analysis section and
// the replication script, divided by the first line containing only
// "---". When no divider exists, the whole text is the analysis and the
// script is empty.
func SplitResponse(text string) (analysis, script string) {
	offset := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "---" {
			analysis = strings.TrimSpace(text[:offset])
			script = strings.TrimSpace(text[offset+len(line):])
			return analysis, script
		}
		offset += len(line) + 1
	}
	return strings.TrimSpace(text), ""
}

var imagePromptRe = regexp.MustCompile(`(?m)^\s*PROMPT_IMG:\s*(.+)$`)

// ExtractImagePrompts pulls the concept-image prompts the model embedded
// in its script, in order of appearance.
func ExtractImagePrompts(script string) []string {
	var prompts []string
	for _, m := range imagePromptRe.FindAllStringSubmatch(script, -1) {
		p := strings.TrimSpace(m[1])
		if p != "" {
			prompts = append(prompts, p)
		}
	}
	return prompts
}
