// Package report renders the standalone HTML analysis report for a
// winning ad: embedded creative, KPI table, LLM analysis, and the
// proposed scripts with their generated concept images.
package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/voxanet/adwin/internal/fbads"
)

// Renderer builds self-contained HTML reports.
type Renderer struct {
	template *template.Template
	markdown goldmark.Markdown
}

// New creates a renderer with the report template compiled.
func New() (*Renderer, error) {
	tmpl, err := template.New("report").Parse(reportTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return &Renderer{
		template: tmpl,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
	}, nil
}

// ConceptImage pairs a generated image with the script prompt that
// produced it.
type ConceptImage struct {
	Prompt string
	Path   string
}

// RenderData carries everything one report needs.
type RenderData struct {
	ClientName    string
	Ad            fbads.Ad
	MediaType     string // "video" or "image"
	MediaPath     string
	AnalysisText  string // markdown from the LLM
	ScriptText    string // markdown from the LLM
	ConceptImages []ConceptImage
	GeneratedAt   time.Time
}

// reportData is the template data structure.
type reportData struct {
	ClientName     string
	AdName         string
	AdID           string
	MediaHTML      template.HTML
	IsVideo        bool
	Insights       *fbads.Insights
	AnalysisHTML   template.HTML
	ProposalsTitle string
	ScriptHTML     template.HTML
	Concepts       []conceptData
	GeneratedAt    string
}

type conceptData struct {
	Prompt  string
	DataURI template.URL
}

// Render produces the full HTML document.
func (r *Renderer) Render(data RenderData) (string, error) {
	analysisHTML, err := r.markdownToHTML(data.AnalysisText)
	if err != nil {
		return "", fmt.Errorf("render analysis markdown: %w", err)
	}
	scriptHTML, err := r.markdownToHTML(data.ScriptText)
	if err != nil {
		return "", fmt.Errorf("render script markdown: %w", err)
	}

	mediaHTML, err := embedMedia(data.MediaPath, data.MediaType)
	if err != nil {
		// A missing creative should not sink the whole report.
		mediaHTML = template.HTML(fmt.Sprintf("<p><i>Error al incrustar el medio: %s</i></p>", template.HTMLEscapeString(err.Error())))
	}

	var concepts []conceptData
	for _, ci := range data.ConceptImages {
		uri, err := fileDataURI(ci.Path, "image/png")
		if err != nil {
			continue
		}
		concepts = append(concepts, conceptData{Prompt: ci.Prompt, DataURI: uri})
	}

	proposalsTitle := "Propuestas de Imágenes Alternativas"
	if data.MediaType == "video" {
		proposalsTitle = "Propuestas de Nuevos Guiones"
	}

	generatedAt := data.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	var buf bytes.Buffer
	err = r.template.Execute(&buf, reportData{
		ClientName:     data.ClientName,
		AdName:         data.Ad.Name,
		AdID:           data.Ad.ID,
		MediaHTML:      mediaHTML,
		IsVideo:        data.MediaType == "video",
		Insights:       data.Ad.Insights,
		AnalysisHTML:   analysisHTML,
		ProposalsTitle: proposalsTitle,
		ScriptHTML:     scriptHTML,
		Concepts:       concepts,
		GeneratedAt:    generatedAt.Format("2006-01-02 15:04"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// Write renders the report and saves it under dir with the canonical
// filename, returning the full path.
func (r *Renderer) Write(dir string, data RenderData) (string, error) {
	html, err := r.Render(data)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	when := data.GeneratedAt
	if when.IsZero() {
		when = time.Now()
	}
	name := fmt.Sprintf("informe_%s_%s_%s.html",
		strings.ReplaceAll(data.ClientName, " ", "_"),
		data.Ad.ID,
		when.Format("20060102"))
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// MarkdownHTML converts LLM markdown, tables included, into an HTML
// fragment suitable for storing and re-serving from the dashboard.
func (r *Renderer) MarkdownHTML(src string) (string, error) {
	h, err := r.markdownToHTML(src)
	return string(h), err
}

func (r *Renderer) markdownToHTML(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// embedMedia inlines the creative as a base64 data URI so the report is
// a single portable file.
func embedMedia(path, mediaType string) (template.HTML, error) {
	if mediaType == "video" {
		uri, err := fileDataURI(path, "video/mp4")
		if err != nil {
			return "", err
		}
		return template.HTML(fmt.Sprintf(`<video controls width="100%%"><source src="%s" type="video/mp4"></video>`, uri)), nil
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		ext = "jpeg"
	}
	uri, err := fileDataURI(path, "image/"+ext)
	if err != nil {
		return "", err
	}
	return template.HTML(fmt.Sprintf(`<img src="%s" alt="Anuncio" style="width:100%%; height:auto; border-radius: 4px;">`, uri)), nil
}

func fileDataURI(path, mimeType string) (template.URL, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return template.URL(fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))), nil
}
