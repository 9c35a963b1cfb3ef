package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/voxanet/adwin/internal/fbads"
)

func sampleData(t *testing.T, mediaType string) RenderData {
	t.Helper()
	dir := t.TempDir()

	ext := ".mp4"
	if mediaType == "image" {
		ext = ".png"
	}
	mediaPath := filepath.Join(dir, "creative"+ext)
	if err := os.WriteFile(mediaPath, []byte("media-bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	conceptPath := filepath.Join(dir, "concept_1.png")
	if err := os.WriteFile(conceptPath, []byte("concept-bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	return RenderData{
		ClientName: "Acme Skincare",
		Ad: fbads.Ad{
			ID:   "120210001",
			Name: "Summer Serum",
			Insights: &fbads.Insights{
				Spend: 3500, CPA: 420.5, ROAS: 3.1, CPM: 12.3,
				UniqueCTR: 1.8, Frequency: 2.2,
				WebsitePurchases: 8, WebsitePurchasesValue: 10850,
				HookRate: 25, HoldRate: 20,
			},
		},
		MediaType:    mediaType,
		MediaPath:    mediaPath,
		AnalysisText: "## Por qué funcionó\n\nEl gancho es **directo**.",
		ScriptText:   "| Hook (Gancho) | Escena (Visual) |\n|---|---|\n| Pregunta directa | Primer plano |\n",
		ConceptImages: []ConceptImage{
			{Prompt: "close-up of glowing skin", Path: conceptPath},
		},
		GeneratedAt: time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
	}
}

func TestRenderVideoReport(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	html, err := r.Render(sampleData(t, "video"))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	for _, want := range []string{
		"Acme Skincare",
		"Summer Serum (ID: 120210001)",
		"<video controls",
		"data:video/mp4;base64,",
		"Hook Rate",
		"Hold Rate",
		"<strong>directo</strong>",
		"<table>",
		"Propuestas de Nuevos Guiones",
		"close-up of glowing skin",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestRenderImageReportOmitsVideoRates(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	html, err := r.Render(sampleData(t, "image"))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if strings.Contains(html, "Hook Rate") || strings.Contains(html, "Hold Rate") {
		t.Error("image report should not show video-only rates")
	}
	if !strings.Contains(html, "data:image/png;base64,") {
		t.Error("image report should embed the creative inline")
	}
	if !strings.Contains(html, "Propuestas de Imágenes Alternativas") {
		t.Error("image report should use the image proposals title")
	}
}

func TestRenderMissingMediaDegrades(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	data := sampleData(t, "video")
	data.MediaPath = filepath.Join(t.TempDir(), "gone.mp4")

	html, err := r.Render(data)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(html, "Error al incrustar el medio") {
		t.Error("missing media should render an inline error, not fail the report")
	}
}

func TestWriteUsesCanonicalFilename(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	dir := t.TempDir()
	path, err := r.Write(dir, sampleData(t, "video"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	want := filepath.Join(dir, "informe_Acme_Skincare_120210001_20260829.html")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("report file not written: %v", err)
	}
}
