package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func writeTempMedia(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGeminiAnalyzeVideoFlow(t *testing.T) {
	var polls, deleted atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload/v1beta/files", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Goog-Upload-Protocol") != "raw" {
			t.Errorf("missing raw upload protocol header")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"file": map[string]string{
				"name":  "files/v123",
				"uri":   "https://files.example/v123",
				"state": "PROCESSING",
			},
		})
	})
	mux.HandleFunc("GET /v1beta/files/v123", func(w http.ResponseWriter, r *http.Request) {
		state := "PROCESSING"
		if polls.Add(1) >= 2 {
			state = "ACTIVE"
		}
		json.NewEncoder(w).Encode(map[string]string{
			"name": "files/v123", "uri": "https://files.example/v123", "state": state,
		})
	})
	mux.HandleFunc("DELETE /v1beta/files/v123", func(w http.ResponseWriter, r *http.Request) {
		deleted.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /v1beta/models/gemini-2.0-flash:generateContent", func(w http.ResponseWriter, r *http.Request) {
		var req geminiGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode generate request: %v", err)
		}
		parts := req.Contents[0].Parts
		if !strings.Contains(parts[0].Text, "Director de Marketing") {
			t.Errorf("prompt not forwarded: %q", parts[0].Text)
		}
		if parts[1].FileData == nil || parts[1].FileData.FileURI != "https://files.example/v123" {
			t.Errorf("file reference not forwarded: %+v", parts[1])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]string{{"text": "el análisis\n---\nguion"}}}},
			},
			"usageMetadata": map[string]int{"promptTokenCount": 100, "candidatesTokenCount": 250},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := NewGeminiProvider("test-key", "gemini-2.0-flash", time.Minute)
	g.baseURL = srv.URL
	g.pollInterval = time.Millisecond
	g.client = srv.Client()

	path := writeTempMedia(t, "ad.mp4", "mp4-bytes")
	res, err := g.AnalyzeVideo(context.Background(), path, "**Contexto:** Eres un Director de Marketing ...")
	if err != nil {
		t.Fatalf("AnalyzeVideo: %v", err)
	}
	if res.Text != "el análisis\n---\nguion" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Usage.InputTokens != 100 || res.Usage.OutputTokens != 250 {
		t.Errorf("usage = %+v", res.Usage)
	}
	if polls.Load() < 2 {
		t.Errorf("expected at least two state polls, got %d", polls.Load())
	}
	if deleted.Load() != 1 {
		t.Errorf("remote file deleted %d times, want 1", deleted.Load())
	}
}

func TestGeminiFailedProcessing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload/v1beta/files", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"file": map[string]string{"name": "files/bad", "uri": "u", "state": "FAILED"},
		})
	})
	mux.HandleFunc("DELETE /v1beta/files/bad", func(w http.ResponseWriter, r *http.Request) {})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := NewGeminiProvider("test-key", "gemini-2.0-flash", time.Minute)
	g.baseURL = srv.URL
	g.pollInterval = time.Millisecond
	g.client = srv.Client()

	path := writeTempMedia(t, "ad.mp4", "x")
	if _, err := g.AnalyzeVideo(context.Background(), path, "p"); err == nil {
		t.Fatal("expected error for FAILED file state")
	}
}

func TestGeminiAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload/v1beta/files", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"file": map[string]string{"name": "files/i1", "uri": "u", "state": "ACTIVE"},
		})
	})
	mux.HandleFunc("DELETE /v1beta/files/i1", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("POST /v1beta/models/gemini-2.0-flash:generateContent", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 504, "status": "DEADLINE_EXCEEDED", "message": "Deadline Exceeded"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := NewGeminiProvider("test-key", "gemini-2.0-flash", time.Minute)
	g.baseURL = srv.URL
	g.pollInterval = time.Millisecond
	g.client = srv.Client()

	path := writeTempMedia(t, "ad.png", "png")
	_, err := g.AnalyzeImage(context.Background(), path, "p")
	if err == nil {
		t.Fatal("expected API error")
	}
	if !strings.Contains(err.Error(), "Deadline Exceeded") {
		t.Errorf("error should surface the API message, got %v", err)
	}
}
