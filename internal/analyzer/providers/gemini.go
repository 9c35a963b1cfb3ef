// Package providers contains the concrete LLM backends.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/voxanet/adwin/internal/analyzer"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

	defaultFilePollInterval = 5 * time.Second

	fileStateActive = "ACTIVE"
	fileStateFailed = "FAILED"
)

// GeminiProvider calls the Gemini API over REST: media goes through the
// Files API, then one generateContent call per ad.
type GeminiProvider struct {
	apiKey        string
	model         string
	baseURL       string
	uploadTimeout time.Duration
	pollInterval  time.Duration
	client        *http.Client
}

// NewGeminiProvider creates a Gemini provider for the given model.
// uploadTimeout bounds how long we wait for a video to become ACTIVE.
func NewGeminiProvider(apiKey, model string, uploadTimeout time.Duration) *GeminiProvider {
	if uploadTimeout <= 0 {
		uploadTimeout = 5 * time.Minute
	}
	return &GeminiProvider{
		apiKey:        apiKey,
		model:         model,
		baseURL:       defaultGeminiBaseURL,
		uploadTimeout: uploadTimeout,
		pollInterval:  defaultFilePollInterval,
		client: &http.Client{
			Timeout: 300 * time.Second, // video analysis calls are slow
		},
	}
}

// Model returns the configured model identifier.
func (g *GeminiProvider) Model() string { return g.model }

// geminiFile is the Files API resource.
type geminiFile struct {
	Name  string `json:"name"`
	URI   string `json:"uri"`
	State string `json:"state"`
}

type geminiUploadResponse struct {
	File geminiFile `json:"file"`
}

type geminiPart struct {
	Text     string          `json:"text,omitempty"`
	FileData *geminiFileData `json:"file_data,omitempty"`
}

type geminiFileData struct {
	MimeType string `json:"mime_type"`
	FileURI  string `json:"file_uri"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerateRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *geminiError `json:"error,omitempty"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (e *geminiError) Error() string {
	return fmt.Sprintf("gemini API error %d (%s): %s", e.Code, e.Status, e.Message)
}

// AnalyzeImage uploads the image and runs the prompt against it.
func (g *GeminiProvider) AnalyzeImage(ctx context.Context, path, prompt string) (*analyzer.Result, error) {
	return g.analyzeFile(ctx, path, prompt, false)
}

// AnalyzeVideo uploads the video, waits for server-side processing, then
// runs the prompt against it.
func (g *GeminiProvider) AnalyzeVideo(ctx context.Context, path, prompt string) (*analyzer.Result, error) {
	return g.analyzeFile(ctx, path, prompt, true)
}

func (g *GeminiProvider) analyzeFile(ctx context.Context, path, prompt string, waitProcessing bool) (*analyzer.Result, error) {
	file, err := g.uploadFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("upload media: %w", err)
	}
	// Uploaded files count against storage quota; remove it regardless
	// of how the analysis goes.
	defer g.deleteFile(file.Name)

	if waitProcessing {
		file, err = g.waitActive(ctx, file)
		if err != nil {
			return nil, err
		}
	}

	return g.generateContent(ctx, prompt, mimeFor(path), file.URI)
}

// uploadFile pushes the media bytes through the Files API raw protocol.
func (g *GeminiProvider) uploadFile(ctx context.Context, path string) (*geminiFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	url := fmt.Sprintf("%s/upload/v1beta/files?key=%s", g.baseURL, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, f)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Goog-Upload-Protocol", "raw")
	req.Header.Set("Content-Type", mimeFor(path))

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upload returned status %d: %s", resp.StatusCode, body)
	}

	var ur geminiUploadResponse
	if err := json.Unmarshal(body, &ur); err != nil {
		return nil, fmt.Errorf("failed to parse upload response: %w", err)
	}
	return &ur.File, nil
}

// waitActive polls the uploaded file until processing completes.
func (g *GeminiProvider) waitActive(ctx context.Context, file *geminiFile) (*geminiFile, error) {
	deadline := time.Now().Add(g.uploadTimeout)
	for file.State != fileStateActive {
		if file.State == fileStateFailed {
			return nil, fmt.Errorf("server-side processing of %s failed", file.Name)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("file %s not ACTIVE after %s", file.Name, g.uploadTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.pollInterval):
		}

		refreshed, err := g.getFile(ctx, file.Name)
		if err != nil {
			return nil, fmt.Errorf("poll file state: %w", err)
		}
		file = refreshed
	}
	return file, nil
}

func (g *GeminiProvider) getFile(ctx context.Context, name string) (*geminiFile, error) {
	url := fmt.Sprintf("%s/v1beta/%s?key=%s", g.baseURL, name, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get file returned status %d", resp.StatusCode)
	}

	var file geminiFile
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return nil, err
	}
	return &file, nil
}

// deleteFile is best-effort cleanup; failures are only logged.
func (g *GeminiProvider) deleteFile(name string) {
	if name == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/v1beta/%s?key=%s", g.baseURL, name, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return
	}
	resp, err := g.client.Do(req)
	if err != nil {
		log.Printf("[gemini] failed to delete remote file %s: %v", name, err)
		return
	}
	resp.Body.Close()
}

func (g *GeminiProvider) generateContent(ctx context.Context, prompt, mimeType, fileURI string) (*analyzer.Result, error) {
	reqBody := geminiGenerateRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: prompt},
				{FileData: &geminiFileData{MimeType: mimeType, FileURI: fileURI}},
			},
		}},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call Gemini API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var gr geminiGenerateResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	if gr.Error != nil {
		return nil, gr.Error
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini API returned status %d: %s", resp.StatusCode, body)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini API returned no candidates")
	}

	var text string
	for _, part := range gr.Candidates[0].Content.Parts {
		text += part.Text
	}

	return &analyzer.Result{
		Text:  text,
		Model: g.model,
		Usage: analyzer.Usage{
			InputTokens:  gr.UsageMetadata.PromptTokenCount,
			OutputTokens: gr.UsageMetadata.CandidatesTokenCount,
		},
	}, nil
}

// mimeFor resolves the media MIME type from the file extension.
func mimeFor(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
