// Package imagegen turns the concept prompts embedded in ad scripts into
// reference images via the Imagen REST API.
package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Generator produces concept images from text prompts. A zero-valued
// Enabled leaves generation off, which skips gracefully rather than
// erroring.
type Generator struct {
	Enabled bool

	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// New creates a generator. Disabled when apiKey is empty.
func New(apiKey, model string) *Generator {
	return &Generator{
		Enabled: apiKey != "",
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Prompt string `json:"prompt"`
}

type predictParameters struct {
	SampleCount int    `json:"sampleCount"`
	AspectRatio string `json:"aspectRatio"`
}

type predictResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MimeType           string `json:"mimeType"`
	} `json:"predictions"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// enrich wraps the raw concept prompt with style guidance and a hard
// no-text constraint so the output works as a visual reference.
func enrich(prompt string) string {
	return fmt.Sprintf("Photographie hyper-réaliste et détaillée de : '%s'. Style cinématique. IMPORTANT : L'image ne doit contenir absolument aucun texte, mot, lettre ou logo.", prompt)
}

// Generate renders one image for the prompt and writes it to outPath.
func (g *Generator) Generate(ctx context.Context, prompt, outPath string) error {
	if !g.Enabled {
		return fmt.Errorf("image generation is disabled")
	}

	log.Printf("[imagegen] generating image with model %s for prompt %.80q", g.model, prompt)

	reqBody := predictRequest{
		Instances:  []predictInstance{{Prompt: enrich(prompt)}},
		Parameters: predictParameters{SampleCount: 1, AspectRatio: "1:1"},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:predict?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call Imagen API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var pr predictResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	if pr.Error != nil {
		return fmt.Errorf("imagen API error %d: %s", pr.Error.Code, pr.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("imagen API returned status %d: %s", resp.StatusCode, body)
	}
	if len(pr.Predictions) == 0 {
		return fmt.Errorf("imagen API returned no predictions")
	}

	data, err := base64.StdEncoding.DecodeString(pr.Predictions[0].BytesBase64Encoded)
	if err != nil {
		return fmt.Errorf("failed to decode image data: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}
