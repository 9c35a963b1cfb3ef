package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/voxanet/adwin/internal/analyzer"
)

// AnthropicProvider implements image analysis using Anthropic's Claude
// API. Claude cannot ingest video files, so AnalyzeVideo always errors;
// it exists as a secondary backend for image-only accounts.
type AnthropicProvider struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	return &AnthropicProvider{
		client: &client,
		model:  model,
	}
}

// Model returns the configured model identifier.
func (c *AnthropicProvider) Model() string { return c.model }

// AnalyzeImage sends the image inline as base64 with the prompt.
func (c *AnthropicProvider) AnalyzeImage(ctx context.Context, path, prompt string) (*analyzer.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	mediaType := mime.TypeByExtension(filepath.Ext(path))
	if mediaType == "" {
		mediaType = "image/jpeg"
	}

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 8192,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mediaType, base64.StdEncoding.EncodeToString(data)),
				anthropic.NewTextBlock(prompt),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call Claude API: %w", err)
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return nil, fmt.Errorf("Claude API returned no text content")
	}

	return &analyzer.Result{
		Text:  text,
		Model: c.model,
		Usage: analyzer.Usage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
		},
	}, nil
}

// AnalyzeVideo is unsupported for this backend.
func (c *AnthropicProvider) AnalyzeVideo(ctx context.Context, path, prompt string) (*analyzer.Result, error) {
	return nil, fmt.Errorf("anthropic backend does not support video analysis")
}
