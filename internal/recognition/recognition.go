package recognition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/numislab/coincataloger/internal/anthropic"
	"github.com/numislab/coincataloger/internal/config"
	"github.com/numislab/coincataloger/internal/gemini"
	"github.com/numislab/coincataloger/internal/ollama"
	"github.com/numislab/coincataloger/internal/openai"
	"github.com/numislab/coincataloger/internal/providers"
)

// ErrRecognitionFailed wraps every failure of a recognition call.
var ErrRecognitionFailed = errors.New("recognition failed")

// Client sends coin photographs to a vision-capable provider.
type Client struct {
	provider    providers.Provider
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
}

// NewClient wraps provider using the model settings of cfg.
func NewClient(provider providers.Provider, cfg config.Config) *Client {
	return &Client{
		provider:    provider,
		model:       cfg.ResolvedModel(),
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
	}
}

// NewProvider builds the provider selected in cfg.
func NewProvider(cfg config.Config) (providers.Provider, error) {
	// The per-call context carries the deadline; the client timeout is a backstop.
	httpClient := &http.Client{Timeout: cfg.Timeout + 5*time.Second}

	switch cfg.Provider {
	case "anthropic":
		return anthropic.New(cfg.AnthropicAPIKey, anthropic.WithHTTPClient(httpClient)), nil
	case "openai":
		return openai.New(cfg.OpenAIAPIKey, openai.WithHTTPClient(httpClient)), nil
	case "ollama":
		return ollama.New(cfg.OllamaURL), nil
	case "gemini":
		return gemini.New(cfg.GeminiAPIKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// Recognize sends the face and reverse images with Prompt and returns the
// provider's raw reply. The call is bounded by the configured timeout.
func (c *Client) Recognize(ctx context.Context, face, reverse []byte) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := c.provider.ExtractText(ctx, providers.Config{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Prompt:      Prompt,
		Images: []providers.Image{
			{Data: face, MIMEType: DetectMIMEType(face)},
			{Data: reverse, MIMEType: DetectMIMEType(reverse)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRecognitionFailed, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty reply", ErrRecognitionFailed)
	}

	slog.Debug("Recognition reply received",
		"model", c.model,
		"prompt_version", PromptVersion,
		"duration", time.Since(start),
		"length", len(text))
	return text, nil
}

// DetectMIMEType sniffs an image payload, defaulting to JPEG.
func DetectMIMEType(data []byte) string {
	mimeType := http.DetectContentType(data)
	if strings.HasPrefix(mimeType, "image/") {
		return mimeType
	}
	return "image/jpeg"
}
