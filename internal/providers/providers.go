package providers

import (
	"context"
)

// Image is one image payload sent alongside the prompt
type Image struct {
	Data     []byte
	MIMEType string
}

// Config represents the configuration for an LLM provider call
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Prompt      string
	Images      []Image
}

// Provider defines the interface for a vision-capable LLM provider
type Provider interface {
	ExtractText(ctx context.Context, config Config) (string, error)
}
