package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/numislab/coincataloger/internal/providers"
)

func TestExtractTextSendsImagesAsDataURLs(t *testing.T) {
	var body struct {
		Model    string `json:"model"`
		Messages []struct {
			Content []struct {
				Type     string `json:"type"`
				Text     string `json:"text"`
				ImageURL struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"content"`
		} `json:"messages"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("unexpected Authorization header %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}))
	defer server.Close()

	p := New("key", WithURL(server.URL))
	text, err := p.ExtractText(context.Background(), providers.Config{
		Model:  "gpt-4o",
		Prompt: "describe",
		Images: []providers.Image{{Data: []byte("face"), MIMEType: "image/png"}},
	})
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}
	if text != "{}" {
		t.Errorf("Expected {}, got %s", text)
	}

	if len(body.Messages) != 1 || len(body.Messages[0].Content) != 2 {
		t.Fatalf("unexpected request shape: %+v", body)
	}
	url := body.Messages[0].Content[1].ImageURL.URL
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("Expected png data URL, got %s", url)
	}
}

func TestExtractTextNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	_, err := New("key", WithURL(server.URL)).ExtractText(context.Background(), providers.Config{})
	if err == nil {
		t.Error("Expected error for empty choices, got nil")
	}
}

func TestExtractTextMissingKey(t *testing.T) {
	_, err := New("").ExtractText(context.Background(), providers.Config{})
	if err == nil {
		t.Error("Expected error for missing API key, got nil")
	}
}
