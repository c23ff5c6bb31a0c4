package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultPlaceholderStyle is sent when the caller has no style preference.
const DefaultPlaceholderStyle = "artistic"

// PlaceholderImageClient calls the placeholder image service:
// POST {baseURL}/generate {prompt, style} -> {imageUrl} or {url}.
// A nil client, or any failure, falls back to MockImageURL.
type PlaceholderImageClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewPlaceholderImageClient(baseURL, apiKey string) (*PlaceholderImageClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: image service base url required", ErrNotConfigured)
	}
	return &PlaceholderImageClient{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type placeholderRequest struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style"`
}

type placeholderResponse struct {
	ImageURL string `json:"imageUrl"`
	URL      string `json:"url"`
}

// ImageURL asks the service for an image URL.
func (c *PlaceholderImageClient) ImageURL(ctx context.Context, prompt, style string) (string, error) {
	if style == "" {
		style = DefaultPlaceholderStyle
	}
	var resp placeholderResponse
	if err := postJSON(ctx, c.httpClient, "image", c.baseURL+"/generate", c.apiKey, placeholderRequest{Prompt: prompt, Style: style}, &resp); err != nil {
		return "", err
	}
	url := strings.TrimSpace(resp.ImageURL)
	if url == "" {
		url = strings.TrimSpace(resp.URL)
	}
	if url == "" {
		return "", fmt.Errorf("image service: %w", ErrNoImageData)
	}
	return url, nil
}

// ImageURLOrMock never fails: service errors fall back to the deterministic mock URL.
func (c *PlaceholderImageClient) ImageURLOrMock(ctx context.Context, prompt, style string) string {
	if c == nil {
		return MockImageURL(prompt)
	}
	url, err := c.ImageURL(ctx, prompt, style)
	if err != nil {
		return MockImageURL(prompt)
	}
	return url
}

// MockImageURL maps prompt to one of 1000 stable picsum images.
func MockImageURL(prompt string) string {
	return fmt.Sprintf("https://picsum.photos/seed/%d/400/600", promptSeed(prompt))
}

// promptSeed hashes the UTF-16 code units of s with h = c + (h<<5) - h in 32-bit arithmetic.
func promptSeed(s string) int {
	var h int32
	for _, r := range s {
		if r > 0xFFFF {
			r -= 0x10000
			hi := 0xD800 + (r >> 10)
			lo := 0xDC00 + (r & 0x3FF)
			h = hi + ((h << 5) - h)
			h = lo + ((h << 5) - h)
			continue
		}
		h = r + ((h << 5) - h)
	}
	v := int(h)
	if v < 0 {
		v = -v
	}
	return v % 1000
}
