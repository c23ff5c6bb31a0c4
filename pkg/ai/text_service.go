package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// TextServiceClient calls the auxiliary text service used for twists:
// POST {baseURL}/generate {prompt, count} -> {texts} or {results}.
type TextServiceClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewTextServiceClient(baseURL, apiKey string) (*TextServiceClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: text service base url required", ErrNotConfigured)
	}
	return &TextServiceClient{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type textServiceRequest struct {
	Prompt string `json:"prompt"`
	Count  int    `json:"count"`
}

type textServiceResponse struct {
	Texts   []string `json:"texts"`
	Results []string `json:"results"`
}

// GenerateTexts returns up to count generated texts.
func (c *TextServiceClient) GenerateTexts(ctx context.Context, prompt string, count int) ([]string, error) {
	if count <= 0 {
		count = 1
	}
	var resp textServiceResponse
	if err := postJSON(ctx, c.httpClient, "text", c.baseURL+"/generate", c.apiKey, textServiceRequest{Prompt: prompt, Count: count}, &resp); err != nil {
		return nil, err
	}
	texts := resp.Texts
	if len(texts) == 0 {
		texts = resp.Results
	}
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("text service: %w", ErrEmptyResponse)
	}
	if len(out) > count {
		out = out[:count]
	}
	return out, nil
}

func postJSON(ctx context.Context, client *http.Client, surface, url, apiKey string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", surface, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp chatErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return &StatusError{Surface: surface, StatusCode: resp.StatusCode, Message: errResp.Error.Message}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode: %w", surface, err)
	}
	return nil
}
