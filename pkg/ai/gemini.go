package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel   = "gemini-2.5-flash"
)

// GeminiGenerator is a TextGenerator over the Google AI Studio API, used when the deployment
// has a Gemini key but no OpenAI-compatible gateway.
type GeminiGenerator struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// NewGeminiGenerator constructs a generator with the provided API key. An empty baseURL uses the
// public endpoint.
func NewGeminiGenerator(apiKey, baseURL, model string) (*GeminiGenerator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key required", ErrNotConfigured)
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultGeminiModel
	}
	return &GeminiGenerator{
		apiKey:      apiKey,
		baseURL:     baseURL,
		model:       strings.TrimPrefix(strings.TrimSpace(model), "models/"),
		temperature: DefaultTextTemperature,
		maxTokens:   DefaultTextMaxTokens,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// GenerateText implements TextGenerator. Prompts or answers withheld by safety filters come
// back as ErrEmptyResponse with the block reason attached.
func (g *GeminiGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: userPrompt}}}},
		Config:   geminiConfig{Temperature: g.temperature, MaxOutputTokens: g.maxTokens},
	}
	if strings.TrimSpace(systemPrompt) != "" {
		payload.System = &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	endpoint := g.baseURL + "/models/" + url.PathEscape(g.model) + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var apiErr chatErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return "", &StatusError{Surface: "gemini", StatusCode: resp.StatusCode, Message: apiErr.Error.Message}
	}
	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("gemini decode: %w", err)
	}
	if reason := out.PromptFeedback.BlockReason; reason != "" {
		return "", fmt.Errorf("gemini: prompt blocked (%s): %w", reason, ErrEmptyResponse)
	}
	if len(out.Candidates) == 0 {
		return "", fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}
	first := out.Candidates[0]
	var text strings.Builder
	for _, p := range first.Content.Parts {
		text.WriteString(p.Text)
	}
	if answer := strings.TrimSpace(text.String()); answer != "" {
		return answer, nil
	}
	if first.FinishReason != "" && first.FinishReason != "STOP" {
		return "", fmt.Errorf("gemini: finished with %s: %w", first.FinishReason, ErrEmptyResponse)
	}
	return "", fmt.Errorf("gemini: %w", ErrEmptyResponse)
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
	System   *geminiContent  `json:"systemInstruction,omitempty"`
	Config   geminiConfig    `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}
