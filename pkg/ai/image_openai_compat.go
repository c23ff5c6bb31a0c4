package ai

import (
	"context"
	"fmt"
	"strings"
)

// Defaults of the image model.
const (
	DefaultImageModel       = "vertex_ai/gemini-3-pro-image-preview"
	DefaultImageTemperature = 0.9
	DefaultImageMaxTokens   = 4096
)

// OpenAICompatImageGenerator asks a chat completions endpoint backed by an image model for a
// picture and normalizes whatever shape comes back into a data URL.
type OpenAICompatImageGenerator struct {
	client      *ChatClient
	model       string
	temperature float64
	maxTokens   int
}

func NewOpenAICompatImageGenerator(client *ChatClient, model string, temperature float64, maxTokens int) *OpenAICompatImageGenerator {
	if strings.TrimSpace(model) == "" {
		model = DefaultImageModel
	}
	if temperature <= 0 {
		temperature = DefaultImageTemperature
	}
	if maxTokens <= 0 {
		maxTokens = DefaultImageMaxTokens
	}
	return &OpenAICompatImageGenerator{client: client, model: model, temperature: temperature, maxTokens: maxTokens}
}

// GenerateImage implements ImageGenerator.
func (g *OpenAICompatImageGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	reply, err := g.client.Complete(ctx, ChatRequest{
		Model:       g.model,
		Messages:    []ChatMessage{{Role: "user", Content: prompt}},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", err
	}
	payload, err := ParseImagePayload(reply)
	if err != nil {
		return "", fmt.Errorf("%s: %w", g.client.surface, err)
	}
	return payload.DataURL(), nil
}
