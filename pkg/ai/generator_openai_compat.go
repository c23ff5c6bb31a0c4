package ai

import (
	"context"
	"fmt"
	"strings"
)

// Defaults of the primary text model.
const (
	DefaultTextModel       = "vertex_ai/gemini-3-pro-preview"
	DefaultTextTemperature = 0.7
	DefaultTextMaxTokens   = 8192
)

// OpenAICompatGenerator is a TextGenerator over any OpenAI-compatible chat completions endpoint
// (LiteLLM, vLLM, OpenRouter, a Vertex gateway).
type OpenAICompatGenerator struct {
	client      *ChatClient
	model       string
	temperature float64
	maxTokens   int
}

// NewOpenAICompatGenerator builds a text generator. Zero temperature or maxTokens fall back to
// the text model defaults.
func NewOpenAICompatGenerator(client *ChatClient, model string, temperature float64, maxTokens int) *OpenAICompatGenerator {
	if strings.TrimSpace(model) == "" {
		model = DefaultTextModel
	}
	if temperature <= 0 {
		temperature = DefaultTextTemperature
	}
	if maxTokens <= 0 {
		maxTokens = DefaultTextMaxTokens
	}
	return &OpenAICompatGenerator{client: client, model: model, temperature: temperature, maxTokens: maxTokens}
}

// GenerateText implements TextGenerator.
func (g *OpenAICompatGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]ChatMessage, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: userPrompt})

	reply, err := g.client.Complete(ctx, ChatRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(reply.Text())
	if text == "" {
		return "", fmt.Errorf("%s: %w", g.client.surface, ErrEmptyResponse)
	}
	return text, nil
}
