package ai

import "context"

// TextGenerator generates text from a system prompt and user prompt. An empty system prompt
// sends the user prompt as the only turn.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ImageGenerator turns a prompt into an image encoded as a data URL.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}
