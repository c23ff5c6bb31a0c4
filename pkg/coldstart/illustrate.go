package coldstart

import (
	"context"
	"fmt"

	"quotecards/pkg/ai"
)

// Illustrator renders one quote card image through the image model.
type Illustrator struct {
	gen ai.ImageGenerator
}

func NewIllustrator(gen ai.ImageGenerator) *Illustrator {
	return &Illustrator{gen: gen}
}

// Illustrate returns the card image as a data URL (or a remote URL when the model answers with one).
func (il *Illustrator) Illustrate(ctx context.Context, title, author, quote, brief string) (string, error) {
	url, err := il.gen.GenerateImage(ctx, illustrationPrompt(title, author, quote, brief))
	if err != nil {
		return "", fmt.Errorf("illustrate: %w", err)
	}
	return url, nil
}
