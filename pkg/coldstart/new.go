package coldstart

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"quotecards/internal/metrics"
	"quotecards/pkg/ai"
)

// Config selects and wires a Generator.
type Config struct {
	VertexBaseURL string
	VertexAPIKey  string
	TextModel     string
	ImageModel    string
	// TextProvider is "vertex" (default) or "gemini".
	TextProvider      string
	GeminiAPIKey      string
	GeminiModel       string
	RequestsPerSecond float64
	MaxWidth          int
	Quality           float64
	MockDelay         time.Duration
	Placeholder       *ai.PlaceholderImageClient
	Logger            *slog.Logger
	Metrics           *metrics.Metrics
}

// Configured reports whether the Vertex surface has both a base URL and a key.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.VertexBaseURL) != "" && strings.TrimSpace(c.VertexAPIKey) != ""
}

// New returns the real pipeline when the Vertex surface is configured and the mock otherwise.
func New(cfg Config) (Generator, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Configured() {
		logger.Info("vertex ai not configured, using mock cold start generator")
		return &MockGenerator{Delay: cfg.MockDelay, Images: cfg.Placeholder, Logger: logger, Metrics: cfg.Metrics}, nil
	}
	text, painter, err := Surfaces(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("cold start pipeline enabled", "text_provider", providerName(cfg.TextProvider))
	return NewPipeline(NewExtractor(text), painter, PipelineOptions{
		MaxWidth: cfg.MaxWidth,
		Quality:  cfg.Quality,
		Logger:   logger,
		Metrics:  cfg.Metrics,
	}), nil
}

// Surfaces builds the text generator and the illustrator behind the pipeline so other features
// can share them. Both are nil when the Vertex surface is not configured.
func Surfaces(cfg Config) (ai.TextGenerator, *Illustrator, error) {
	if !cfg.Configured() {
		return nil, nil, nil
	}
	textClient, err := ai.NewChatClient(ai.ChatClientConfig{
		Surface:           "vertex_text",
		BaseURL:           cfg.VertexBaseURL,
		APIKey:            cfg.VertexAPIKey,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Metrics:           cfg.Metrics,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("text client: %w", err)
	}
	imageClient, err := ai.NewChatClient(ai.ChatClientConfig{
		Surface:           "vertex_image",
		BaseURL:           cfg.VertexBaseURL,
		APIKey:            cfg.VertexAPIKey,
		Timeout:           180 * time.Second,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Metrics:           cfg.Metrics,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("image client: %w", err)
	}

	var text ai.TextGenerator = ai.NewOpenAICompatGenerator(textClient, cfg.TextModel, 0, 0)
	if strings.EqualFold(strings.TrimSpace(cfg.TextProvider), "gemini") {
		gemini, err := ai.NewGeminiGenerator(cfg.GeminiAPIKey, "", cfg.GeminiModel)
		if err != nil {
			return nil, nil, fmt.Errorf("gemini text provider: %w", err)
		}
		text = gemini
	}
	image := ai.NewOpenAICompatImageGenerator(imageClient, cfg.ImageModel, 0, 0)
	return text, NewIllustrator(image), nil
}

func providerName(p string) string {
	if strings.TrimSpace(p) == "" {
		return "vertex"
	}
	return strings.ToLower(strings.TrimSpace(p))
}
