package coldstart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"quotecards/pkg/ai"
)

var (
	// ErrNoJSON means the model reply contained no JSON object.
	ErrNoJSON = errors.New("no json object in extraction reply")
	// ErrMalformedDrafts means the JSON object had no quote_cards_raw array.
	ErrMalformedDrafts = errors.New("extraction reply missing quote_cards_raw array")
)

// QuoteDraft is one extracted quote before it is illustrated.
type QuoteDraft struct {
	Text              string
	IsExactQuote      bool
	IllustrationBrief string
}

// Extractor asks the text model for quote drafts.
type Extractor struct {
	gen ai.TextGenerator
}

func NewExtractor(gen ai.TextGenerator) *Extractor {
	return &Extractor{gen: gen}
}

// Extract returns at most count drafts for the book.
func (e *Extractor) Extract(ctx context.Context, title, author string, count int) ([]QuoteDraft, error) {
	reply, err := e.gen.GenerateText(ctx, "", extractionPrompt(title, author, count))
	if err != nil {
		return nil, fmt.Errorf("extract quotes: %w", err)
	}
	return ParseDrafts(reply, count)
}

type rawDraft struct {
	QuoteText     string          `json:"quote_text"`
	IsExactQuote  json.RawMessage `json:"is_exact_quote"`
	DrawingPrompt string          `json:"drawing_prompt"`
}

// ParseDrafts reads drafts out of a model reply that may wrap the JSON in code fences or prose.
// Elements without text or brief are dropped; count > 0 truncates the result.
func ParseDrafts(reply string, count int) ([]QuoteDraft, error) {
	obj, ok := outermostObject(reply)
	if !ok {
		return nil, ErrNoJSON
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(obj, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoJSON, err)
	}
	field, ok := envelope["quote_cards_raw"]
	if !ok {
		return nil, ErrMalformedDrafts
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(field, &elems); err != nil || elems == nil {
		return nil, ErrMalformedDrafts
	}

	drafts := make([]QuoteDraft, 0, len(elems))
	for _, raw := range elems {
		var d rawDraft
		if err := json.Unmarshal(raw, &d); err != nil {
			continue
		}
		text := strings.TrimSpace(d.QuoteText)
		brief := strings.TrimSpace(d.DrawingPrompt)
		if text == "" || brief == "" {
			continue
		}
		drafts = append(drafts, QuoteDraft{
			Text:              text,
			IsExactQuote:      bytes.Equal(bytes.TrimSpace(d.IsExactQuote), []byte("true")),
			IllustrationBrief: brief,
		})
	}
	if count > 0 && len(drafts) > count {
		drafts = drafts[:count]
	}
	return drafts, nil
}

// outermostObject strips markdown fences and returns the span from the first '{' to the last '}'.
func outermostObject(reply string) ([]byte, bool) {
	s := strings.ReplaceAll(reply, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return nil, false
	}
	return []byte(s[start : end+1]), true
}
