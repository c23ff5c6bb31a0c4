package serendipity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"quotecards/pkg/domain"
)

const (
	defaultReason        = "Related content"
	defaultDrawingPrompt = "an abstract representation of ideas colliding"
)

var errBadRecommendation = errors.New("recommendation reply missing bookTitle, author or quote")

// Recommendation is a related quote suggested for a liked card.
type Recommendation struct {
	BookTitle     string
	Author        string
	Text          string
	Reason        string
	DrawingPrompt string
}

var mockRecommendations = []Recommendation{
	{
		BookTitle:     "存在与虚无",
		Author:        "萨特",
		Text:          "人注定是自由的，因为一旦被投入这个世界，他就要为他所做的一切负责。",
		Reason:        "都探讨了人的存在与选择的问题",
		DrawingPrompt: "a person standing at infinite crossroads in fog",
	},
	{
		BookTitle:     "Meditations",
		Author:        "Marcus Aurelius",
		Text:          "You have power over your mind - not outside events. Realize this, and you will find strength.",
		Reason:        "Both emphasize inner control and philosophical resilience",
		DrawingPrompt: "a serene mind fortress surrounded by chaos",
	},
	{
		BookTitle:     "理想国",
		Author:        "柏拉图",
		Text:          "真正的勇气不是忽视恐惧，而是认识恐惧并战胜它。",
		Reason:        "都关注美德与智慧的本质",
		DrawingPrompt: "a warrior facing their own shadow calmly",
	},
}

func recommendationPrompt(liked domain.Card) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A reader liked this quote from %q", liked.BookTitle)
	if liked.Author != "" {
		fmt.Fprintf(&b, " by %s", liked.Author)
	}
	fmt.Fprintf(&b, ":\n\n%q\n\n", liked.Text)
	b.WriteString(`Recommend ONE related quote from a DIFFERENT book that this reader would also enjoy, based on the themes, ideas and style of the quote.

Answer in the SAME LANGUAGE as the quote: Chinese for a Chinese quote, English for an English one.

Reply with JSON in this shape:
{
  "bookTitle": "title of the recommended book",
  "author": "author name",
  "quote": "the recommended quote, about as long as the original (20 to 60 words)",
  "reason": "one sentence on how it connects to the liked quote",
  "drawing_prompt": "a metaphorical illustration idea, at most 18 English tokens, the concept and not the style"
}

Pick one of these connections, or combine them:
- shared philosophical themes or concepts
- the same school of thought or era
- a complementary or contrasting perspective
- related metaphors or writing style

The drawing_prompt is a short metaphorical scene expressing the meaning of the quote: witty, philosophical, lightly absurd, such as "a donut ouroboros debating a tiny sun" or "a ladder made of question marks dissolving into mist".

The recommended book must be real and the quote authentic or plausible.`)
	return b.String()
}

// parseRecommendation reads the first {...} span of the reply.
func parseRecommendation(reply string) (Recommendation, error) {
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end <= start {
		return Recommendation{}, errBadRecommendation
	}
	var raw struct {
		BookTitle     string `json:"bookTitle"`
		Author        string `json:"author"`
		Quote         string `json:"quote"`
		Reason        string `json:"reason"`
		DrawingPrompt string `json:"drawing_prompt"`
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return Recommendation{}, fmt.Errorf("%w: %v", errBadRecommendation, err)
	}
	rec := Recommendation{
		BookTitle:     strings.TrimSpace(raw.BookTitle),
		Author:        strings.TrimSpace(raw.Author),
		Text:          strings.TrimSpace(raw.Quote),
		Reason:        strings.TrimSpace(raw.Reason),
		DrawingPrompt: strings.TrimSpace(raw.DrawingPrompt),
	}
	if rec.BookTitle == "" || rec.Author == "" || rec.Text == "" {
		return Recommendation{}, errBadRecommendation
	}
	if rec.Reason == "" {
		rec.Reason = defaultReason
	}
	if rec.DrawingPrompt == "" {
		rec.DrawingPrompt = defaultDrawingPrompt
	}
	return rec, nil
}

func (s *Service) suggest(ctx context.Context, liked domain.Card) Recommendation {
	if s.text != nil {
		reply, err := s.text.GenerateText(ctx, "", recommendationPrompt(liked))
		if err == nil {
			rec, perr := parseRecommendation(reply)
			if perr == nil {
				return rec
			}
			err = perr
		}
		s.logger.Warn("recommendation generation failed, using mock", "card_id", liked.ID, "err", err)
	}
	return mockRecommendations[s.intn(len(mockRecommendations))]
}

// Recommend builds an illustrated recommendation card for a liked card. It only fails when ctx is
// done; every generation failure degrades to a mock or a placeholder image.
func (s *Service) Recommend(ctx context.Context, liked domain.Card) (domain.SerendipityRecommendation, error) {
	rec := s.suggest(ctx, liked)
	if err := ctx.Err(); err != nil {
		return domain.SerendipityRecommendation{}, err
	}
	card := domain.Card{
		ID:           s.newID(),
		Text:         rec.Text,
		Subtext:      "📖 Recommended: " + rec.Reason,
		CardType:     domain.CardQuote,
		BookTitle:    rec.BookTitle,
		Author:       rec.Author,
		ImageURL:     s.recommendationImage(ctx, rec),
		MediaType:    domain.MediaImage,
		CreatedAt:    s.now(),
		UserID:       liked.UserID,
		SourceCardID: liked.ID,
	}
	if err := ctx.Err(); err != nil {
		return domain.SerendipityRecommendation{}, err
	}
	return domain.SerendipityRecommendation{
		ID:              s.newID(),
		OriginalCard:    liked,
		RecommendedCard: card,
		CreatedAt:       s.now(),
	}, nil
}

func (s *Service) recommendationImage(ctx context.Context, rec Recommendation) string {
	placeholder := fmt.Sprintf("https://picsum.photos/seed/%s/400/600", url.PathEscape(rec.BookTitle))
	if s.illustrator == nil {
		return placeholder
	}
	img, err := s.illustrator.Illustrate(ctx, rec.BookTitle, rec.Author, rec.Text, rec.DrawingPrompt)
	if err != nil {
		s.logger.Warn("recommendation illustration failed, using placeholder", "book_title", rec.BookTitle, "err", err)
		return placeholder
	}
	if compressed, err := s.compress(img, 0, 0); err == nil {
		return compressed
	}
	return img
}
