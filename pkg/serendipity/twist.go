package serendipity

import (
	"context"
	"fmt"

	"quotecards/pkg/domain"
)

var mockTwists = []string{
	`But from another perspective: what lies beneath "%s..."?`,
	`This reminds me of a completely opposite viewpoint...`,
	`Perhaps the truth is not so simple.`,
	`Think from a different angle: what if the opposite were true?`,
	`The opposing view is equally worth contemplating.`,
	`However, everything has two sides.`,
	`Let's challenge this assumption...`,
	`From a critical perspective...`,
}

// TwistPrompt is the text service prompt; a custom prompt replaces the default entirely.
func TwistPrompt(sourceText, custom string) string {
	if custom != "" {
		return custom
	}
	return fmt.Sprintf("Generate a contrasting or opposing viewpoint to: %q", sourceText)
}

func mockTwist(sourceText string, i int) string {
	tmpl := mockTwists[i%len(mockTwists)]
	if i%len(mockTwists) != 0 {
		return tmpl
	}
	runes := []rune(sourceText)
	if len(runes) > 20 {
		runes = runes[:20]
	}
	return fmt.Sprintf(tmpl, string(runes))
}

// TwistText returns the alternate viewpoint for sourceText, from the text service when it is
// configured and answers, otherwise the first canned twist.
func (s *Service) TwistText(ctx context.Context, sourceText, custom string) string {
	if s.textService != nil {
		texts, err := s.textService.GenerateTexts(ctx, TwistPrompt(sourceText, custom), 1)
		if err == nil && len(texts) > 0 {
			return texts[0]
		}
		s.logger.Warn("twist generation failed, using mock", "err", err)
	}
	return mockTwist(sourceText, 0)
}

// Twist derives a new card from original. The new card keeps the original's provenance and media,
// gets a random card type and belongs to userID. Comments and likes start empty.
func (s *Service) Twist(ctx context.Context, original domain.Card, custom, userID string) domain.Card {
	card := original
	card.ID = s.newID()
	card.Text = s.TwistText(ctx, original.Text, custom)
	card.CardType = domain.CardTypes[s.intn(len(domain.CardTypes))]
	card.Subtext = "Opposing perspective"
	if custom != "" {
		card.Subtext = "Twist with: " + custom
	}
	card.SourceCardID = original.ID
	card.UserID = userID
	card.LikesCount = 0
	card.Comments = nil
	card.CreatedAt = s.now()
	return card
}
