package serendipity

import (
	"context"
	"fmt"
	"strings"

	"quotecards/pkg/domain"
)

func commentaryPrompt(p profile, card domain.Card) string {
	chinese := IsChinese(card.Text)
	var b strings.Builder
	b.WriteString(p.style)
	fmt.Fprintf(&b, "\n\nSomeone just showed you this quote from %q", card.BookTitle)
	if card.Author != "" {
		fmt.Fprintf(&b, " by %s", card.Author)
	}
	fmt.Fprintf(&b, ":\n\n%q\n\n", card.Text)
	fmt.Fprintf(&b, "React to it as %s. What do you really think?\n\n", DisplayName(p.persona, chinese))
	b.WriteString(`Your reply must:
- be 3 to 5 sentences (60 to 120 words), the length of something said out loud to a friend
- sound unmistakably like you in full flow, with your voice, your obsessions and your way of seeing
- be sharp and insightful but also human, passionate and happily biased
- mix big ideas with personality: witty, provocative, dramatic if that is your style
- feel spontaneous, never like a textbook
`)
	fmt.Fprintf(&b, "- match the language of the quote: a Chinese quote gets an answer entirely in Chinese signed as %s, an English quote an answer entirely in English signed as %s\n\n",
		p.persona.NameCn, p.persona.Name)
	b.WriteString("Do not explain the quote back. React to it: challenge it, build on it, expose what it is really about.")
	return b.String()
}

// Commentary returns persona's reaction to card. Model failures fall back to a canned line.
func (s *Service) Commentary(ctx context.Context, card domain.Card, persona domain.Persona) string {
	p, ok := profileByID(persona.ID)
	if !ok {
		p = profiles[0]
	}
	if s.text != nil {
		text, err := s.text.GenerateText(ctx, "", commentaryPrompt(p, card))
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
		s.logger.Warn("persona commentary generation failed, using mock", "persona", p.persona.ID, "err", err)
	}
	return p.mock(card, s.intn(len(p.mocks)))
}

// Flip produces a serendipity item for card. An empty or unknown personaID picks a random
// persona. The persona name is localized to the language of the card.
func (s *Service) Flip(ctx context.Context, card domain.Card, personaID string) domain.SerendipityItem {
	p, ok := profileByID(personaID)
	if !ok {
		p = profiles[s.intn(len(profiles))]
	}
	commentary := s.Commentary(ctx, card, p.persona)
	return domain.SerendipityItem{
		ID:           s.newID(),
		OriginalCard: card,
		Persona:      Localize(p.persona, IsChinese(card.Text)),
		Commentary:   commentary,
		CreatedAt:    s.now(),
	}
}

// CommentFromItem turns a flip result into a comment left on the card by userID.
func (s *Service) CommentFromItem(item domain.SerendipityItem, userID string) domain.Comment {
	return domain.Comment{
		ID:           s.newID(),
		PersonaName:  item.Persona.Name,
		PersonaEmoji: item.Persona.Emoji,
		Commentary:   item.Commentary,
		UserID:       userID,
		CreatedAt:    s.now(),
	}
}
