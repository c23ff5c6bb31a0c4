package store

import (
	"context"

	"quotecards/pkg/domain"
)

// ChannelPatch is a partial channel update; nil fields are left alone.
type ChannelPatch struct {
	Name        *string
	Author      *string
	Description *string
	DropToFeed  *bool
	Cards       *[]domain.Card
}

func (p ChannelPatch) apply(ch *domain.Channel) {
	if p.Name != nil {
		ch.Name = *p.Name
	}
	if p.Author != nil {
		ch.Author = *p.Author
	}
	if p.Description != nil {
		ch.Description = *p.Description
	}
	if p.DropToFeed != nil {
		ch.DropToFeed = *p.DropToFeed
	}
	if p.Cards != nil {
		ch.Cards = append([]domain.Card(nil), (*p.Cards)...)
	}
}

// AddChannel appends ch. The write may prune the oldest user channels, including ch itself if
// it is older than every channel kept.
func (s *Store) AddChannel(ctx context.Context, ch domain.Channel) (WriteResult, error) {
	return s.Update(ctx, func(doc *domain.Document) error {
		if doc.FindChannel(ch.ID) >= 0 {
			return ErrChannelExists
		}
		if ch.Cards == nil {
			ch.Cards = []domain.Card{}
		}
		doc.Channels = append(doc.Channels, ch)
		return nil
	})
}

// UpdateChannel applies patch to the channel and bumps updatedAt.
func (s *Store) UpdateChannel(ctx context.Context, id string, patch ChannelPatch) (domain.Channel, error) {
	var updated domain.Channel
	_, err := s.Update(ctx, func(doc *domain.Document) error {
		i := doc.FindChannel(id)
		if i < 0 {
			return ErrNotFound
		}
		patch.apply(&doc.Channels[i])
		doc.Channels[i].UpdatedAt = s.now()
		updated = doc.Channels[i]
		return nil
	})
	return updated, err
}

// UpdateCards replaces the channel's card list with whatever fn returns.
func (s *Store) UpdateCards(ctx context.Context, channelID string, fn func([]domain.Card) ([]domain.Card, error)) (domain.Channel, error) {
	var updated domain.Channel
	_, err := s.Update(ctx, func(doc *domain.Document) error {
		i := doc.FindChannel(channelID)
		if i < 0 {
			return ErrNotFound
		}
		current := append([]domain.Card(nil), doc.Channels[i].Cards...)
		cards, err := fn(current)
		if err != nil {
			return err
		}
		if cards == nil {
			cards = []domain.Card{}
		}
		doc.Channels[i].Cards = cards
		doc.Channels[i].UpdatedAt = s.now()
		updated = doc.Channels[i]
		return nil
	})
	return updated, err
}

// DeleteChannel removes a user channel. Presets are rejected with ErrPresetChannel and the
// document is not rewritten.
func (s *Store) DeleteChannel(ctx context.Context, id string) error {
	_, err := s.Update(ctx, func(doc *domain.Document) error {
		i := doc.FindChannel(id)
		if i < 0 {
			return ErrNotFound
		}
		if doc.Channels[i].IsPreset {
			return ErrPresetChannel
		}
		doc.Channels = append(doc.Channels[:i], doc.Channels[i+1:]...)
		return nil
	})
	return err
}

func (s *Store) GetChannel(ctx context.Context, id string) (domain.Channel, bool, error) {
	doc, err := s.Read(ctx)
	if err != nil {
		return domain.Channel{}, false, err
	}
	if i := doc.FindChannel(id); i >= 0 {
		return doc.Channels[i], true, nil
	}
	return domain.Channel{}, false, nil
}

// GetUserChannels lists the channels owned by userID in stored order.
func (s *Store) GetUserChannels(ctx context.Context, userID string) ([]domain.Channel, error) {
	doc, err := s.Read(ctx)
	if err != nil {
		return nil, err
	}
	out := []domain.Channel{}
	for _, ch := range doc.Channels {
		if ch.UserID == userID {
			out = append(out, ch)
		}
	}
	return out, nil
}

// GetAllChannels returns every channel after merging in missing presets. The document is only
// rewritten when a preset was actually added.
func (s *Store) GetAllChannels(ctx context.Context) ([]domain.Channel, error) {
	s.mu.Lock()
	doc, err := s.read(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	added := EnsurePresets(&doc, s.now())
	if added == 0 {
		s.mu.Unlock()
		return doc.Channels, nil
	}
	s.logger.Info("initialized preset channels", "added", added)
	_, err = s.write(ctx, &doc)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.publish(doc)
	return doc.Channels, nil
}

// FindCard locates a card anywhere in the document.
func (s *Store) FindCard(ctx context.Context, cardID string) (domain.Card, domain.Channel, bool, error) {
	doc, err := s.Read(ctx)
	if err != nil {
		return domain.Card{}, domain.Channel{}, false, err
	}
	for _, ch := range doc.Channels {
		if k := ch.CardIndex(cardID); k >= 0 {
			return ch.Cards[k], ch, true, nil
		}
	}
	return domain.Card{}, domain.Channel{}, false, nil
}
