package app

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"quotecards/internal/util"
	"quotecards/pkg/domain"
	"quotecards/pkg/serendipity"
)

const maxChatRunes = 500

// ChatMessages lists a channel's chat, oldest first.
func (a *App) ChatMessages(ctx context.Context, channelID string) ([]domain.ChatMessage, error) {
	if _, err := a.channel(ctx, channelID); err != nil {
		return nil, err
	}
	return a.chat.List(ctx, channelID)
}

// PostChat appends a message by user to a channel's chat.
func (a *App) PostChat(ctx context.Context, user domain.User, channelID, text string) (domain.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ChatMessage{}, fmt.Errorf("%w: message text required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(text) > maxChatRunes {
		return domain.ChatMessage{}, fmt.Errorf("%w: message longer than %d characters", ErrInvalidInput, maxChatRunes)
	}
	if _, err := a.channel(ctx, channelID); err != nil {
		return domain.ChatMessage{}, err
	}
	msg := domain.ChatMessage{
		ID:        util.NewID(),
		ChannelID: channelID,
		UserID:    user.ID,
		Username:  user.Username,
		Text:      text,
		Timestamp: a.now(),
	}
	if err := a.chat.Append(ctx, msg); err != nil {
		return domain.ChatMessage{}, err
	}
	return msg, nil
}

// SubscribeChat delivers new messages of one channel to fn until the returned func is called.
func (a *App) SubscribeChat(channelID string, fn func(domain.ChatMessage)) func() {
	if a.metrics != nil {
		a.metrics.ChatSubscribers.Inc()
	}
	cancel := a.chat.Subscribe(func(msg domain.ChatMessage) {
		if msg.ChannelID == channelID {
			fn(msg)
		}
	})
	return func() {
		cancel()
		if a.metrics != nil {
			a.metrics.ChatSubscribers.Dec()
		}
	}
}

func (a *App) Personas() []domain.Persona {
	return serendipity.Personas()
}

// SerendipityItems lists the persona flips about cards user currently likes.
func (a *App) SerendipityItems(ctx context.Context, user domain.User) ([]domain.SerendipityItem, error) {
	return a.store.GetUserSerendipityItems(ctx, user.ID)
}

func (a *App) DeleteSerendipityItem(ctx context.Context, id string) error {
	if err := a.store.DeleteSerendipityItem(ctx, id); err != nil {
		if isNotFound(err) {
			return ErrItemNotFound
		}
		return err
	}
	return nil
}

// Recommendations lists recommendations generated from cards user currently likes.
func (a *App) Recommendations(ctx context.Context, user domain.User) ([]domain.SerendipityRecommendation, error) {
	return a.store.GetUserSerendipityRecommendations(ctx, user.ID)
}

func (a *App) DeleteRecommendation(ctx context.Context, id string) error {
	if err := a.store.DeleteSerendipityRecommendation(ctx, id); err != nil {
		if isNotFound(err) {
			return ErrItemNotFound
		}
		return err
	}
	return nil
}

// MediaURL presigns the stored object behind a /media/ reference.
func (a *App) MediaURL(ctx context.Context, key string) (string, error) {
	if a.media == nil {
		return "", ErrMediaUnavailable
	}
	return a.media.URL(ctx, key)
}
