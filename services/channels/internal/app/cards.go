package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"quotecards/internal/util"
	"quotecards/pkg/domain"
	"quotecards/pkg/storage"
	"quotecards/pkg/store"
)

const (
	defaultUploadCaption = "Uploaded Media"
	recommendTimeout     = 3 * time.Minute
)

// UploadInput is a user-supplied media card: either a data URL or raw bytes with their content
// type.
type UploadInput struct {
	Caption     string
	DataURL     string
	ContentType string
	Data        []byte
}

// TwistInput selects where a twist card lands. Without a target channel a new child channel of
// the source channel is created.
type TwistInput struct {
	Prompt          string
	TargetChannelID string
	NewChannelName  string
	DropToFeed      *bool
}

// UploadCard adds a media card to a channel owned by user. Images are compressed first and keep
// their original bytes when compression fails.
func (a *App) UploadCard(ctx context.Context, user domain.User, channelID string, in UploadInput) (domain.Card, error) {
	ch, err := a.ownedChannel(ctx, user, channelID)
	if err != nil {
		return domain.Card{}, err
	}
	contentType, data := in.ContentType, in.Data
	if in.DataURL != "" {
		contentType, data, err = parseDataURL(in.DataURL)
		if err != nil {
			return domain.Card{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}
	if len(data) == 0 {
		return domain.Card{}, fmt.Errorf("%w: media required", ErrInvalidInput)
	}
	if len(data) > storage.MaxMediaBytes {
		return domain.Card{}, storage.ErrMediaTooLarge
	}
	contentType = normalizeContentType(contentType)
	kind, err := storage.MediaKind(contentType)
	if err != nil {
		return domain.Card{}, err
	}
	if kind == domain.MediaImage && contentType != "image/gif" {
		contentType, data = a.compressUpload(ctx, contentType, data)
	}

	var ref string
	if a.media != nil {
		ref, kind, err = a.media.Upload(ctx, user.ID, contentType, data)
		if err != nil {
			return domain.Card{}, fmt.Errorf("store media: %w", err)
		}
	} else {
		ref = encodeDataURL(contentType, data)
	}

	text := strings.TrimSpace(in.Caption)
	if text == "" {
		text = defaultUploadCaption
	}
	card := domain.Card{
		ID:         util.NewID(),
		Text:       text,
		CardType:   domain.CardQuote,
		BookTitle:  ch.Name,
		Author:     ch.Author,
		ImageURL:   ref,
		MediaType:  kind,
		CreatedAt:  a.now(),
		UserID:     user.ID,
		LikesCount: 0,
	}
	_, err = a.store.UpdateCards(ctx, ch.ID, func(cards []domain.Card) ([]domain.Card, error) {
		return append(cards, card), nil
	})
	if err != nil {
		if a.media != nil {
			if rmErr := a.media.Remove(ctx, ref); rmErr != nil {
				util.LoggerFromContext(ctx).Warn("orphaned media cleanup failed", "ref", ref, "err", rmErr)
			}
		}
		if isNotFound(err) {
			return domain.Card{}, ErrChannelNotFound
		}
		return domain.Card{}, err
	}
	util.LoggerFromContext(ctx).Info("card uploaded", "channel_id", ch.ID, "card_id", card.ID, "media_type", kind, "bytes", len(data))
	return card, nil
}

func (a *App) compressUpload(ctx context.Context, contentType string, data []byte) (string, []byte) {
	compressed, err := a.compress(encodeDataURL(contentType, data), 0, 0)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("upload compression failed, keeping original", "err", err)
		return contentType, data
	}
	ct, raw, err := parseDataURL(compressed)
	if err != nil {
		return contentType, data
	}
	return ct, raw
}

func normalizeContentType(contentType string) string {
	ct, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(contentType)), ";")
	return strings.TrimSpace(ct)
}

func encodeDataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func parseDataURL(value string) (string, []byte, error) {
	header, payload, ok := strings.Cut(strings.TrimSpace(value), ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return "", nil, errors.New("media must be a base64 data url")
	}
	contentType := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data url: %w", err)
	}
	return contentType, data, nil
}

// DeleteCard removes a card from a channel owned by user.
func (a *App) DeleteCard(ctx context.Context, user domain.User, channelID, cardID string) error {
	if _, err := a.ownedChannel(ctx, user, channelID); err != nil {
		return err
	}
	var removed domain.Card
	_, err := a.store.UpdateCards(ctx, channelID, func(cards []domain.Card) ([]domain.Card, error) {
		kept := make([]domain.Card, 0, len(cards))
		found := false
		for _, c := range cards {
			if c.ID == cardID {
				removed, found = c, true
				continue
			}
			kept = append(kept, c)
		}
		if !found {
			return nil, ErrCardNotFound
		}
		return kept, nil
	})
	if err != nil {
		if isNotFound(err) {
			return ErrChannelNotFound
		}
		return err
	}
	a.removeMedia(ctx, removed)
	return nil
}

// ToggleLike flips user's like on a card. A new like also generates a recommendation in the
// background; its failures are only logged.
func (a *App) ToggleLike(ctx context.Context, user domain.User, channelID, cardID string) (store.LikeResult, error) {
	res, err := a.store.ToggleLike(ctx, user.ID, channelID, cardID)
	if err != nil {
		if isNotFound(err) {
			return store.LikeResult{}, ErrCardNotFound
		}
		return store.LikeResult{}, err
	}
	if res.Liked {
		liked := res.Card
		a.goBackground(ctx, recommendTimeout, func(ctx context.Context) {
			a.recommend(ctx, liked)
		})
	}
	return res, nil
}

func (a *App) recommend(ctx context.Context, liked domain.Card) {
	logger := util.LoggerFromContext(ctx).With("card_id", liked.ID)
	rec, err := a.serendipity.Recommend(ctx, liked)
	if err != nil {
		logger.Warn("recommendation abandoned", "err", err)
		return
	}
	if err := a.store.AddSerendipityRecommendation(ctx, rec); err != nil {
		logger.Warn("recommendation not saved", "err", err)
		return
	}
	logger.Info("recommendation saved", "recommendation_id", rec.ID, "book_title", rec.RecommendedCard.BookTitle)
}

func (a *App) card(ctx context.Context, channelID, cardID string) (domain.Card, domain.Channel, error) {
	ch, err := a.channel(ctx, channelID)
	if err != nil {
		return domain.Card{}, domain.Channel{}, err
	}
	k := ch.CardIndex(cardID)
	if k < 0 {
		return domain.Card{}, domain.Channel{}, ErrCardNotFound
	}
	return ch.Cards[k], ch, nil
}

// Flip asks a persona about a card, records the result as a serendipity item and leaves it on the
// card as a comment by user.
func (a *App) Flip(ctx context.Context, user domain.User, channelID, cardID, personaID string) (domain.SerendipityItem, domain.Card, error) {
	card, _, err := a.card(ctx, channelID, cardID)
	if err != nil {
		return domain.SerendipityItem{}, domain.Card{}, err
	}
	item := a.serendipity.Flip(ctx, card, personaID)
	if err := ctx.Err(); err != nil {
		return domain.SerendipityItem{}, domain.Card{}, err
	}
	if err := a.store.AddSerendipityItem(ctx, item); err != nil {
		return domain.SerendipityItem{}, domain.Card{}, err
	}
	comment := a.serendipity.CommentFromItem(item, user.ID)
	var updated domain.Card
	_, err = a.store.UpdateCards(ctx, channelID, func(cards []domain.Card) ([]domain.Card, error) {
		for i := range cards {
			if cards[i].ID == cardID {
				cards[i].Comments = append(cards[i].Comments, comment)
				updated = cards[i]
				return cards, nil
			}
		}
		return nil, ErrCardNotFound
	})
	if err != nil {
		if isNotFound(err) {
			return domain.SerendipityItem{}, domain.Card{}, ErrChannelNotFound
		}
		return domain.SerendipityItem{}, domain.Card{}, err
	}
	return item, updated, nil
}

// Twist derives an alternate-viewpoint card and files it in a channel owned by user, or in a new
// child channel of the source channel.
func (a *App) Twist(ctx context.Context, user domain.User, channelID, cardID string, in TwistInput) (domain.Card, domain.ChannelView, error) {
	original, source, err := a.card(ctx, channelID, cardID)
	if err != nil {
		return domain.Card{}, domain.ChannelView{}, err
	}
	var target domain.Channel
	if in.TargetChannelID != "" {
		if target, err = a.ownedChannel(ctx, user, in.TargetChannelID); err != nil {
			return domain.Card{}, domain.ChannelView{}, err
		}
	}

	card := a.serendipity.Twist(ctx, original, strings.TrimSpace(in.Prompt), user.ID)
	if err := ctx.Err(); err != nil {
		return domain.Card{}, domain.ChannelView{}, err
	}

	if in.TargetChannelID != "" {
		updated, err := a.store.UpdateCards(ctx, target.ID, func(cards []domain.Card) ([]domain.Card, error) {
			return append(cards, card), nil
		})
		if err != nil {
			if isNotFound(err) {
				return domain.Card{}, domain.ChannelView{}, ErrChannelNotFound
			}
			return domain.Card{}, domain.ChannelView{}, err
		}
		return card, domain.ViewFor(updated, user.ID), nil
	}

	name := strings.TrimSpace(in.NewChannelName)
	if name == "" {
		name = "Twist: " + source.Name
	}
	now := a.now()
	child := domain.Channel{
		ID:              util.NewID(),
		Name:            name,
		Author:          source.Author,
		Description:     defaultDescription(name, source.Author),
		UserID:          user.ID,
		Cards:           []domain.Card{card},
		CreatedAt:       now,
		UpdatedAt:       now,
		ParentChannelID: source.ID,
	}
	if in.DropToFeed != nil {
		child.DropToFeed = *in.DropToFeed
	}
	if _, err := a.store.AddChannel(ctx, child); err != nil {
		return domain.Card{}, domain.ChannelView{}, err
	}
	util.LoggerFromContext(ctx).Info("twist channel created", "channel_id", child.ID, "parent_channel_id", source.ID)
	return card, domain.ViewFor(child, user.ID), nil
}
