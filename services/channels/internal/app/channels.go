package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"quotecards/internal/util"
	"quotecards/pkg/domain"
	"quotecards/pkg/queue"
	"quotecards/pkg/store"
)

// Cold start card counts. Without an explicit count a channel gets a random 5 to 7 cards.
const (
	minColdStartCards = 5
	maxColdStartCards = 7
	maxRequestedCards = 10
)

// Channel list scopes.
const (
	ScopeAll  = ""
	ScopeMine = "mine"
	ScopeFeed = "feed"
)

// CreateChannelInput describes a new channel. Count 0 picks a random cold start size.
type CreateChannelInput struct {
	Name        string
	Author      string
	Description string
	DropToFeed  *bool
	Count       int
	Async       bool
}

// ChannelUpdate is a partial update; nil fields are left alone.
type ChannelUpdate struct {
	Name        *string
	Author      *string
	Description *string
	DropToFeed  *bool
}

// ListChannels returns every channel visible in scope, with presets reconciled in.
func (a *App) ListChannels(ctx context.Context, viewerID, scope string) ([]domain.ChannelView, error) {
	switch scope {
	case ScopeAll, ScopeMine, ScopeFeed:
	default:
		return nil, fmt.Errorf("%w: unknown scope %q", ErrInvalidInput, scope)
	}
	channels, err := a.store.GetAllChannels(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ChannelView, 0, len(channels))
	for _, ch := range channels {
		if scope == ScopeMine && (viewerID == "" || ch.UserID != viewerID) {
			continue
		}
		if scope == ScopeFeed && !ch.DropToFeed {
			continue
		}
		out = append(out, domain.ViewFor(ch, viewerID))
	}
	return out, nil
}

func (a *App) GetChannel(ctx context.Context, viewerID, id string) (domain.ChannelView, error) {
	ch, err := a.channel(ctx, id)
	if err != nil {
		return domain.ChannelView{}, err
	}
	return domain.ViewFor(ch, viewerID), nil
}

func (a *App) channel(ctx context.Context, id string) (domain.Channel, error) {
	ch, ok, err := a.store.GetChannel(ctx, id)
	if err != nil {
		return domain.Channel{}, err
	}
	if !ok {
		return domain.Channel{}, ErrChannelNotFound
	}
	return ch, nil
}

func (a *App) ownedChannel(ctx context.Context, user domain.User, id string) (domain.Channel, error) {
	ch, err := a.channel(ctx, id)
	if err != nil {
		return domain.Channel{}, err
	}
	if ch.UserID != user.ID {
		return domain.Channel{}, ErrForbidden
	}
	return ch, nil
}

// CreateChannel stores an empty channel and fills it with cold start cards. In async mode the
// cold start is queued and the returned job tracks it. A failed synchronous cold start leaves
// the empty channel in place and returns the generation error.
func (a *App) CreateChannel(ctx context.Context, user domain.User, in CreateChannelInput) (domain.ChannelView, *queue.Job, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Author = strings.TrimSpace(in.Author)
	if in.Name == "" {
		return domain.ChannelView{}, nil, fmt.Errorf("%w: channel name required", ErrInvalidInput)
	}
	if in.Count < 0 || in.Count > maxRequestedCards {
		return domain.ChannelView{}, nil, fmt.Errorf("%w: count must be between 1 and %d", ErrInvalidInput, maxRequestedCards)
	}
	if in.Async && a.queue == nil {
		return domain.ChannelView{}, nil, ErrAsyncUnavailable
	}
	count := in.Count
	if count == 0 {
		count = minColdStartCards + a.intn(maxColdStartCards-minColdStartCards+1)
	}

	now := a.now()
	ch := domain.Channel{
		ID:          util.NewID(),
		Name:        in.Name,
		Author:      in.Author,
		Description: strings.TrimSpace(in.Description),
		UserID:      user.ID,
		Cards:       []domain.Card{},
		CreatedAt:   now,
		UpdatedAt:   now,
		DropToFeed:  true,
	}
	if ch.Description == "" {
		ch.Description = defaultDescription(in.Name, in.Author)
	}
	if in.DropToFeed != nil {
		ch.DropToFeed = *in.DropToFeed
	}
	if _, err := a.store.AddChannel(ctx, ch); err != nil {
		return domain.ChannelView{}, nil, err
	}
	logger := util.LoggerFromContext(ctx).With("channel_id", ch.ID)

	if in.Async {
		job, err := a.queue.Enqueue(ctx, queue.Job{
			ChannelID: ch.ID,
			UserID:    user.ID,
			BookTitle: ch.Name,
			Author:    ch.Author,
			Count:     count,
		})
		if err != nil {
			return domain.ChannelView{}, nil, fmt.Errorf("enqueue cold start: %w", err)
		}
		logger.Info("cold start queued", "job_id", job.ID, "count", count)
		return domain.ViewFor(ch, user.ID), &job, nil
	}

	logger.Info("cold start started", "mode", a.generator.Mode(), "count", count)
	cards, err := a.generator.ColdStart(ctx, ch.Name, ch.Author, user.ID, count)
	if err != nil {
		logger.Error("cold start failed, channel left empty", "err", err)
		return domain.ViewFor(ch, user.ID), nil, err
	}
	updated, err := a.store.UpdateCards(ctx, ch.ID, func(existing []domain.Card) ([]domain.Card, error) {
		return append(existing, cards...), nil
	})
	if err != nil {
		if isNotFound(err) {
			return domain.ChannelView{}, nil, ErrChannelNotFound
		}
		return domain.ChannelView{}, nil, err
	}
	logger.Info("channel created", "cards", len(cards))
	return domain.ViewFor(updated, user.ID), nil, nil
}

func defaultDescription(name, author string) string {
	if author == "" {
		return name
	}
	return name + " by " + author
}

// RunColdStartJob is the queue handler: it generates the job's cards and appends them to its
// channel.
func (a *App) RunColdStartJob(ctx context.Context, job queue.Job) (int, error) {
	cards, err := a.generator.ColdStart(ctx, job.BookTitle, job.Author, job.UserID, job.Count)
	if err != nil {
		return 0, err
	}
	_, err = a.store.UpdateCards(ctx, job.ChannelID, func(existing []domain.Card) ([]domain.Card, error) {
		return append(existing, cards...), nil
	})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("channel %s no longer exists: %w", job.ChannelID, ErrChannelNotFound)
		}
		return 0, err
	}
	return len(cards), nil
}

// GenerateCards runs the cold start generator without storing anything.
func (a *App) GenerateCards(ctx context.Context, title, author string, count int) ([]domain.Card, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title required", ErrInvalidInput)
	}
	if count < 1 || count > maxRequestedCards {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", ErrInvalidInput, maxRequestedCards)
	}
	return a.generator.ColdStart(ctx, title, strings.TrimSpace(author), "", count)
}

// Job returns the status of an asynchronous cold start owned by user.
func (a *App) Job(ctx context.Context, user domain.User, jobID string) (queue.Job, error) {
	if a.queue == nil {
		return queue.Job{}, ErrJobNotFound
	}
	job, ok, err := a.queue.GetJob(ctx, jobID)
	if err != nil {
		return queue.Job{}, err
	}
	if !ok || job.UserID != user.ID {
		return queue.Job{}, ErrJobNotFound
	}
	return job, nil
}

// UpdateChannel applies a partial update to a channel owned by user.
func (a *App) UpdateChannel(ctx context.Context, user domain.User, id string, in ChannelUpdate) (domain.ChannelView, error) {
	if _, err := a.ownedChannel(ctx, user, id); err != nil {
		return domain.ChannelView{}, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return domain.ChannelView{}, fmt.Errorf("%w: channel name cannot be empty", ErrInvalidInput)
		}
		in.Name = &name
	}
	updated, err := a.store.UpdateChannel(ctx, id, store.ChannelPatch{
		Name:        in.Name,
		Author:      in.Author,
		Description: in.Description,
		DropToFeed:  in.DropToFeed,
	})
	if err != nil {
		if isNotFound(err) {
			return domain.ChannelView{}, ErrChannelNotFound
		}
		return domain.ChannelView{}, err
	}
	return domain.ViewFor(updated, user.ID), nil
}

// DeleteChannel removes a channel owned by user along with its uploaded media. Presets can never
// be deleted.
func (a *App) DeleteChannel(ctx context.Context, user domain.User, id string) error {
	ch, err := a.channel(ctx, id)
	if err != nil {
		return err
	}
	if ch.IsPreset {
		return store.ErrPresetChannel
	}
	if ch.UserID != user.ID {
		return ErrForbidden
	}
	if err := a.store.DeleteChannel(ctx, id); err != nil {
		if isNotFound(err) {
			return ErrChannelNotFound
		}
		return err
	}
	a.removeMedia(ctx, ch.Cards...)
	util.LoggerFromContext(ctx).Info("channel deleted", "channel_id", id, "cards", len(ch.Cards))
	return nil
}

// removeMedia deletes the stored objects behind cards once no remaining card references them.
// Twists copy their source card's media, so an object can outlive the card that uploaded it.
func (a *App) removeMedia(ctx context.Context, cards ...domain.Card) {
	if a.media == nil || len(cards) == 0 {
		return
	}
	doc, err := a.store.Read(ctx)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("media cleanup skipped", "err", err)
		return
	}
	inUse := map[string]struct{}{}
	for _, ch := range doc.Channels {
		for _, c := range ch.Cards {
			if c.ImageURL != "" {
				inUse[c.ImageURL] = struct{}{}
			}
		}
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for _, card := range cards {
		if card.ImageURL == "" {
			continue
		}
		if _, ok := inUse[card.ImageURL]; ok {
			continue
		}
		if err := a.media.Remove(ctx, card.ImageURL); err != nil && !errors.Is(err, context.Canceled) {
			util.LoggerFromContext(ctx).Warn("media cleanup failed", "card_id", card.ID, "err", err)
		}
	}
}
