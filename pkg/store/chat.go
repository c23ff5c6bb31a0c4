package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"quotecards/pkg/domain"
)

// DefaultChatPerChannel bounds how many messages a channel keeps.
const DefaultChatPerChannel = 200

// ChatLog is the flat chat message list stored under ChatKey. Each channel keeps only its
// newest messages.
type ChatLog struct {
	repo          Repository
	maxPerChannel int
	logger        *slog.Logger

	mu      sync.Mutex
	subsMu  sync.RWMutex
	subs    map[int]func(domain.ChatMessage)
	nextSub int
}

func NewChatLog(repo Repository, maxPerChannel int, logger *slog.Logger) *ChatLog {
	if maxPerChannel <= 0 {
		maxPerChannel = DefaultChatPerChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatLog{
		repo:          repo,
		maxPerChannel: maxPerChannel,
		logger:        logger,
		subs:          make(map[int]func(domain.ChatMessage)),
	}
}

func (c *ChatLog) load(ctx context.Context) ([]domain.ChatMessage, error) {
	raw, ok, err := c.repo.Get(ctx, ChatKey)
	if err != nil {
		return nil, fmt.Errorf("read chat: %w", err)
	}
	if !ok || len(raw) == 0 {
		return nil, nil
	}
	var msgs []domain.ChatMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		c.logger.Warn("stored chat log is corrupt, starting empty", "err", err)
		return nil, nil
	}
	return msgs, nil
}

// Append stores msg and trims its channel to the newest maxPerChannel messages. When storage is
// full the channel is trimmed to half its cap and the write retried once.
func (c *ChatLog) Append(ctx context.Context, msg domain.ChatMessage) error {
	c.mu.Lock()
	msgs, err := c.load(ctx)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	msgs = trimChannel(append(msgs, msg), msg.ChannelID, c.maxPerChannel)
	err = c.save(ctx, msgs)
	if errors.Is(err, ErrQuotaExceeded) {
		c.logger.Warn("chat storage full, trimming channel history", "channel_id", msg.ChannelID)
		err = c.save(ctx, trimChannel(msgs, msg.ChannelID, c.maxPerChannel/2))
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.subsMu.RLock()
	fns := make([]func(domain.ChatMessage), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subsMu.RUnlock()
	for _, fn := range fns {
		fn(msg)
	}
	return nil
}

func (c *ChatLog) save(ctx context.Context, msgs []domain.ChatMessage) error {
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode chat: %w", err)
	}
	if err := c.repo.Put(ctx, ChatKey, data); err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			return err
		}
		return fmt.Errorf("write chat: %w", err)
	}
	return nil
}

// List returns a channel's messages oldest first.
func (c *ChatLog) List(ctx context.Context, channelID string) ([]domain.ChatMessage, error) {
	c.mu.Lock()
	msgs, err := c.load(ctx)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := []domain.ChatMessage{}
	for _, m := range msgs {
		if m.ChannelID == channelID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Subscribe registers fn for every appended message.
func (c *ChatLog) Subscribe(fn func(domain.ChatMessage)) func() {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subsMu.Unlock()
	return func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

// trimChannel drops the oldest messages of channelID beyond limit, leaving other channels alone.
func trimChannel(msgs []domain.ChatMessage, channelID string, limit int) []domain.ChatMessage {
	if limit < 1 {
		limit = 1
	}
	var idx []int
	for i, m := range msgs {
		if m.ChannelID == channelID {
			idx = append(idx, i)
		}
	}
	if len(idx) <= limit {
		return msgs
	}
	sort.SliceStable(idx, func(a, b int) bool { return msgs[idx[a]].Timestamp.Before(msgs[idx[b]].Timestamp) })
	drop := make(map[int]struct{}, len(idx)-limit)
	for _, i := range idx[:len(idx)-limit] {
		drop[i] = struct{}{}
	}
	out := make([]domain.ChatMessage, 0, len(msgs)-len(drop))
	for i, m := range msgs {
		if _, ok := drop[i]; !ok {
			out = append(out, m)
		}
	}
	return out
}
