package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"quotecards/internal/metrics"
	"quotecards/pkg/domain"
)

// WriteResult describes what a successful write had to do to fit the document in storage.
type WriteResult struct {
	Bytes        int
	Pruned       int
	MediaDropped bool
}

// Options configures a Store.
type Options struct {
	Key             string
	MaxUserChannels int
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
	Now             func() time.Time
}

// Store owns the persisted document. Every mutation is a read-modify-write of the whole document
// under one mutex, and nothing is cached between calls: the repository is the only copy, so a
// failed write leaves the previous document in place.
type Store struct {
	repo            Repository
	key             string
	maxUserChannels int
	logger          *slog.Logger
	metrics         *metrics.Metrics
	now             func() time.Time

	mu sync.Mutex

	subsMu  sync.RWMutex
	subs    map[int]func(domain.Document)
	nextSub int
}

// New builds a Store on repo.
func New(repo Repository, opts Options) *Store {
	if opts.Key == "" {
		opts.Key = DocumentKey
	}
	if opts.MaxUserChannels <= 0 {
		opts.MaxUserChannels = DefaultMaxUserChannels
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		repo:            repo,
		key:             opts.Key,
		maxUserChannels: opts.MaxUserChannels,
		logger:          opts.Logger,
		metrics:         opts.Metrics,
		now:             opts.Now,
		subs:            make(map[int]func(domain.Document)),
	}
}

// Subscribe registers fn to receive every successfully written document. The returned func
// removes the subscription.
func (s *Store) Subscribe(fn func(domain.Document)) func() {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()
	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) publish(doc domain.Document) {
	s.subsMu.RLock()
	fns := make([]func(domain.Document), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.RUnlock()
	for _, fn := range fns {
		fn(doc)
	}
}

// Read returns the persisted document. A missing or unparsable value reads as an empty document.
func (s *Store) Read(ctx context.Context) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(ctx)
}

// Write persists doc, applying retention and the media-dropping fallback. doc itself is left
// untouched; the fallback works on a copy.
func (s *Store) Write(ctx context.Context, doc domain.Document) (WriteResult, error) {
	doc = detach(doc)
	s.mu.Lock()
	res, err := s.write(ctx, &doc)
	s.mu.Unlock()
	if err != nil {
		return res, err
	}
	s.publish(doc)
	return res, nil
}

// Update runs fn on the current document and persists the result. When fn returns an error
// nothing is written and the error is returned unchanged.
func (s *Store) Update(ctx context.Context, fn func(*domain.Document) error) (WriteResult, error) {
	s.mu.Lock()
	doc, err := s.read(ctx)
	if err != nil {
		s.mu.Unlock()
		return WriteResult{}, err
	}
	if err := fn(&doc); err != nil {
		s.mu.Unlock()
		return WriteResult{}, err
	}
	res, err := s.write(ctx, &doc)
	s.mu.Unlock()
	if err != nil {
		return res, err
	}
	s.publish(doc)
	return res, nil
}

// detach copies every slice the write path edits in place.
func detach(doc domain.Document) domain.Document {
	channels := make([]domain.Channel, len(doc.Channels))
	for i, ch := range doc.Channels {
		ch.Cards = append([]domain.Card(nil), ch.Cards...)
		channels[i] = ch
	}
	doc.Channels = channels
	doc.Users = append([]domain.User(nil), doc.Users...)
	doc.SerendipityItems = append([]domain.SerendipityItem(nil), doc.SerendipityItems...)
	doc.SerendipityRecommendations = append([]domain.SerendipityRecommendation(nil), doc.SerendipityRecommendations...)
	return doc
}

func (s *Store) read(ctx context.Context) (domain.Document, error) {
	raw, ok, err := s.repo.Get(ctx, s.key)
	if err != nil {
		return domain.Document{}, fmt.Errorf("read document: %w", err)
	}
	if !ok || len(raw) == 0 {
		return domain.EmptyDocument(), nil
	}
	var doc domain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.logger.Warn("stored document is corrupt, starting empty", "key", s.key, "bytes", len(raw), "err", err)
		return domain.EmptyDocument(), nil
	}
	doc.Normalize()
	return doc, nil
}

func (s *Store) write(ctx context.Context, doc *domain.Document) (WriteResult, error) {
	doc.Normalize()
	var res WriteResult
	doc.Channels, res.Pruned = ApplyRetention(doc.Channels, s.maxUserChannels)
	if res.Pruned > 0 {
		s.logger.Info("pruned old user channels", "pruned", res.Pruned, "limit", s.maxUserChannels)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return res, fmt.Errorf("encode document: %w", err)
	}
	err = s.repo.Put(ctx, s.key, data)
	if err == nil {
		res.Bytes = len(data)
		s.observe("ok", res)
		return res, nil
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		s.observe("failed", res)
		return res, fmt.Errorf("write document: %w", err)
	}

	stripped := StripMedia(doc)
	var pruned int
	doc.Channels, pruned = ApplyRetention(doc.Channels, s.maxUserChannels)
	res.Pruned += pruned
	res.MediaDropped = true
	s.logger.Warn("storage quota exceeded, retrying without media",
		"attempted_bytes", len(data), "cards_stripped", stripped)

	data, err = json.Marshal(doc)
	if err != nil {
		return res, fmt.Errorf("encode document: %w", err)
	}
	if err := s.repo.Put(ctx, s.key, data); err != nil {
		s.observe("failed", res)
		s.logger.Error("document could not be saved without media", "bytes", len(data), "err", err)
		return res, fmt.Errorf("%w: %v", ErrStorageFull, err)
	}
	res.Bytes = len(data)
	s.observe("media_dropped", res)
	return res, nil
}

func (s *Store) observe(outcome string, res WriteResult) {
	if s.metrics == nil {
		return
	}
	s.metrics.StoreWrites.WithLabelValues(outcome).Inc()
	if res.Pruned > 0 {
		s.metrics.ChannelsPruned.Add(float64(res.Pruned))
	}
	if res.Bytes > 0 {
		s.metrics.StoreBytes.Set(float64(res.Bytes))
	}
}

// Size returns the serialized size of the stored document in bytes.
func (s *Store) Size(ctx context.Context) (int, error) {
	raw, _, err := s.repo.Get(ctx, s.key)
	if err != nil {
		return 0, fmt.Errorf("read document: %w", err)
	}
	return len(raw), nil
}

// Clear removes the stored document entirely.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	err := s.repo.Delete(ctx, s.key)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("clear document: %w", err)
	}
	s.publish(domain.EmptyDocument())
	return nil
}

// StripAllMedia drops every media payload and persists the result.
func (s *Store) StripAllMedia(ctx context.Context) (int, error) {
	var stripped int
	_, err := s.Update(ctx, func(doc *domain.Document) error {
		stripped = StripMedia(doc)
		return nil
	})
	return stripped, err
}
