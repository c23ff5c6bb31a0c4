// Package coldstart fills a new channel with illustrated quote cards.
package coldstart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"quotecards/internal/metrics"
	"quotecards/internal/util"
	"quotecards/pkg/domain"
	"quotecards/pkg/imaging"
)

// ParaphraseLabel marks cards whose text is not the exact wording of the book.
const ParaphraseLabel = "【大意】"

// ErrExtractionFailed wraps any failure of the extraction step; no cards are produced.
var ErrExtractionFailed = errors.New("quote extraction failed")

// Generator produces the initial cards of a channel.
type Generator interface {
	ColdStart(ctx context.Context, title, author, userID string, count int) ([]domain.Card, error)
	Mode() string
}

// DraftSource is the extraction stage.
type DraftSource interface {
	Extract(ctx context.Context, title, author string, count int) ([]QuoteDraft, error)
}

// Painter is the illustration stage.
type Painter interface {
	Illustrate(ctx context.Context, title, author, quote, brief string) (string, error)
}

// CompressFunc shrinks an image data URL.
type CompressFunc func(dataURL string, maxWidth int, quality float64) (string, error)

// PipelineOptions tunes a Pipeline. Zero values use the defaults.
type PipelineOptions struct {
	MaxWidth int
	Quality  float64
	Compress CompressFunc
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Now      func() time.Time
	NewID    func() string
}

// Pipeline runs extract, then illustrate and compress per draft, sequentially. A draft whose
// illustration fails is skipped; the rest still become cards.
type Pipeline struct {
	drafts   DraftSource
	painter  Painter
	compress CompressFunc
	maxWidth int
	quality  float64
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() string
}

func NewPipeline(drafts DraftSource, painter Painter, opts PipelineOptions) *Pipeline {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = imaging.DefaultMaxWidth
	}
	if opts.Quality <= 0 {
		opts.Quality = imaging.DefaultQuality
	}
	if opts.Compress == nil {
		opts.Compress = imaging.Compress
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = util.NewID
	}
	return &Pipeline{
		drafts:   drafts,
		painter:  painter,
		compress: opts.Compress,
		maxWidth: opts.MaxWidth,
		quality:  opts.Quality,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		now:      opts.Now,
		newID:    opts.NewID,
	}
}

func (p *Pipeline) Mode() string { return "pipeline" }

// ColdStart returns the cards that survived, in draft order.
func (p *Pipeline) ColdStart(ctx context.Context, title, author, userID string, count int) ([]domain.Card, error) {
	logger := util.LoggerFromContext(ctx)
	if logger == slog.Default() {
		logger = p.logger
	}
	logger = logger.With("book_title", title)

	drafts, err := p.drafts.Extract(ctx, title, author, count)
	if err != nil {
		p.observeRun("failed")
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	logger.Info("extracted quote drafts", "requested", count, "drafts", len(drafts))

	cards := make([]domain.Card, 0, len(drafts))
	for i, d := range drafts {
		if err := ctx.Err(); err != nil {
			p.observeRun("canceled")
			return nil, err
		}
		imageURL, err := p.painter.Illustrate(ctx, title, author, d.Text, d.IllustrationBrief)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				p.observeRun("canceled")
				return nil, ctxErr
			}
			logger.Warn("card illustration failed, skipping", "index", i, "err", err)
			p.observeCard("skipped")
			continue
		}
		if compressed, err := p.compress(imageURL, p.maxWidth, p.quality); err != nil {
			logger.Warn("image compression failed, keeping original", "index", i, "err", err)
		} else {
			imageURL = compressed
		}
		cards = append(cards, p.card(d, title, author, userID, imageURL))
		p.observeCard("generated")
	}
	logger.Info("cold start completed", "generated", len(cards), "drafts", len(drafts))
	p.observeRun("ok")
	return cards, nil
}

func (p *Pipeline) card(d QuoteDraft, title, author, userID, imageURL string) domain.Card {
	c := domain.Card{
		ID:        p.newID(),
		Text:      d.Text,
		CardType:  domain.CardQuote,
		BookTitle: title,
		Author:    author,
		ImageURL:  imageURL,
		MediaType: domain.MediaImage,
		CreatedAt: p.now(),
		UserID:    userID,
	}
	if !d.IsExactQuote {
		c.Subtext = ParaphraseLabel
	}
	return c
}

func (p *Pipeline) observeCard(result string) {
	if p.metrics != nil {
		p.metrics.ColdStartCards.WithLabelValues(result).Inc()
	}
}

func (p *Pipeline) observeRun(outcome string) {
	if p.metrics != nil {
		p.metrics.ColdStartRuns.WithLabelValues(p.Mode(), outcome).Inc()
	}
}
