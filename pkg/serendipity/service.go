// Package serendipity generates the social side of cards: persona commentary, like-driven
// recommendations and twists. Every generation falls back to canned content when the model is
// missing or fails.
package serendipity

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"quotecards/internal/util"
	"quotecards/pkg/ai"
	"quotecards/pkg/coldstart"
	"quotecards/pkg/imaging"
)

// Options wires the generation surfaces. Any nil surface means its mock is used.
type Options struct {
	Text        ai.TextGenerator
	Illustrator coldstart.Painter
	Compress    coldstart.CompressFunc
	TextService *ai.TextServiceClient
	Logger      *slog.Logger
	Rand        *rand.Rand
	Now         func() time.Time
	NewID       func() string
}

type Service struct {
	text        ai.TextGenerator
	illustrator coldstart.Painter
	compress    coldstart.CompressFunc
	textService *ai.TextServiceClient
	logger      *slog.Logger
	intn        func(int) int
	now         func() time.Time
	newID       func() string
}

func NewService(opts Options) *Service {
	s := &Service{
		text:        opts.Text,
		illustrator: opts.Illustrator,
		compress:    opts.Compress,
		textService: opts.TextService,
		logger:      opts.Logger,
		intn:        rand.IntN,
		now:         opts.Now,
		newID:       opts.NewID,
	}
	if opts.Rand != nil {
		s.intn = opts.Rand.IntN
	}
	if s.compress == nil {
		s.compress = imaging.Compress
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = util.NewID
	}
	return s
}
