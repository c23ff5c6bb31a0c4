package coldstart

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"quotecards/internal/metrics"
	"quotecards/internal/util"
	"quotecards/pkg/ai"
	"quotecards/pkg/domain"
)

// DefaultMockDelay imitates the latency of a real generation run.
const DefaultMockDelay = 2 * time.Second

type mockQuote struct {
	text  string
	brief string
}

var mockQuotes = []mockQuote{
	{"人生最大的幸福，莫过于连一分钟都无法休息。", "a tired clock running on a treadmill"},
	{"真正的自由不是想做什么就做什么，而是不想做什么就不做什么。", "a bird in a cage with an open door"},
	{"我们花了两年学会说话，却要用一生学会闭嘴。", "a mouth with a zipper slowly closing"},
	{"当你凝视深渊时，深渊也在凝视你。", "two mirrors facing each other infinitely"},
	{"人生如茶，不会苦一辈子，但总会苦一阵子。", "a teacup gradually changing colors"},
	{"你永远无法叫醒一个装睡的人。", "an alarm clock ringing next to closed eyes"},
}

// MockGenerator returns canned cards after a fixed delay. It is used when no model is configured.
type MockGenerator struct {
	Delay   time.Duration
	Images  *ai.PlaceholderImageClient
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
	NewID   func() string
}

func (m *MockGenerator) Mode() string { return "mock" }

// ColdStart returns min(count, 6) canned quote cards.
func (m *MockGenerator) ColdStart(ctx context.Context, title, author, userID string, count int) ([]domain.Card, error) {
	delay := m.Delay
	if delay < 0 {
		delay = 0
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		m.observe("canceled")
		return nil, ctx.Err()
	case <-timer.C:
	}

	now, newID := m.Now, m.NewID
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = util.NewID
	}
	n := min(count, len(mockQuotes))
	cards := make([]domain.Card, 0, max(n, 0))
	for i := 0; i < n; i++ {
		q := mockQuotes[i]
		imageURL := fmt.Sprintf("https://picsum.photos/seed/%s_%d/400/600", url.PathEscape(title), i)
		if m.Images != nil {
			imageURL = m.Images.ImageURLOrMock(ctx, q.brief, "")
		}
		cards = append(cards, domain.Card{
			ID:        newID(),
			Text:      q.text,
			CardType:  domain.CardQuote,
			BookTitle: title,
			Author:    author,
			ImageURL:  imageURL,
			MediaType: domain.MediaImage,
			CreatedAt: now(),
			UserID:    userID,
		})
	}
	logger := m.Logger
	if logger == nil {
		logger = util.LoggerFromContext(ctx)
	}
	logger.Info("mock cold start completed", "book_title", title, "generated", len(cards))
	m.observe("ok")
	return cards, nil
}

func (m *MockGenerator) observe(outcome string) {
	if m.Metrics != nil {
		m.Metrics.ColdStartRuns.WithLabelValues(m.Mode(), outcome).Inc()
	}
}
