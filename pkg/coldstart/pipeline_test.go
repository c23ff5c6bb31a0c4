package coldstart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"quotecards/pkg/domain"
	"quotecards/pkg/imaging"
)

type stubDrafts struct {
	drafts []QuoteDraft
	err    error
}

func (s stubDrafts) Extract(context.Context, string, string, int) ([]QuoteDraft, error) {
	return s.drafts, s.err
}

type stubPainter struct {
	fail  map[string]bool
	calls []string
}

func (s *stubPainter) Illustrate(_ context.Context, _, _, quote, _ string) (string, error) {
	s.calls = append(s.calls, quote)
	if s.fail[quote] {
		return "", errors.New("image model refused")
	}
	return "data:image/png;base64,BIG-" + quote, nil
}

func shrink(dataURL string, _ int, _ float64) (string, error) {
	return strings.Replace(dataURL, "BIG", "small", 1), nil
}

func testPipeline(drafts DraftSource, painter Painter, compress CompressFunc) *Pipeline {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	n := 0
	return NewPipeline(drafts, painter, PipelineOptions{
		Compress: compress,
		Now:      func() time.Time { return now },
		NewID: func() string {
			n++
			return fmt.Sprintf("card-%d", n)
		},
	})
}

func TestColdStartSingleDraft(t *testing.T) {
	p := testPipeline(
		stubDrafts{drafts: []QuoteDraft{{Text: "A", IsExactQuote: true, IllustrationBrief: "b"}}},
		&stubPainter{},
		shrink,
	)
	cards, err := p.ColdStart(context.Background(), "Book", "Author", "u1", 1)
	if err != nil {
		t.Fatalf("cold start: %v", err)
	}
	want := []domain.Card{{
		ID:        "card-1",
		Text:      "A",
		CardType:  domain.CardQuote,
		BookTitle: "Book",
		Author:    "Author",
		ImageURL:  "data:image/png;base64,small-A",
		MediaType: domain.MediaImage,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UserID:    "u1",
	}}
	if diff := cmp.Diff(want, cards); diff != "" {
		t.Fatalf("cards mismatch (-want +got):\n%s", diff)
	}
}

func TestColdStartSkipsFailedIllustrations(t *testing.T) {
	var drafts []QuoteDraft
	for i := 1; i <= 6; i++ {
		drafts = append(drafts, QuoteDraft{Text: fmt.Sprintf("q%d", i), IsExactQuote: i%2 == 0, IllustrationBrief: "x"})
	}
	painter := &stubPainter{fail: map[string]bool{"q2": true, "q5": true}}
	cards, err := testPipeline(stubDrafts{drafts: drafts}, painter, shrink).
		ColdStart(context.Background(), "Book", "", "u1", 6)
	if err != nil {
		t.Fatalf("cold start: %v", err)
	}
	var texts []string
	for _, c := range cards {
		texts = append(texts, c.Text)
	}
	if diff := cmp.Diff([]string{"q1", "q3", "q4", "q6"}, texts); diff != "" {
		t.Fatalf("surviving cards (-want +got):\n%s", diff)
	}
	if len(painter.calls) != 6 {
		t.Fatalf("illustrate calls = %d, want 6", len(painter.calls))
	}
	if cards[0].Subtext != ParaphraseLabel || cards[2].Subtext != "" {
		t.Fatalf("subtexts = %q, %q", cards[0].Subtext, cards[2].Subtext)
	}
}

func TestColdStartKeepsOriginalWhenCompressionFails(t *testing.T) {
	p := testPipeline(
		stubDrafts{drafts: []QuoteDraft{{Text: "A", IsExactQuote: true, IllustrationBrief: "b"}}},
		&stubPainter{},
		func(string, int, float64) (string, error) { return "", imaging.ErrDecode },
	)
	cards, err := p.ColdStart(context.Background(), "Book", "", "u1", 1)
	if err != nil {
		t.Fatalf("cold start: %v", err)
	}
	if len(cards) != 1 || cards[0].ImageURL != "data:image/png;base64,BIG-A" {
		t.Fatalf("cards = %+v", cards)
	}
}

func TestColdStartExtractionFailureIsFatal(t *testing.T) {
	upstream := errors.New("no json")
	painter := &stubPainter{}
	_, err := testPipeline(stubDrafts{err: upstream}, painter, shrink).
		ColdStart(context.Background(), "Book", "", "u1", 6)
	if !errors.Is(err, ErrExtractionFailed) || !errors.Is(err, upstream) {
		t.Fatalf("err = %v", err)
	}
	if len(painter.calls) != 0 {
		t.Fatalf("illustration should not run after extraction failure")
	}
}

func TestColdStartStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	painter := &cancelingPainter{cancel: cancel}
	drafts := []QuoteDraft{{Text: "1", IllustrationBrief: "x"}, {Text: "2", IllustrationBrief: "x"}}
	_, err := testPipeline(stubDrafts{drafts: drafts}, painter, shrink).ColdStart(ctx, "Book", "", "u1", 2)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if painter.calls != 1 {
		t.Fatalf("illustrate calls = %d, want 1", painter.calls)
	}
}

type cancelingPainter struct {
	cancel context.CancelFunc
	calls  int
}

func (c *cancelingPainter) Illustrate(ctx context.Context, _, _, _, _ string) (string, error) {
	c.calls++
	c.cancel()
	return "", ctx.Err()
}

func TestMockGenerator(t *testing.T) {
	m := &MockGenerator{Delay: time.Millisecond}
	cards, err := m.ColdStart(context.Background(), "Walden", "Thoreau", "u1", 7)
	if err != nil {
		t.Fatalf("mock cold start: %v", err)
	}
	if len(cards) != 6 {
		t.Fatalf("cards = %d, want 6", len(cards))
	}
	if cards[2].ImageURL != "https://picsum.photos/seed/Walden_2/400/600" {
		t.Fatalf("image url = %q", cards[2].ImageURL)
	}
	if cards[0].Author != "Thoreau" || cards[0].UserID != "u1" || cards[0].CardType != domain.CardQuote {
		t.Fatalf("card = %+v", cards[0])
	}

	few, _ := m.ColdStart(context.Background(), "Walden", "", "u1", 3)
	if len(few) != 3 {
		t.Fatalf("cards = %d, want 3", len(few))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := &MockGenerator{Delay: time.Hour}
	if _, err := slow.ColdStart(ctx, "Walden", "", "u1", 6); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestNewSelectsMockWithoutCredentials(t *testing.T) {
	gen, err := New(Config{VertexBaseURL: "https://gateway.example.com/v1"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if gen.Mode() != "mock" {
		t.Fatalf("mode = %s, want mock", gen.Mode())
	}
	gen, err = New(Config{VertexBaseURL: "https://gateway.example.com/v1", VertexAPIKey: "k"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if gen.Mode() != "pipeline" {
		t.Fatalf("mode = %s, want pipeline", gen.Mode())
	}
}
