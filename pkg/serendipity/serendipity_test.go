package serendipity

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quotecards/pkg/ai"
	"quotecards/pkg/domain"
)

type stubText struct {
	reply  string
	err    error
	prompt string
}

func (s *stubText) GenerateText(_ context.Context, _ string, userPrompt string) (string, error) {
	s.prompt = userPrompt
	return s.reply, s.err
}

type stubPainter struct{ err error }

func (s stubPainter) Illustrate(context.Context, string, string, string, string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "data:image/png;base64,RAW", nil
}

func newTestService(opts Options) *Service {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	opts.Rand = rand.New(rand.NewPCG(1, 2))
	opts.Now = func() time.Time { return now }
	n := 0
	opts.NewID = func() string {
		n++
		return "id-" + string(rune('a'+n-1))
	}
	return NewService(opts)
}

var likedCard = domain.Card{
	ID:        "c1",
	Text:      "人是生而自由的，却无往不在枷锁之中。",
	BookTitle: "社会契约论",
	Author:    "卢梭",
	UserID:    "u1",
	CardType:  domain.CardQuote,
}

func TestIsChinese(t *testing.T) {
	cases := map[string]bool{
		"人是生而自由的":                   true,
		"Hello world":               false,
		"":                          false,
		"The word 自由 means freedom": false,
		"自由的人 free":               true,
	}
	for text, want := range cases {
		if got := IsChinese(text); got != want {
			t.Fatalf("IsChinese(%q) = %v, want %v", text, got, want)
		}
	}
}

func TestPersonaRegistry(t *testing.T) {
	personas := Personas()
	if len(personas) != 6 {
		t.Fatalf("personas = %d, want 6", len(personas))
	}
	p, ok := PersonaByID("nietzsche")
	if !ok || p.Emoji != "🦅" || p.NameCn != "弗里德里希·尼采" {
		t.Fatalf("persona = %+v, %v", p, ok)
	}
	if Localize(p, true).Name != "弗里德里希·尼采" || Localize(p, false).Name != "Friedrich Nietzsche" {
		t.Fatalf("localize wrong")
	}
}

func TestFlipUsesModelAndLocalizesPersona(t *testing.T) {
	text := &stubText{reply: "  资本的逻辑无处不在。 "}
	svc := newTestService(Options{Text: text})
	item := svc.Flip(context.Background(), likedCard, "Marx")
	if item.Commentary != "资本的逻辑无处不在。" {
		t.Fatalf("commentary = %q", item.Commentary)
	}
	if item.Persona.Name != "卡尔·马克思" || item.Persona.ID != "Marx" {
		t.Fatalf("persona = %+v", item.Persona)
	}
	if item.OriginalCard.ID != "c1" {
		t.Fatalf("original card = %+v", item.OriginalCard)
	}
	if !strings.Contains(text.prompt, "React to it as 卡尔·马克思") || !strings.Contains(text.prompt, `"社会契约论"`) {
		t.Fatalf("prompt missing persona or book: %s", text.prompt)
	}

	comment := svc.CommentFromItem(item, "u9")
	if comment.PersonaName != "卡尔·马克思" || comment.PersonaEmoji != "🧔‍♂️" || comment.UserID != "u9" {
		t.Fatalf("comment = %+v", comment)
	}
}

func TestCommentaryFallsBackToMock(t *testing.T) {
	svc := newTestService(Options{Text: &stubText{err: errors.New("503")}})
	card := domain.Card{Text: "Hope is a good thing", BookTitle: "Shawshank"}
	persona, _ := PersonaByID("Thatcher")
	got := svc.Commentary(context.Background(), card, persona)
	p, _ := profileByID("Thatcher")
	found := false
	for i := range p.mocks {
		if got == p.mock(card, i) {
			found = true
		}
	}
	if !found {
		t.Fatalf("commentary %q is not a Thatcher mock", got)
	}
	if strings.Contains(got, "{text}") || strings.Contains(got, "{title}") {
		t.Fatalf("placeholders left in %q", got)
	}
}

func TestParseRecommendationDefaults(t *testing.T) {
	rec, err := parseRecommendation("Here:\n```json\n{\"bookTitle\":\"Walden\",\"author\":\"Thoreau\",\"quote\":\"Simplify.\"}\n```")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec.Reason != defaultReason || rec.DrawingPrompt != defaultDrawingPrompt {
		t.Fatalf("defaults not applied: %+v", rec)
	}
	if _, err := parseRecommendation(`{"bookTitle":"Walden","quote":"Simplify."}`); !errors.Is(err, errBadRecommendation) {
		t.Fatalf("missing author: err = %v", err)
	}
	if _, err := parseRecommendation("no json"); !errors.Is(err, errBadRecommendation) {
		t.Fatalf("no json: err = %v", err)
	}
}

func TestRecommendBuildsIllustratedCard(t *testing.T) {
	text := &stubText{reply: `{"bookTitle":"论自由","author":"密尔","quote":"个人是其自身的最高主权者。","reason":"都讨论自由","drawing_prompt":"a kite cutting its own string"}`}
	svc := newTestService(Options{
		Text:        text,
		Illustrator: stubPainter{},
		Compress:    func(string, int, float64) (string, error) { return "data:image/jpeg;base64,SMALL", nil },
	})
	rec, err := svc.Recommend(context.Background(), likedCard)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	card := rec.RecommendedCard
	if card.Subtext != "📖 Recommended: 都讨论自由" || card.BookTitle != "论自由" || card.Author != "密尔" {
		t.Fatalf("card = %+v", card)
	}
	if card.UserID != "u1" || card.SourceCardID != "c1" || card.MediaType != domain.MediaImage {
		t.Fatalf("lineage = %+v", card)
	}
	if card.ImageURL != "data:image/jpeg;base64,SMALL" {
		t.Fatalf("image = %q", card.ImageURL)
	}
	if rec.OriginalCard.ID != "c1" {
		t.Fatalf("original = %+v", rec.OriginalCard)
	}
}

func TestRecommendFallsBackToMockAndPlaceholder(t *testing.T) {
	svc := newTestService(Options{
		Text:        &stubText{reply: "I refuse"},
		Illustrator: stubPainter{err: errors.New("no image")},
	})
	rec, err := svc.Recommend(context.Background(), likedCard)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	card := rec.RecommendedCard
	var mock *Recommendation
	for i := range mockRecommendations {
		if mockRecommendations[i].BookTitle == card.BookTitle {
			mock = &mockRecommendations[i]
		}
	}
	if mock == nil {
		t.Fatalf("book %q is not a mock recommendation", card.BookTitle)
	}
	if !strings.HasPrefix(card.ImageURL, "https://picsum.photos/seed/") {
		t.Fatalf("image = %q, want placeholder", card.ImageURL)
	}
}

func TestTwistUsesTextService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"texts":["枷锁也许是自由的前提。"]}`))
	}))
	defer srv.Close()
	client, err := ai.NewTextServiceClient(srv.URL, "k")
	if err != nil {
		t.Fatalf("text client: %v", err)
	}
	svc := newTestService(Options{TextService: client})

	original := likedCard
	original.LikesCount = 7
	original.Comments = []domain.Comment{{ID: "x"}}
	original.ImageURL = "data:image/jpeg;base64,IMG"
	card := svc.Twist(context.Background(), original, "", "u2")
	if card.Text != "枷锁也许是自由的前提。" || card.Subtext != "Opposing perspective" {
		t.Fatalf("card = %+v", card)
	}
	if card.ID == original.ID || card.SourceCardID != "c1" || card.UserID != "u2" {
		t.Fatalf("lineage = %+v", card)
	}
	if card.LikesCount != 0 || card.Comments != nil || card.ImageURL != original.ImageURL || card.BookTitle != "社会契约论" {
		t.Fatalf("copied fields = %+v", card)
	}
	if !card.CardType.Valid() {
		t.Fatalf("card type = %q", card.CardType)
	}
}

func TestTwistMockWithCustomPrompt(t *testing.T) {
	svc := newTestService(Options{})
	card := svc.Twist(context.Background(), likedCard, "From a feminist perspective", "u2")
	if card.Subtext != "Twist with: From a feminist perspective" {
		t.Fatalf("subtext = %q", card.Subtext)
	}
	want := `But from another perspective: what lies beneath "人是生而自由的，却无往不在枷锁之中。..."?`
	if card.Text != want {
		t.Fatalf("text = %q, want %q", card.Text, want)
	}
	if TwistPrompt("x", "") != `Generate a contrasting or opposing viewpoint to: "x"` {
		t.Fatalf("default prompt = %q", TwistPrompt("x", ""))
	}
}
