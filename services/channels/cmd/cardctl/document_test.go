package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"quotecards/pkg/domain"
	"quotecards/pkg/store"
)

func TestSummarizeCountsDocument(t *testing.T) {
	doc := domain.EmptyDocument()
	doc.Channels = append(doc.Channels, store.PresetChannels(time.Unix(0, 0))...)
	presetCards := 0
	for _, ch := range doc.Channels {
		presetCards += len(ch.Cards)
	}
	current := "u-1"
	doc.CurrentUserID = &current
	doc.Users = append(doc.Users, domain.User{ID: "u-1", Username: "alice"})
	doc.Channels = append(doc.Channels, domain.Channel{
		ID:     "c-1",
		UserID: "u-1",
		Cards: []domain.Card{
			{ID: "k-1", ImageURL: "data:image/jpeg;base64,AAAA", Comments: []domain.Comment{{ID: "m-1"}}},
			{ID: "k-2"},
		},
	})

	got := summarize(doc)
	want := summary{
		Users:          1,
		UserChannels:   1,
		PresetChannels: len(store.PresetIDs()),
		Cards:          presetCards + 2,
		MediaCards:     got.MediaCards,
		Comments:       got.Comments,
		CurrentUser:    "alice",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
	if got.MediaCards < 1 || got.Comments < 1 {
		t.Fatalf("media or comments not counted: %+v", got)
	}

	var buf bytes.Buffer
	writeSummary(&buf, got)
	if !strings.Contains(buf.String(), "current user:     alice") {
		t.Fatalf("unexpected summary output:\n%s", buf.String())
	}
}

func TestSummarizeUnknownCurrentUser(t *testing.T) {
	doc := domain.EmptyDocument()
	ghost := "gone"
	doc.CurrentUserID = &ghost
	if got := summarize(doc).CurrentUser; got != "gone" {
		t.Fatalf("current user = %q, want raw id", got)
	}
	if got := summarize(domain.EmptyDocument()).CurrentUser; got != "-" {
		t.Fatalf("current user = %q, want -", got)
	}
}
