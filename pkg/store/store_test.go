package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"quotecards/pkg/domain"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return baseTime }

func newTestStore(repo Repository) *Store {
	return New(repo, Options{Now: fixedNow})
}

func userChannel(i int, media string) domain.Channel {
	id := fmt.Sprintf("ch-%d", i)
	return domain.Channel{
		ID:        id,
		Name:      fmt.Sprintf("Book %d", i),
		UserID:    "u1",
		CreatedAt: baseTime.Add(time.Duration(i) * time.Hour),
		UpdatedAt: baseTime.Add(time.Duration(i) * time.Hour),
		Cards: []domain.Card{
			{ID: id + "-a", Text: "a", CardType: domain.CardQuote, ImageURL: media, MediaType: domain.MediaImage, UserID: "u1"},
			{ID: id + "-b", Text: "b", CardType: domain.CardQuote, ImageURL: media, MediaType: domain.MediaImage, UserID: "u1"},
		},
	}
}

func channelIDs(chs []domain.Channel) []string {
	ids := make([]string, 0, len(chs))
	for _, ch := range chs {
		ids = append(ids, ch.ID)
	}
	return ids
}

func TestReadMissingAndCorruptDocumentIsEmpty(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(0)
	s := newTestStore(repo)

	doc, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("read missing: %v", err)
	}
	if len(doc.Channels) != 0 || doc.CurrentUserID != nil {
		t.Fatalf("expected empty document, got %+v", doc)
	}

	if err := repo.Put(ctx, DocumentKey, []byte("{not json")); err != nil {
		t.Fatalf("seed corrupt value: %v", err)
	}
	doc, err = s.Read(ctx)
	if err != nil {
		t.Fatalf("read corrupt: %v", err)
	}
	if doc.Users == nil || doc.Channels == nil || len(doc.Users) != 0 {
		t.Fatalf("expected normalized empty document, got %+v", doc)
	}
}

func TestWriteKeepsFiveNewestUserChannelsAndAllPresets(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(NewMemoryRepository(0))

	doc := domain.EmptyDocument()
	doc.Channels = append(doc.Channels, PresetChannels(baseTime.Add(-48*time.Hour))...)
	for i := 0; i < 8; i++ {
		doc.Channels = append(doc.Channels, userChannel(i, ""))
	}

	res, err := s.Write(ctx, doc)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if res.Pruned != 3 {
		t.Fatalf("pruned = %d, want 3", res.Pruned)
	}

	got, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := append(PresetIDs(), "ch-3", "ch-4", "ch-5", "ch-6", "ch-7")
	if diff := cmp.Diff(want, channelIDs(got.Channels)); diff != "" {
		t.Fatalf("channels after retention (-want +got):\n%s", diff)
	}
}

func TestApplyRetentionPreservesRelativeOrder(t *testing.T) {
	chs := []domain.Channel{userChannel(5, ""), userChannel(1, ""), userChannel(7, ""), userChannel(3, "")}
	kept, pruned := ApplyRetention(chs, 2)
	if pruned != 2 {
		t.Fatalf("pruned = %d, want 2", pruned)
	}
	if diff := cmp.Diff([]string{"ch-5", "ch-7"}, channelIDs(kept)); diff != "" {
		t.Fatalf("kept (-want +got):\n%s", diff)
	}
}

func TestQuotaExceededDropsMediaAndRetries(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(8 * 1024)
	s := newTestStore(repo)

	media := "data:image/jpeg;base64," + strings.Repeat("A", 4000)
	doc := domain.EmptyDocument()
	for i := 0; i < 7; i++ {
		doc.Channels = append(doc.Channels, userChannel(i, media))
	}
	doc.SerendipityItems = []domain.SerendipityItem{{ID: "s1", OriginalCard: doc.Channels[6].Cards[0]}}

	res, err := s.Write(ctx, doc)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !res.MediaDropped {
		t.Fatalf("expected media to be dropped")
	}

	got, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n := len(got.Channels); n != DefaultMaxUserChannels {
		t.Fatalf("channels = %d, want %d", n, DefaultMaxUserChannels)
	}
	for _, ch := range got.Channels {
		for _, c := range ch.Cards {
			if c.ImageURL != "" || c.MediaType != "" {
				t.Fatalf("card %s kept media %q/%q", c.ID, c.ImageURL, c.MediaType)
			}
		}
	}
	if got.SerendipityItems[0].OriginalCard.ImageURL != "" {
		t.Fatalf("serendipity snapshot kept media")
	}
	if doc.Channels[6].Cards[0].ImageURL != media || doc.SerendipityItems[0].OriginalCard.ImageURL != media {
		t.Fatalf("write stripped media from the caller's document")
	}
}

func TestStorageFullLeavesPreviousDocument(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(2 * 1024)
	s := newTestStore(repo)

	if _, err := s.AddChannel(ctx, userChannel(0, "")); err != nil {
		t.Fatalf("seed channel: %v", err)
	}
	before, _, _ := repo.Get(ctx, DocumentKey)

	_, err := s.UpdateChannel(ctx, "ch-0", ChannelPatch{Description: ptr(strings.Repeat("x", 4096))})
	if !errors.Is(err, ErrStorageFull) {
		t.Fatalf("expected ErrStorageFull, got %v", err)
	}
	after, _, _ := repo.Get(ctx, DocumentKey)
	if !bytes.Equal(before, after) {
		t.Fatalf("failed write changed the stored document")
	}
}

func TestEnsurePresetsIsIdempotent(t *testing.T) {
	doc := domain.EmptyDocument()
	doc.Channels = append(doc.Channels, userChannel(1, ""))

	if added := EnsurePresets(&doc, baseTime); added != len(PresetIDs()) {
		t.Fatalf("first call added %d", added)
	}
	first, _ := json.Marshal(doc.Channels)
	if added := EnsurePresets(&doc, baseTime.Add(time.Hour)); added != 0 {
		t.Fatalf("second call added %d", added)
	}
	second, _ := json.Marshal(doc.Channels)
	if !bytes.Equal(first, second) {
		t.Fatalf("second reconciliation changed channels")
	}
}

func TestEnsurePresetsKeepsEditedPreset(t *testing.T) {
	doc := domain.EmptyDocument()
	edited := PresetChannels(baseTime)[0]
	edited.Name = "renamed"
	edited.Cards = nil
	doc.Channels = append(doc.Channels, edited)

	EnsurePresets(&doc, baseTime)
	if doc.Channels[0].Name != "renamed" || len(doc.Channels[0].Cards) != 0 {
		t.Fatalf("existing preset was modified: %+v", doc.Channels[0])
	}
	if len(doc.Channels) != len(PresetIDs()) {
		t.Fatalf("channels = %d, want %d", len(doc.Channels), len(PresetIDs()))
	}
}

func TestGetAllChannelsWritesOnlyWhenPresetsAdded(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(NewMemoryRepository(0))
	writes := 0
	cancel := s.Subscribe(func(domain.Document) { writes++ })
	defer cancel()

	chs, err := s.GetAllChannels(ctx)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(chs) != len(PresetIDs()) || writes != 1 {
		t.Fatalf("channels=%d writes=%d", len(chs), writes)
	}
	if _, err := s.GetAllChannels(ctx); err != nil {
		t.Fatalf("get all again: %v", err)
	}
	if writes != 1 {
		t.Fatalf("second read wrote the document again")
	}
}

func TestDeletePresetChannelIsRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(NewMemoryRepository(0))
	if _, err := s.GetAllChannels(ctx); err != nil {
		t.Fatalf("seed presets: %v", err)
	}
	before, _ := s.Read(ctx)

	err := s.DeleteChannel(ctx, "preset_self_growth")
	if !errors.Is(err, ErrPresetChannel) {
		t.Fatalf("expected ErrPresetChannel, got %v", err)
	}
	after, _ := s.Read(ctx)
	if diff := cmp.Diff(before.Channels, after.Channels); diff != "" {
		t.Fatalf("channels changed (-before +after):\n%s", diff)
	}
}

func TestToggleLikeIsAPureFlip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(NewMemoryRepository(0))
	if err := s.AddUser(ctx, domain.User{ID: "u1", Username: "ada", CreatedAt: baseTime}); err != nil {
		t.Fatalf("add user: %v", err)
	}
	ch := userChannel(1, "")
	ch.Cards[0].LikesCount = 3
	if _, err := s.AddChannel(ctx, ch); err != nil {
		t.Fatalf("add channel: %v", err)
	}

	res, err := s.ToggleLike(ctx, "u1", "ch-1", "ch-1-a")
	if err != nil {
		t.Fatalf("like: %v", err)
	}
	if !res.Liked || res.Card.LikesCount != 4 || !res.User.HasLiked("ch-1-a") {
		t.Fatalf("after like: %+v", res)
	}
	res, err = s.ToggleLike(ctx, "u1", "ch-1", "ch-1-a")
	if err != nil {
		t.Fatalf("unlike: %v", err)
	}
	if res.Liked || res.Card.LikesCount != 3 || res.User.HasLiked("ch-1-a") {
		t.Fatalf("after unlike: %+v", res)
	}
}

func TestAddUserRejectsDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(NewMemoryRepository(0))
	if err := s.AddUser(ctx, domain.User{ID: "u1", Username: "ada"}); err != nil {
		t.Fatalf("add user: %v", err)
	}
	if err := s.AddUser(ctx, domain.User{ID: "u2", Username: " ada "}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestDanglingCurrentUserReadsAsLoggedOut(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(NewMemoryRepository(0))
	ghost := "ghost"
	doc := domain.EmptyDocument()
	doc.CurrentUserID = &ghost
	if _, err := s.Write(ctx, doc); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, ok, err := s.CurrentUser(ctx); err != nil || ok {
		t.Fatalf("expected logged out, ok=%v err=%v", ok, err)
	}
}

func TestSerendipityItemsReplaceByOriginalCard(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(NewMemoryRepository(0))
	if err := s.AddUser(ctx, domain.User{ID: "u1", Username: "ada", LikedCardIDs: []string{"c1"}}); err != nil {
		t.Fatalf("add user: %v", err)
	}
	card := domain.Card{ID: "c1", Text: "x"}
	for _, id := range []string{"s1", "s2"} {
		if err := s.AddSerendipityItem(ctx, domain.SerendipityItem{ID: id, OriginalCard: card}); err != nil {
			t.Fatalf("add item: %v", err)
		}
	}
	if err := s.AddSerendipityItem(ctx, domain.SerendipityItem{ID: "s3", OriginalCard: domain.Card{ID: "c2"}}); err != nil {
		t.Fatalf("add item: %v", err)
	}

	items, err := s.GetUserSerendipityItems(ctx, "u1")
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 1 || items[0].ID != "s2" {
		t.Fatalf("items = %+v", items)
	}
}

func TestChatLogTrimsPerChannel(t *testing.T) {
	ctx := context.Background()
	log := NewChatLog(NewMemoryRepository(0), 3, nil)
	for i := 0; i < 5; i++ {
		msg := domain.ChatMessage{ID: fmt.Sprintf("m%d", i), ChannelID: "a", Text: "hi", Timestamp: baseTime.Add(time.Duration(i) * time.Minute)}
		if err := log.Append(ctx, msg); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := log.Append(ctx, domain.ChatMessage{ID: "other", ChannelID: "b", Timestamp: baseTime}); err != nil {
		t.Fatalf("append other: %v", err)
	}

	msgs, err := log.List(ctx, "a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	if diff := cmp.Diff([]string{"m2", "m3", "m4"}, ids); diff != "" {
		t.Fatalf("messages (-want +got):\n%s", diff)
	}
	if other, _ := log.List(ctx, "b"); len(other) != 1 {
		t.Fatalf("channel b lost messages: %+v", other)
	}
}

func TestPasswordStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := NewPasswordStore(NewMemoryRepository(0), nil)
	if err := p.Set(ctx, "ada", "hash-1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := p.Get(ctx, "ada")
	if err != nil || !ok || got != "hash-1" {
		t.Fatalf("get = %q %v %v", got, ok, err)
	}
	if _, ok, _ := p.Get(ctx, "bob"); ok {
		t.Fatalf("unexpected hash for unknown user")
	}
	if err := p.Delete(ctx, "ada"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := p.Get(ctx, "ada"); ok {
		t.Fatalf("hash survived delete")
	}
}

func TestPasswordStoreQuotaIsStorageFull(t *testing.T) {
	p := NewPasswordStore(NewMemoryRepository(16), nil)
	err := p.Set(context.Background(), "ada", strings.Repeat("h", 64))
	if !errors.Is(err, ErrStorageFull) {
		t.Fatalf("err = %v, want ErrStorageFull", err)
	}
}

func ptr[T any](v T) *T { return &v }
