package store

import (
	"sort"

	"quotecards/pkg/domain"
)

// DefaultMaxUserChannels is how many user channels survive a write.
const DefaultMaxUserChannels = 5

// ApplyRetention keeps every preset plus the limit most recently created user channels.
// Survivors stay in their original relative order; ties on createdAt favour the earlier entry.
// It returns the kept channels and how many were dropped.
func ApplyRetention(channels []domain.Channel, limit int) ([]domain.Channel, int) {
	if limit < 0 {
		limit = 0
	}
	userIdx := make([]int, 0, len(channels))
	for i, ch := range channels {
		if !ch.IsPreset {
			userIdx = append(userIdx, i)
		}
	}
	if len(userIdx) <= limit {
		return channels, 0
	}

	newest := append([]int(nil), userIdx...)
	sort.SliceStable(newest, func(a, b int) bool {
		return channels[newest[a]].CreatedAt.After(channels[newest[b]].CreatedAt)
	})
	keep := make(map[int]struct{}, limit)
	for _, i := range newest[:limit] {
		keep[i] = struct{}{}
	}

	out := make([]domain.Channel, 0, len(channels)-len(userIdx)+limit)
	for i, ch := range channels {
		if _, ok := keep[i]; ch.IsPreset || ok {
			out = append(out, ch)
		}
	}
	return out, len(userIdx) - limit
}

// StripMedia clears every media payload in the document: channel cards and the card snapshots
// held by serendipity entries. It returns how many cards lost media.
func StripMedia(doc *domain.Document) int {
	stripped := 0
	strip := func(c *domain.Card) {
		if c.HasMedia() || c.MediaType != "" {
			if c.HasMedia() {
				stripped++
			}
			c.StripMedia()
		}
	}
	for i := range doc.Channels {
		for j := range doc.Channels[i].Cards {
			strip(&doc.Channels[i].Cards[j])
		}
	}
	for i := range doc.SerendipityItems {
		strip(&doc.SerendipityItems[i].OriginalCard)
	}
	for i := range doc.SerendipityRecommendations {
		strip(&doc.SerendipityRecommendations[i].OriginalCard)
		strip(&doc.SerendipityRecommendations[i].RecommendedCard)
	}
	return stripped
}
