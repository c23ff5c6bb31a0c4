package store

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"quotecards/pkg/domain"
)

//go:embed presets.json
var presetsJSON []byte

type presetCard struct {
	ID        string           `json:"id"`
	Text      string           `json:"text"`
	CardType  domain.CardType  `json:"cardType"`
	ImageURL  string           `json:"imageUrl"`
	MediaType domain.MediaType `json:"mediaType"`
}

type presetChannel struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Author      string       `json:"author"`
	Description string       `json:"description"`
	Cards       []presetCard `json:"cards"`
}

var presetSeeds = mustParsePresets(presetsJSON)

func mustParsePresets(raw []byte) []presetChannel {
	var seeds []presetChannel
	if err := json.Unmarshal(raw, &seeds); err != nil {
		panic(fmt.Sprintf("parse embedded presets: %v", err))
	}
	return seeds
}

// PresetIDs lists the identifiers of the shipped seed channels.
func PresetIDs() []string {
	ids := make([]string, len(presetSeeds))
	for i, seed := range presetSeeds {
		ids[i] = seed.ID
	}
	return ids
}

// PresetChannels materializes the seed channels stamped with now.
func PresetChannels(now time.Time) []domain.Channel {
	out := make([]domain.Channel, 0, len(presetSeeds))
	for _, seed := range presetSeeds {
		ch := domain.Channel{
			ID:          seed.ID,
			Name:        seed.Name,
			Author:      seed.Author,
			Description: seed.Description,
			UserID:      domain.SystemUserID,
			Cards:       make([]domain.Card, 0, len(seed.Cards)),
			CreatedAt:   now,
			UpdatedAt:   now,
			DropToFeed:  true,
			IsPreset:    true,
		}
		for _, c := range seed.Cards {
			ch.Cards = append(ch.Cards, domain.Card{
				ID:        c.ID,
				Text:      c.Text,
				CardType:  c.CardType,
				BookTitle: seed.Name,
				Author:    seed.Author,
				ImageURL:  c.ImageURL,
				MediaType: c.MediaType,
				CreatedAt: now,
				UserID:    domain.SystemUserID,
			})
		}
		out = append(out, ch)
	}
	return out
}

// EnsurePresets appends every seed channel whose id is missing from doc. Channels already present
// are left exactly as they are, edited or not. The second of two consecutive calls adds nothing.
func EnsurePresets(doc *domain.Document, now time.Time) int {
	existing := make(map[string]struct{}, len(doc.Channels))
	for _, ch := range doc.Channels {
		existing[ch.ID] = struct{}{}
	}
	added := 0
	for _, preset := range PresetChannels(now) {
		if _, ok := existing[preset.ID]; ok {
			continue
		}
		doc.Channels = append(doc.Channels, preset)
		added++
	}
	return added
}
