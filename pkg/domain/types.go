package domain

import "time"

type CardType string

const (
	CardQuote   CardType = "Quote"
	CardConcept CardType = "Concept"
	CardInsight CardType = "Insight"
)

// CardTypes lists every card type in display order.
var CardTypes = []CardType{CardQuote, CardConcept, CardInsight}

func (t CardType) Valid() bool {
	switch t {
	case CardQuote, CardConcept, CardInsight:
		return true
	}
	return false
}

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// SystemUserID owns preset channels and their cards.
const SystemUserID = "system"

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	CreatedAt    time.Time `json:"createdAt"`
	LikedCardIDs []string  `json:"likedCardIds"`
}

// HasLiked reports whether cardID is in the user's liked set.
func (u User) HasLiked(cardID string) bool {
	for _, id := range u.LikedCardIDs {
		if id == cardID {
			return true
		}
	}
	return false
}

type Comment struct {
	ID           string    `json:"id"`
	PersonaName  string    `json:"personaName"`
	PersonaEmoji string    `json:"personaEmoji"`
	Commentary   string    `json:"commentary"`
	UserID       string    `json:"userId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Card is one quote unit. BookTitle and Author are copied from the channel when the card is
// created and are not updated when the channel is renamed.
type Card struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	Subtext      string    `json:"subtext,omitempty"`
	CardType     CardType  `json:"cardType"`
	BookTitle    string    `json:"bookTitle"`
	Author       string    `json:"author,omitempty"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	MediaType    MediaType `json:"mediaType,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UserID       string    `json:"userId"`
	SourceCardID string    `json:"sourceCardId,omitempty"`
	LikesCount   int       `json:"likesCount"`
	Comments     []Comment `json:"comments,omitempty"`
}

// HasMedia reports whether the card carries an image or video payload.
func (c Card) HasMedia() bool {
	return c.ImageURL != ""
}

// StripMedia drops the media payload and its kind.
func (c *Card) StripMedia() {
	c.ImageURL = ""
	c.MediaType = ""
}

type Channel struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Author          string    `json:"author,omitempty"`
	Description     string    `json:"description,omitempty"`
	UserID          string    `json:"userId"`
	Cards           []Card    `json:"cards"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	DropToFeed      bool      `json:"dropToFeed"`
	ParentChannelID string    `json:"parentChannelId,omitempty"`
	IsPreset        bool      `json:"isPreset,omitempty"`
}

// CardIndex returns the position of cardID in the channel, or -1.
func (c Channel) CardIndex(cardID string) int {
	for i := range c.Cards {
		if c.Cards[i].ID == cardID {
			return i
		}
	}
	return -1
}

// ChannelView is a channel as presented to a particular viewer. OwnedByUser is derived from the
// viewer and never persisted.
type ChannelView struct {
	Channel
	OwnedByUser bool `json:"ownedByUser"`
}

// ViewFor derives the per-viewer representation of ch.
func ViewFor(ch Channel, viewerID string) ChannelView {
	return ChannelView{Channel: ch, OwnedByUser: viewerID != "" && ch.UserID == viewerID}
}

type Persona struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	NameCn      string `json:"nameCn"`
	Emoji       string `json:"emoji"`
	Description string `json:"description"`
}

type SerendipityItem struct {
	ID           string    `json:"id"`
	OriginalCard Card      `json:"originalCard"`
	Persona      Persona   `json:"persona"`
	Commentary   string    `json:"commentary"`
	CreatedAt    time.Time `json:"createdAt"`
}

type SerendipityRecommendation struct {
	ID              string    `json:"id"`
	OriginalCard    Card      `json:"originalCard"`
	RecommendedCard Card      `json:"recommendedCard"`
	CreatedAt       time.Time `json:"createdAt"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channelId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Document is the whole persisted state. CurrentUserID is nil when nobody is logged in.
type Document struct {
	Users                      []User                      `json:"users"`
	Channels                   []Channel                   `json:"channels"`
	SerendipityItems           []SerendipityItem           `json:"serendipityItems"`
	SerendipityRecommendations []SerendipityRecommendation `json:"serendipityRecommendations"`
	CurrentUserID              *string                     `json:"currentUserId"`
}

// EmptyDocument returns a document whose collections encode as [] rather than null.
func EmptyDocument() Document {
	return Document{
		Users:                      []User{},
		Channels:                   []Channel{},
		SerendipityItems:           []SerendipityItem{},
		SerendipityRecommendations: []SerendipityRecommendation{},
	}
}

// Normalize replaces nil collections with empty ones.
func (d *Document) Normalize() {
	if d.Users == nil {
		d.Users = []User{}
	}
	if d.Channels == nil {
		d.Channels = []Channel{}
	}
	if d.SerendipityItems == nil {
		d.SerendipityItems = []SerendipityItem{}
	}
	if d.SerendipityRecommendations == nil {
		d.SerendipityRecommendations = []SerendipityRecommendation{}
	}
	for i := range d.Users {
		if d.Users[i].LikedCardIDs == nil {
			d.Users[i].LikedCardIDs = []string{}
		}
	}
	for i := range d.Channels {
		if d.Channels[i].Cards == nil {
			d.Channels[i].Cards = []Card{}
		}
	}
}

// FindUser returns the index of the user with id, or -1.
func (d Document) FindUser(id string) int {
	for i := range d.Users {
		if d.Users[i].ID == id {
			return i
		}
	}
	return -1
}

// FindChannel returns the index of the channel with id, or -1.
func (d Document) FindChannel(id string) int {
	for i := range d.Channels {
		if d.Channels[i].ID == id {
			return i
		}
	}
	return -1
}
