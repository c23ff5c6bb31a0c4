package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

// PayloadKind tells which shape of image reply a payload was recovered from.
type PayloadKind int

const (
	// PayloadImageURL is an entry of the message's images list or an image_url content part.
	PayloadImageURL PayloadKind = iota + 1
	// PayloadDataURL is a data URL found inside the text content.
	PayloadDataURL
	// PayloadRawBase64 is text content that is nothing but base64.
	PayloadRawBase64
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadImageURL:
		return "image_url"
	case PayloadDataURL:
		return "data_url"
	case PayloadRawBase64:
		return "raw_base64"
	}
	return "unknown"
}

// ImagePayload is an image recovered from a chat completion reply.
type ImagePayload struct {
	Kind  PayloadKind
	Value string
}

// DataURL returns a value usable as a card's imageUrl. Raw base64 is assumed to be PNG.
func (p ImagePayload) DataURL() string {
	if p.Kind == PayloadRawBase64 {
		return "data:image/png;base64," + p.Value
	}
	return p.Value
}

var (
	dataURLPattern   = regexp.MustCompile(`data:image/[A-Za-z0-9.+-]+;base64,[A-Za-z0-9+/=]+`)
	rawBase64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/=]+$`)
)

// ParseImagePayload inspects a reply in order: the images list, image_url content parts, a
// data URL embedded in the text, then bare base64 text. Anything else is ErrNoImageData.
func ParseImagePayload(reply ChatReply) (ImagePayload, error) {
	for _, raw := range reply.Images {
		if url := imageEntryURL(raw); url != "" {
			return ImagePayload{Kind: PayloadImageURL, Value: url}, nil
		}
	}

	var parts []contentPart
	if json.Unmarshal(reply.Content, &parts) == nil {
		for _, p := range parts {
			if p.ImageURL != nil && strings.TrimSpace(p.ImageURL.URL) != "" {
				return ImagePayload{Kind: PayloadImageURL, Value: strings.TrimSpace(p.ImageURL.URL)}, nil
			}
		}
	}

	text := strings.TrimSpace(reply.Text())
	if text == "" {
		return ImagePayload{}, ErrNoImageData
	}
	if m := dataURLPattern.FindString(text); m != "" {
		return ImagePayload{Kind: PayloadDataURL, Value: m}, nil
	}
	if rawBase64Pattern.MatchString(text) {
		return ImagePayload{Kind: PayloadRawBase64, Value: text}, nil
	}
	return ImagePayload{}, ErrNoImageData
}

// imageEntryURL accepts "url", {"image_url":{"url":...}} and {"url":...}.
func imageEntryURL(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var entry struct {
		URL      string `json:"url"`
		ImageURL *struct {
			URL string `json:"url"`
		} `json:"image_url"`
	}
	if json.Unmarshal(raw, &entry) != nil {
		return ""
	}
	if entry.ImageURL != nil && strings.TrimSpace(entry.ImageURL.URL) != "" {
		return strings.TrimSpace(entry.ImageURL.URL)
	}
	return strings.TrimSpace(entry.URL)
}
