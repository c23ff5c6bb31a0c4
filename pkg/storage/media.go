package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"quotecards/internal/util"
	"quotecards/pkg/domain"
)

// MaxMediaBytes bounds a single uploaded file.
const MaxMediaBytes = 20 << 20

// MediaPathPrefix is the public path under which stored media is redirected.
const MediaPathPrefix = "/media/"

var (
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrMediaTooLarge    = errors.New("media too large")
)

var mediaExtensions = map[string]struct {
	ext  string
	kind domain.MediaType
}{
	"image/jpeg": {".jpg", domain.MediaImage},
	"image/png":  {".png", domain.MediaImage},
	"image/gif":  {".gif", domain.MediaImage},
	"image/webp": {".webp", domain.MediaImage},
	"video/mp4":  {".mp4", domain.MediaVideo},
	"video/webm": {".webm", domain.MediaVideo},
}

// MediaKind classifies a content type, ignoring parameters such as charset.
func MediaKind(contentType string) (domain.MediaType, error) {
	ct, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(contentType)), ";")
	entry, ok := mediaExtensions[strings.TrimSpace(ct)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMedia, contentType)
	}
	return entry.kind, nil
}

// MediaStore stores card uploads under {userID}/{id}{ext}; cards reference them as
// /media/{userID}/{id}{ext}.
type MediaStore struct {
	objects ObjectStore
	expiry  time.Duration
}

func NewMediaStore(objects ObjectStore, presignExpiry time.Duration) *MediaStore {
	if presignExpiry <= 0 {
		presignExpiry = 15 * time.Minute
	}
	return &MediaStore{objects: objects, expiry: presignExpiry}
}

// Upload stores data and returns the path a card should reference, and the media kind.
func (s *MediaStore) Upload(ctx context.Context, userID, contentType string, data []byte) (string, domain.MediaType, error) {
	if len(data) > MaxMediaBytes {
		return "", "", ErrMediaTooLarge
	}
	ct, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(contentType)), ";")
	ct = strings.TrimSpace(ct)
	entry, ok := mediaExtensions[ct]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedMedia, contentType)
	}
	key := fmt.Sprintf("%s/%s%s", userID, util.NewID(), entry.ext)
	if err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), ct); err != nil {
		return "", "", err
	}
	return MediaPathPrefix + escapeKey(key), entry.kind, nil
}

// URL presigns the object stored under key, the part of the card reference after /media/.
func (s *MediaStore) URL(ctx context.Context, key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" || strings.Contains(key, "..") {
		return "", ErrObjectNotFound
	}
	return s.objects.PresignGet(ctx, key, s.expiry)
}

// Remove deletes the object behind a card reference. References that are not stored media
// (data URLs, remote URLs) are ignored.
func (s *MediaStore) Remove(ctx context.Context, ref string) error {
	key, ok := strings.CutPrefix(ref, MediaPathPrefix)
	if !ok {
		return nil
	}
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}
	return s.objects.Delete(ctx, key)
}
