package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"quotecards/pkg/domain"
)

func TestMediaUploadAndPresign(t *testing.T) {
	objects := NewMemoryStore("https://objects.local/quotecards")
	media := NewMediaStore(objects, 0)
	ctx := context.Background()

	ref, kind, err := media.Upload(ctx, "u1", "image/PNG; charset=binary", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if kind != domain.MediaImage {
		t.Fatalf("kind = %q", kind)
	}
	if !strings.HasPrefix(ref, "/media/u1/") || !strings.HasSuffix(ref, ".png") {
		t.Fatalf("ref = %q", ref)
	}
	key := strings.TrimPrefix(ref, MediaPathPrefix)
	data, ct, ok := objects.Object(key)
	if !ok || string(data) != "png-bytes" || ct != "image/png" {
		t.Fatalf("stored object = %q %q %v", data, ct, ok)
	}

	url, err := media.URL(ctx, key)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.HasPrefix(url, "https://objects.local/quotecards/"+key) {
		t.Fatalf("url = %q", url)
	}

	if err := media.Remove(ctx, ref); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := media.URL(ctx, key); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("after remove err = %v", err)
	}
	if err := media.Remove(ctx, "data:image/png;base64,AAAA"); err != nil {
		t.Fatalf("remove inline ref: %v", err)
	}
}

func TestMediaUploadRejects(t *testing.T) {
	media := NewMediaStore(NewMemoryStore("http://x"), 0)
	if _, _, err := media.Upload(context.Background(), "u1", "application/pdf", []byte("x")); !errors.Is(err, ErrUnsupportedMedia) {
		t.Fatalf("err = %v, want ErrUnsupportedMedia", err)
	}
	big := make([]byte, MaxMediaBytes+1)
	if _, _, err := media.Upload(context.Background(), "u1", "video/mp4", big); !errors.Is(err, ErrMediaTooLarge) {
		t.Fatalf("err = %v, want ErrMediaTooLarge", err)
	}
	if kind, err := MediaKind("video/webm"); err != nil || kind != domain.MediaVideo {
		t.Fatalf("kind = %q, err = %v", kind, err)
	}
	if _, err := media.URL(context.Background(), "../etc/passwd"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("traversal err = %v", err)
	}
}
