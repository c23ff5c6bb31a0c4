package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

func pngDataURL(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func decodeJPEG(t *testing.T, dataURL string) image.Image {
	t.Helper()
	payload, ok := strings.CutPrefix(dataURL, "data:image/jpeg;base64,")
	if !ok {
		t.Fatalf("output is not a jpeg data url: %.40s", dataURL)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode jpeg: %v", err)
	}
	return img
}

func TestCompressScalesWideImages(t *testing.T) {
	out, err := Compress(pngDataURL(t, 1600, 1000), 800, 0.7)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	b := decodeJPEG(t, out).Bounds()
	if b.Dx() != 800 || b.Dy() != 500 {
		t.Fatalf("size = %dx%d, want 800x500", b.Dx(), b.Dy())
	}
}

func TestCompressKeepsNarrowImageSize(t *testing.T) {
	out, err := Compress(pngDataURL(t, 300, 200), 800, 0.7)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	b := decodeJPEG(t, out).Bounds()
	if b.Dx() != 300 || b.Dy() != 200 {
		t.Fatalf("size = %dx%d, want 300x200", b.Dx(), b.Dy())
	}
}

func TestCompressIsDeterministic(t *testing.T) {
	in := pngDataURL(t, 1200, 900)
	a, err := Compress(in, 800, 0.7)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	b, err := Compress(in, 800, 0.7)
	if err != nil {
		t.Fatalf("compress again: %v", err)
	}
	if a != b {
		t.Fatalf("compress output differs between runs")
	}
}

func TestCompressRejectsUndecodable(t *testing.T) {
	for _, in := range []string{
		"https://picsum.photos/seed/1/400/600",
		"data:image/png;base64,not-base64!!",
		"data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("plain text")),
	} {
		if _, err := Compress(in, 800, 0.7); !errors.Is(err, ErrDecode) {
			t.Fatalf("%.40s: err = %v, want ErrDecode", in, err)
		}
	}
}
