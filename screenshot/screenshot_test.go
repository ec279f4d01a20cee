package screenshot

import (
	"bytes"
	"image"
	"image/png"
	"testing"
)

func TestEncodePNG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	out, err := encodePNG(src)
	if err != nil {
		t.Fatalf("encodePNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not PNG: %v", err)
	}
	if img.Bounds() != src.Bounds() {
		t.Fatalf("bounds = %v, want %v", img.Bounds(), src.Bounds())
	}
}

func TestCapturePrimary(t *testing.T) {
	data, err := CapturePrimary()
	if err != nil {
		t.Logf("Capture failed (expected in headless environment): %v", err)
		return
	}
	if _, err := png.DecodeConfig(bytes.NewReader(data)); err != nil {
		t.Fatalf("capture is not PNG: %v", err)
	}
}
