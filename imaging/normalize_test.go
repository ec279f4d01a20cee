package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func colorImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 40), G: uint8(y * 60), B: 200, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalizeProducesGrayPNG(t *testing.T) {
	raw := encodePNG(t, colorImage(5, 3))

	out, err := Normalize(raw)
	require.NoError(t, err)

	decoded, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, image.Rect(0, 0, 5, 3), decoded.Bounds(), "must not resize or crop")

	for y := 0; y < 3; y++ {
		for x := 0; x < 5; x++ {
			r, g, b, _ := decoded.At(x, y).RGBA()
			assert.Equal(t, r, g)
			assert.Equal(t, g, b)
		}
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	raw := encodePNG(t, colorImage(4, 4))

	a, err := Normalize(raw)
	require.NoError(t, err)
	b, err := Normalize(raw)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, b))
	assert.Equal(t, Digest(a), Digest(b))
}

func TestNormalizeAcceptsOtherFormats(t *testing.T) {
	img := colorImage(6, 2)

	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, img, nil))
	var bm bytes.Buffer
	require.NoError(t, bmp.Encode(&bm, img))

	for name, raw := range map[string][]byte{"jpeg": jpg.Bytes(), "bmp": bm.Bytes()} {
		t.Run(name, func(t *testing.T) {
			out, err := Normalize(raw)
			require.NoError(t, err)
			cfg, err := png.DecodeConfig(bytes.NewReader(out))
			require.NoError(t, err)
			assert.Equal(t, 6, cfg.Width)
			assert.Equal(t, 2, cfg.Height)
			assert.True(t, cfg.ColorModel == color.GrayModel, "expected grayscale PNG")
		})
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	for name, raw := range map[string][]byte{
		"empty":     nil,
		"garbage":   []byte{0xFF, 0xFF, 0xFF, 0xFF},
		"truncated": encodePNG(t, colorImage(8, 8))[:20],
		"text":      []byte("data:image/png;base64,not really"),
	} {
		t.Run(name, func(t *testing.T) {
			out, err := Normalize(raw)
			assert.Nil(t, out)
			var decErr *DecodeError
			require.True(t, errors.As(err, &decErr), "expected DecodeError, got %v", err)
			assert.Equal(t, len(raw), decErr.Size)
		})
	}
}
