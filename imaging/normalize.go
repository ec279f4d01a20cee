// Package imaging turns clipboard captures into the grayscale PNG buffers
// submitted for text detection.
package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var errEmpty = errors.New("empty image buffer")

// DecodeError means the clipboard buffer is not a raster image we can read.
type DecodeError struct {
	Size int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode clipboard image (%d bytes): %v", e.Size, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Normalize decodes raw, converts it to 8-bit grayscale and re-encodes it as
// PNG. The output has the same dimensions as the input and is identical for
// identical input.
func Normalize(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, &DecodeError{Err: errEmpty}
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{Size: len(raw), Err: err}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, Grayscale(img)); err != nil {
		return nil, fmt.Errorf("encode grayscale PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// Grayscale returns img converted with the standard luma model. The result
// keeps img's bounds.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, img, b.Min, draw.Src)
	return gray
}

// Digest identifies a buffer for correlating log lines and UI events.
func Digest(buf []byte) string {
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}
