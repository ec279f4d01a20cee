package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"runtime"
)

const iconSize = 32

// Icon returns the tray icon in the format the platform tray expects: ICO on
// Windows, PNG elsewhere.
func Icon() ([]byte, error) {
	pngData, err := iconPNG()
	if err != nil {
		return nil, err
	}
	if runtime.GOOS == "windows" {
		return wrapICO(pngData, iconSize), nil
	}
	return pngData, nil
}

// iconPNG draws a speech bubble with two text lines.
func iconPNG() ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	bubble := color.NRGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0xff}
	text := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

	for y := 3; y < 23; y++ {
		for x := 2; x < 30; x++ {
			img.Set(x, y, bubble)
		}
	}
	// tail
	for y := 23; y < 29; y++ {
		for x := 7; x < 7+(29-y); x++ {
			img.Set(x, y, bubble)
		}
	}
	for _, row := range []int{9, 15} {
		for y := row; y < row+2; y++ {
			for x := 7; x < 25; x++ {
				img.Set(x, y, text)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// wrapICO packs a single PNG image into an ICO container.
func wrapICO(pngData []byte, size int) []byte {
	var buf bytes.Buffer
	// ICONDIR
	_ = binary.Write(&buf, binary.LittleEndian, struct {
		Reserved, Type, Count uint16
	}{0, 1, 1})
	dim := uint8(size)
	if size >= 256 {
		dim = 0
	}
	// ICONDIRENTRY
	_ = binary.Write(&buf, binary.LittleEndian, struct {
		Width, Height, Colors, Reserved uint8
		Planes, BitCount                uint16
		BytesInRes, ImageOffset         uint32
	}{dim, dim, 0, 0, 1, 32, uint32(len(pngData)), 6 + 16})
	buf.Write(pngData)
	return buf.Bytes()
}
