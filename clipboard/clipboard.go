package clipboard

import (
	"sync"

	"golang.design/x/clipboard"
)

var (
	writeMu sync.Mutex
)

func Init() error {
	return clipboard.Init()
}

// Write performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func Write(text string) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// ReadImage returns the PNG-encoded clipboard image, or nil when the
// clipboard holds no image.
func ReadImage() []byte {
	return clipboard.Read(clipboard.FmtImage)
}

// Source yields the current clipboard image. A nil or empty result means the
// clipboard holds no image.
type Source interface {
	ReadImage() []byte
}

// SystemSource reads the OS clipboard. Init must have succeeded first.
type SystemSource struct{}

func (SystemSource) ReadImage() []byte { return ReadImage() }
