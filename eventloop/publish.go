package eventloop

import (
	"log"

	"clip-translate/clipboard"
	"clip-translate/pipeline"
)

// CopyPublisher puts each final translation on the clipboard as text. The
// watcher only reads images, so the write does not trigger a new run.
type CopyPublisher struct {
	Write func(text string) error
}

func (p CopyPublisher) Publish(u pipeline.Update) {
	if !u.Final {
		return
	}
	write := p.Write
	if write == nil {
		write = clipboard.Write
	}
	if err := write(u.TranslatedText); err != nil {
		log.Printf("CLIPBOARD ERROR: Failed to write translation for run %s: %v", u.RunID, err)
	}
}

func (CopyPublisher) Failed(string, error) {}
