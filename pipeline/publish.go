package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// Update is one progress event of a run. Every successful run emits two: a
// pending one with Final false, then the translation with Final true.
type Update struct {
	RunID          string `json:"runId"`
	OriginalText   string `json:"originalText"`
	TranslatedText string `json:"translatedText"`
	Final          bool   `json:"final"`
}

// Publisher receives run progress. Calls come from worker goroutines.
type Publisher interface {
	Publish(u Update)
	Failed(runID string, err error)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(Update) {}
func (Discard) Failed(string, error) {}

// Multi fans events out to every publisher in order.
type Multi []Publisher

func (m Multi) Publish(u Update) {
	for _, p := range m {
		p.Publish(u)
	}
}

func (m Multi) Failed(runID string, err error) {
	for _, p := range m {
		p.Failed(runID, err)
	}
}

// WriterPublisher prints final translations and failures, either as plain
// text or as one JSON object per line.
type WriterPublisher struct {
	Writer io.Writer
	JSON   bool

	mu sync.Mutex
}

type failure struct {
	RunID string `json:"runId"`
	Error string `json:"error"`
}

func (p *WriterPublisher) Publish(u Update) {
	if !u.Final {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	w := p.writer()
	if p.JSON {
		_ = json.NewEncoder(w).Encode(u)
		return
	}
	fmt.Fprintf(w, "%s\n", u.TranslatedText)
}

func (p *WriterPublisher) Failed(runID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w := p.writer()
	if p.JSON {
		_ = json.NewEncoder(w).Encode(failure{RunID: runID, Error: err.Error()})
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}

func (p *WriterPublisher) writer() io.Writer {
	if p.Writer == nil {
		return os.Stdout
	}
	return p.Writer
}
