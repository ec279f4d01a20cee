// Package appstate holds the state shared between the pipeline and the
// presentation layers: the target language label and the service clients.
package appstate

import (
	"strings"
	"sync"
	"sync/atomic"

	"clip-translate/config"
	"clip-translate/llm"
	"clip-translate/ocr"
)

const DefaultLanguage = "繁體中文"

// Languages are the labels offered by the pickers. Any other label is
// accepted as typed.
var Languages = []string{DefaultLanguage, "简体中文", "English", "日本語", "한국어", "Français", "Deutsch", "Español"}

type recognizerHolder struct{ r ocr.Recognizer }
type translatorHolder struct{ t llm.Translator }

// State is safe for concurrent use. Replacing a client swaps the handle
// wholesale; runs already holding the old handle finish with it.
type State struct {
	mu       sync.RWMutex
	language string
	settings config.Settings

	recognizer atomic.Pointer[recognizerHolder]
	translator atomic.Pointer[translatorHolder]
}

func New(language string) *State {
	s := &State{}
	s.SetLanguage(language)
	return s
}

// Language is the label captured by each new translation request.
func (s *State) Language() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.language
}

// SetLanguage affects only runs submitted after it returns. A blank label
// resets to the default.
func (s *State) SetLanguage(label string) {
	label = strings.TrimSpace(label)
	if label == "" {
		label = DefaultLanguage
	}
	s.mu.Lock()
	s.language = label
	s.mu.Unlock()
}

func (s *State) SetRecognizer(r ocr.Recognizer) {
	if r == nil {
		s.recognizer.Store(nil)
		return
	}
	s.recognizer.Store(&recognizerHolder{r: r})
}

// Recognizer returns a ConfigError until a recognizer has been installed.
func (s *State) Recognizer() (ocr.Recognizer, error) {
	h := s.recognizer.Load()
	if h == nil {
		return nil, &config.ConfigError{Field: "certificatePath", Err: config.ErrNotConfigured}
	}
	return h.r, nil
}

func (s *State) SetTranslator(t llm.Translator) {
	if t == nil {
		s.translator.Store(nil)
		return
	}
	s.translator.Store(&translatorHolder{t: t})
}

// Translator returns a ConfigError until a translator has been installed.
func (s *State) Translator() (llm.Translator, error) {
	h := s.translator.Load()
	if h == nil {
		return nil, &config.ConfigError{Field: "apiKey", Err: config.ErrNotConfigured}
	}
	return h.t, nil
}

// Settings is the credential set the current clients were built from.
func (s *State) Settings() config.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *State) SetSettings(settings config.Settings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
}

// Ready reports whether both clients are installed.
func (s *State) Ready() bool {
	return s.recognizer.Load() != nil && s.translator.Load() != nil
}
