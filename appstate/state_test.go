package appstate

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clip-translate/config"
	"clip-translate/llm"
	"clip-translate/ocr"
)

func TestLanguage(t *testing.T) {
	s := New("")
	assert.Equal(t, DefaultLanguage, s.Language())

	s.SetLanguage("  Japanese ")
	assert.Equal(t, "Japanese", s.Language())

	s.SetLanguage("")
	assert.Equal(t, DefaultLanguage, s.Language())
}

func TestClientsMissingUntilInstalled(t *testing.T) {
	s := New("English")
	assert.False(t, s.Ready())

	_, err := s.Recognizer()
	assert.True(t, config.IsNotConfigured(err))
	_, err = s.Translator()
	assert.True(t, config.IsNotConfigured(err))

	s.SetRecognizer(ocr.RecognizerFunc(func(context.Context, []byte) (ocr.Result, error) {
		return ocr.Result{Text: "a"}, nil
	}))
	s.SetTranslator(llm.TranslatorFunc(func(context.Context, llm.Request) (string, error) {
		return "b", nil
	}))
	assert.True(t, s.Ready())

	r, err := s.Recognizer()
	require.NoError(t, err)
	res, _ := r.Recognize(context.Background(), nil)
	assert.Equal(t, "a", res.Text)

	s.SetTranslator(nil)
	_, err = s.Translator()
	assert.Error(t, err)
	assert.False(t, s.Ready())
}

func TestSettings(t *testing.T) {
	s := New("English")
	s.SetSettings(config.Settings{APIKey: "k"})
	assert.Equal(t, "k", s.Settings().APIKey)
}

func TestConcurrentLanguageAccess(t *testing.T) {
	s := New("English")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); s.SetLanguage("French") }()
		go func() { defer wg.Done(); _ = s.Language() }()
	}
	wg.Wait()
	assert.Equal(t, "French", s.Language())
}
