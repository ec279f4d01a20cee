package ui

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"

	"clip-translate/config"
	"clip-translate/pipeline"
)

type fakeController struct {
	mu       sync.Mutex
	texts    []string
	language string
	applied  []config.Settings
}

func (c *fakeController) SubmitText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
}

func (c *fakeController) SetLanguage(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.language = label
}

func (c *fakeController) Language() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.language
}

func (c *fakeController) ApplySettings(s config.Settings) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applied = append(c.applied, s)
	return nil
}

func newTestUI(t *testing.T) (*UI, *fakeController, *View) {
	t.Helper()
	a := test.NewTempApp(t)
	ctrl := &fakeController{language: "English"}
	view := NewView()
	store := config.NewSettingsStore(filepath.Join(t.TempDir(), "config.json"))
	return New(a, view, ctrl, store, "about"), ctrl, view
}

func TestTranslateButtonSubmitsTrimmedText(t *testing.T) {
	u, ctrl, _ := newTestUI(t)

	test.Type(u.input, "  hello  ")
	test.Tap(u.submit)

	assert.Equal(t, []string{"hello"}, ctrl.texts)
}

func TestTranslateButtonIgnoresBlank(t *testing.T) {
	u, ctrl, _ := newTestUI(t)

	test.Type(u.input, "   ")
	test.Tap(u.submit)

	assert.Empty(t, ctrl.texts)
}

func TestLanguagePickerStartsWithCurrentLabel(t *testing.T) {
	u, ctrl, _ := newTestUI(t)
	assert.Equal(t, "English", u.language.Text)

	u.language.SetText("日本語")
	assert.Equal(t, "日本語", ctrl.Language())
}

func TestPublishedUpdateReachesPanes(t *testing.T) {
	u, _, view := newTestUI(t)

	view.Publish(pipeline.Update{RunID: "a", OriginalText: "Hello", TranslatedText: "Hallo", Final: true})

	assert.Eventually(t, func() bool {
		return u.original.Text == "Hello" && u.translated.Text == "Hallo"
	}, time.Second, 10*time.Millisecond)
}

func TestSetStatus(t *testing.T) {
	u, _, _ := newTestUI(t)

	u.SetStatus("Watching clipboard")

	assert.Eventually(t, func() bool { return u.status.Text == "Watching clipboard" }, time.Second, 10*time.Millisecond)
}
