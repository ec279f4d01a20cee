package ui

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clip-translate/config"
	"clip-translate/pipeline"
)

type paneLog struct {
	changes [][2]string
	fields  []string
}

func newTestView() (*View, *paneLog) {
	log := &paneLog{}
	v := NewView()
	v.OnChange = func(original, translated string) {
		log.changes = append(log.changes, [2]string{original, translated})
	}
	v.OnNeedCredentials = func(field string) {
		log.fields = append(log.fields, field)
	}
	return v, log
}

func TestViewPendingThenFinal(t *testing.T) {
	v, log := newTestView()

	v.Publish(pipeline.Update{RunID: "a", OriginalText: "Hello", TranslatedText: pipeline.Pending})
	v.Publish(pipeline.Update{RunID: "a", OriginalText: "Hello", TranslatedText: "你好", Final: true})

	require.Len(t, log.changes, 2)
	assert.Equal(t, [2]string{"Hello", pipeline.Pending}, log.changes[0])
	original, translated := v.Text()
	assert.Equal(t, "Hello", original)
	assert.Equal(t, "你好", translated)
}

func TestViewDropsStaleRun(t *testing.T) {
	v, log := newTestView()

	v.Publish(pipeline.Update{RunID: "old", OriginalText: "first", TranslatedText: pipeline.Pending})
	v.Publish(pipeline.Update{RunID: "new", OriginalText: "second", TranslatedText: pipeline.Pending})
	v.Publish(pipeline.Update{RunID: "old", OriginalText: "first", TranslatedText: "eins", Final: true})
	v.Publish(pipeline.Update{RunID: "new", OriginalText: "second", TranslatedText: "zwei", Final: true})

	require.Len(t, log.changes, 3)
	original, translated := v.Text()
	assert.Equal(t, "second", original)
	assert.Equal(t, "zwei", translated)
}

func TestViewAcceptsLaterRunAfterFinal(t *testing.T) {
	v, _ := newTestView()

	v.Publish(pipeline.Update{RunID: "a", OriginalText: "one", TranslatedText: "1", Final: true})
	v.Publish(pipeline.Update{RunID: "b", OriginalText: "two", TranslatedText: "2", Final: true})

	original, translated := v.Text()
	assert.Equal(t, "two", original)
	assert.Equal(t, "2", translated)
}

func TestViewFailedMissingCredentials(t *testing.T) {
	v, log := newTestView()
	err := errors.Join(
		&config.ConfigError{Field: "certificatePath", Err: config.ErrNotConfigured},
		&config.ConfigError{Field: "apiKey", Err: config.ErrNotConfigured},
	)

	v.Failed("a", fmt.Errorf("run a: %w", err))

	assert.Equal(t, []string{"certificatePath"}, log.fields)
	assert.Empty(t, log.changes)
}

func TestViewForgetsSupersededRunsBeyondLimit(t *testing.T) {
	v, _ := newTestView()

	for i := 0; i < 3*retiredLimit; i++ {
		v.Publish(pipeline.Update{RunID: fmt.Sprintf("run-%d", i), OriginalText: "x", TranslatedText: pipeline.Pending})
	}

	v.mu.Lock()
	assert.Len(t, v.retired, retiredLimit)
	assert.Len(t, v.evict, retiredLimit)
	v.mu.Unlock()

	v.Publish(pipeline.Update{RunID: fmt.Sprintf("run-%d", 3*retiredLimit-2), OriginalText: "stale", TranslatedText: "late", Final: true})
	original, translated := v.Text()
	assert.Equal(t, "x", original)
	assert.Equal(t, pipeline.Pending, translated, "a recently superseded run is still dropped")
}

func TestViewForgetsRetiredRunAfterItsFinal(t *testing.T) {
	v, _ := newTestView()
	v.Publish(pipeline.Update{RunID: "old", OriginalText: "first", TranslatedText: pipeline.Pending})
	v.Publish(pipeline.Update{RunID: "new", OriginalText: "second", TranslatedText: pipeline.Pending})
	v.Publish(pipeline.Update{RunID: "old", OriginalText: "first", TranslatedText: "eins", Final: true})

	v.mu.Lock()
	assert.NotContains(t, v.retired, "old")
	v.mu.Unlock()
	original, _ := v.Text()
	assert.Equal(t, "second", original)
}

func TestViewFailedShowsError(t *testing.T) {
	v, _ := newTestView()
	v.Publish(pipeline.Update{RunID: "a", OriginalText: "done", TranslatedText: "fertig", Final: true})

	v.Failed("b", errors.New("quota exceeded"))

	original, translated := v.Text()
	assert.Empty(t, original)
	assert.Equal(t, "Error: quota exceeded", translated)
}

func TestViewFailedKeepsOriginalOfShownRun(t *testing.T) {
	v, _ := newTestView()
	v.Publish(pipeline.Update{RunID: "a", OriginalText: "Bonjour", TranslatedText: pipeline.Pending})

	v.Failed("a", errors.New("boom"))

	original, translated := v.Text()
	assert.Equal(t, "Bonjour", original)
	assert.Equal(t, "Error: boom", translated)
}

func TestViewFailedForStaleRunIgnored(t *testing.T) {
	v, _ := newTestView()
	v.Publish(pipeline.Update{RunID: "old", OriginalText: "first", TranslatedText: pipeline.Pending})
	v.Publish(pipeline.Update{RunID: "new", OriginalText: "second", TranslatedText: pipeline.Pending})

	v.Failed("old", errors.New("late failure"))

	original, translated := v.Text()
	assert.Equal(t, "second", original)
	assert.Equal(t, pipeline.Pending, translated)
}
