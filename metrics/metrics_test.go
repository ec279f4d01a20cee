package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRecordAndScrape(t *testing.T) {
	m := New()
	m.RecordDispatch()
	m.RecordDispatch()
	m.RecordRun("clipboard", "ok")
	m.RecordRun("manual", "translation_error")
	m.ObserveStage("recognize", 250*time.Millisecond)

	out := scrape(t, m)
	assert.Contains(t, out, "clip_translate_clipboard_dispatches_total 2")
	assert.Contains(t, out, `clip_translate_runs_total{outcome="ok",source="clipboard"} 1`)
	assert.Contains(t, out, `clip_translate_runs_total{outcome="translation_error",source="manual"} 1`)
	assert.Contains(t, out, `clip_translate_stage_duration_seconds_count{stage="recognize"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordDispatch()
		m.RecordRun("clipboard", "ok")
		m.ObserveStage("translate", time.Second)
	})
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.RecordDispatch()
	assert.Contains(t, scrape(t, a), "clip_translate_clipboard_dispatches_total 1")
	assert.Contains(t, scrape(t, b), "clip_translate_clipboard_dispatches_total 0")
}
