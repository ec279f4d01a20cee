// Package pipeline runs clipboard images and typed text through recognition
// and translation and reports progress to a Publisher.
package pipeline

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"clip-translate/appstate"
	"clip-translate/config"
	"clip-translate/imaging"
	"clip-translate/llm"
	"clip-translate/logutil"
	"clip-translate/metrics"
	"clip-translate/ocr"
	"clip-translate/worker"
)

// Pending is the translated text of the first update of every run.
const Pending = "Translating..."

const DefaultDeadline = 60 * time.Second

const (
	SourceClipboard = "clipboard"
	SourceCapture   = "capture"
	SourceManual    = "manual"
)

type NormalizeFunc func(raw []byte) ([]byte, error)

type Option func(*Orchestrator)

// WithDeadline bounds every run. Values <= 0 keep the default.
func WithDeadline(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.deadline = d
		}
	}
}

func WithNormalizer(fn NormalizeFunc) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.normalize = fn
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithManualWorkers bounds how many typed-text runs call the translator at
// once. 0 means NumCPU. Submissions beyond the bound wait, they are never
// dropped.
func WithManualWorkers(n int) Option {
	return func(o *Orchestrator) { o.manualWorkers = n }
}

func WithRunIDs(next func() string) Option {
	return func(o *Orchestrator) {
		if next != nil {
			o.newID = next
		}
	}
}

// Orchestrator is safe for concurrent use. Stages within one run are
// sequential; separate runs are not ordered.
type Orchestrator struct {
	state     *appstate.State
	pub       Publisher
	normalize NormalizeFunc
	deadline  time.Duration
	metrics   *metrics.Metrics
	newID     func() string

	manualWorkers int
	imageRuns     *worker.Latest
	manualRuns    *worker.Pool

	mu      sync.Mutex
	closed  bool
	waiting sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

func New(state *appstate.State, pub Publisher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		state:     state,
		pub:       pub,
		normalize: imaging.Normalize,
		deadline:  DefaultDeadline,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.pub == nil {
		o.pub = Discard{}
	}
	o.ctx, o.cancel = context.WithCancel(context.Background())
	o.imageRuns = worker.NewLatest()
	o.manualRuns = worker.New(o.manualWorkers)
	return o
}

// Close cancels in-flight runs and waits for them to return.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	o.cancel()
	o.imageRuns.Close()
	o.waiting.Wait()
	o.manualRuns.Close()
}

// RunFromClipboard normalizes raw, recognizes its text and translates it.
func (o *Orchestrator) RunFromClipboard(ctx context.Context, raw []byte) error {
	return o.runImage(ctx, SourceClipboard, o.newID(), o.state.Language(), raw)
}

// RunFromManualText translates text typed by the user.
func (o *Orchestrator) RunFromManualText(ctx context.Context, text string) error {
	return o.runManual(ctx, o.newID(), llm.Request{SourceText: text, TargetLanguage: o.state.Language()})
}

// SubmitClipboard starts a clipboard run in the background, cancelling any
// image run still in flight. The channel yields the run's result.
func (o *Orchestrator) SubmitClipboard(raw []byte) <-chan error {
	return o.submitImage(SourceClipboard, raw)
}

// SubmitCapture is SubmitClipboard for screen captures taken by the hotkey.
func (o *Orchestrator) SubmitCapture(raw []byte) <-chan error {
	return o.submitImage(SourceCapture, raw)
}

// SubmitManual runs typed text in the background. Every submission runs and
// emits its own updates; when all manual workers are busy it waits for one.
// The target language is captured now, not when a worker picks the job up.
func (o *Orchestrator) SubmitManual(text string) <-chan error {
	result := make(chan error, 1)
	runID := o.newID()
	req := llm.Request{SourceText: text, TargetLanguage: o.state.Language()}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		result <- context.Canceled
		close(result)
		return result
	}
	o.waiting.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.waiting.Done()
		ok := o.manualRuns.Submit(o.ctx, func(ctx context.Context) {
			result <- o.runManual(ctx, runID, req)
			close(result)
		})
		if !ok {
			log.Printf("Run %s: cancelled before start", runID)
			result <- context.Canceled
			close(result)
		}
	}()
	return result
}

func (o *Orchestrator) submitImage(source string, raw []byte) <-chan error {
	result := make(chan error, 1)
	runID := o.newID()
	language := o.state.Language()

	ok := o.imageRuns.Submit(o.ctx, func(ctx context.Context) {
		result <- o.runImage(ctx, source, runID, language, raw)
		close(result)
	})
	if !ok {
		result <- context.Canceled
		close(result)
	}
	return result
}

func (o *Orchestrator) runImage(ctx context.Context, source, runID, language string, raw []byte) error {
	ctx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	log.Printf("Run %s: %s image, %d bytes", runID, source, len(raw))
	err := o.recognizeAndTranslate(ctx, runID, language, raw)
	o.finish(source, runID, err)
	return err
}

func (o *Orchestrator) recognizeAndTranslate(ctx context.Context, runID, language string, raw []byte) error {
	start := time.Now()
	normalized, err := o.normalize(raw)
	o.metrics.ObserveStage("normalize", time.Since(start))
	if err != nil {
		return err
	}

	recognizer, err := o.state.Recognizer()
	if err != nil {
		return err
	}
	translator, err := o.state.Translator()
	if err != nil {
		return err
	}

	start = time.Now()
	res, err := recognizer.Recognize(ctx, normalized)
	o.metrics.ObserveStage("recognize", time.Since(start))
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Printf("Run %s: recognized %d chars from image %.12s: %s", runID, len(res.Text), res.ImageID, logutil.SanitizeForLogging(res.Text))

	return o.translate(ctx, translator, runID, llm.Request{SourceText: res.Text, TargetLanguage: language})
}

func (o *Orchestrator) runManual(ctx context.Context, runID string, req llm.Request) error {
	ctx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	log.Printf("Run %s: manual text, %d chars", runID, len(req.SourceText))
	err := o.translateManual(ctx, runID, req)
	o.finish(SourceManual, runID, err)
	return err
}

func (o *Orchestrator) translateManual(ctx context.Context, runID string, req llm.Request) error {
	translator, err := o.state.Translator()
	if err != nil {
		return err
	}
	return o.translate(ctx, translator, runID, req)
}

func (o *Orchestrator) translate(ctx context.Context, translator llm.Translator, runID string, req llm.Request) error {
	if strings.TrimSpace(req.SourceText) == "" {
		return &llm.TranslationError{TargetLanguage: req.TargetLanguage, Err: llm.ErrEmptySource}
	}
	// A superseded run must stay silent, before and after translating.
	if err := ctx.Err(); err != nil {
		return err
	}

	o.pub.Publish(Update{RunID: runID, OriginalText: req.SourceText, TranslatedText: Pending})

	start := time.Now()
	translated, err := translator.Translate(ctx, req)
	o.metrics.ObserveStage("translate", time.Since(start))
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	o.pub.Publish(Update{RunID: runID, OriginalText: req.SourceText, TranslatedText: translated, Final: true})
	return nil
}

func (o *Orchestrator) finish(source, runID string, err error) {
	outcome := Outcome(err)
	o.metrics.RecordRun(source, outcome)
	if err == nil {
		log.Printf("Run %s: done", runID)
		return
	}
	if errors.Is(err, context.Canceled) {
		log.Printf("Run %s: cancelled", runID)
		return
	}
	log.Printf("Run %s: failed (%s): %v", runID, outcome, err)
	o.pub.Failed(runID, err)
}

// Outcome classifies a run result for metrics and status lines.
func Outcome(err error) string {
	var (
		decodeErr *imaging.DecodeError
		recErr    *ocr.RecognitionError
		trErr     *llm.TranslationError
		cfgErr    *config.ConfigError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &decodeErr):
		return "decode_error"
	case errors.As(err, &cfgErr):
		return "not_configured"
	case errors.As(err, &recErr):
		return "recognition_error"
	case errors.As(err, &trErr):
		return "translation_error"
	default:
		return "error"
	}
}
