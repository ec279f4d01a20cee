package eventloop

import (
	"context"
	"errors"
	"log"
	"sync/atomic"

	"clip-translate/appstate"
	"clip-translate/clipboard"
	"clip-translate/config"
	"clip-translate/hotkey"
	"clip-translate/llm"
	"clip-translate/logutil"
	"clip-translate/metrics"
	"clip-translate/ocr"
	"clip-translate/pipeline"
	"clip-translate/screenshot"
)

const (
	StatusIdle          = "Watching clipboard"
	StatusBusy          = "Translating..."
	StatusPaused        = "Paused"
	StatusNotConfigured = "Credentials needed"
)

// StatusFunc receives a short status line. It may be called from any goroutine.
type StatusFunc func(status string)

type Options struct {
	Config       *config.Config
	Store        *config.SettingsStore
	State        *appstate.State
	Orchestrator *pipeline.Orchestrator
	Metrics      *metrics.Metrics
	Source       clipboard.Source
	Status       StatusFunc

	NewRecognizer func(certificatePath string) (ocr.Recognizer, error)
	NewTranslator func(apiKey string) (llm.Translator, error)
	Capture       func() ([]byte, error)
	ListenHotkey  func(ctx context.Context, combo string, cb func()) error
}

// Loop is the resident coordinator. It owns the clipboard watcher and routes
// hotkey presses, typed text and settings reloads into the pipeline.
type Loop struct {
	cfg     *config.Config
	store   *config.SettingsStore
	state   *appstate.State
	orch    *pipeline.Orchestrator
	metrics *metrics.Metrics
	status  StatusFunc

	newRecognizer func(string) (ocr.Recognizer, error)
	newTranslator func(string) (llm.Translator, error)
	capture       func() ([]byte, error)
	listenHotkey  func(context.Context, string, func()) error

	watcher  *clipboard.Watcher
	inFlight atomic.Int32

	hotkeyCh chan struct{}
	reloads  chan config.Settings
	results  chan result
	started  chan struct{}
	stopped  chan struct{}
}

type result struct {
	source string
	err    error
}

// New creates a new event loop with defaults.
func New(opts Options) *Loop {
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	l := &Loop{
		cfg:           cfg,
		store:         opts.Store,
		state:         opts.State,
		orch:          opts.Orchestrator,
		metrics:       opts.Metrics,
		status:        opts.Status,
		newRecognizer: opts.NewRecognizer,
		newTranslator: opts.NewTranslator,
		capture:       opts.Capture,
		listenHotkey:  opts.ListenHotkey,
		hotkeyCh:      make(chan struct{}, 4),
		reloads:       make(chan config.Settings, 1),
		results:       make(chan result, 4),
		started:       make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	if l.status == nil {
		l.status = func(string) {}
	}
	if l.newRecognizer == nil {
		l.newRecognizer = func(path string) (ocr.Recognizer, error) {
			c, err := ocr.NewVisionClientFromFile(path)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}
	if l.newTranslator == nil {
		model := cfg.Model
		l.newTranslator = func(apiKey string) (llm.Translator, error) {
			c, err := llm.NewGeminiClient(llm.Config{APIKey: apiKey, Model: model})
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}
	if l.capture == nil {
		l.capture = screenshot.CapturePrimary
	}
	if l.listenHotkey == nil {
		l.listenHotkey = hotkey.Listen
	}

	src := opts.Source
	if src == nil {
		src = clipboard.SystemSource{}
	}
	compare := clipboard.CompareExact
	if cfg.SnapshotCompare == config.CompareContain {
		compare = clipboard.CompareContains
	}
	// Loop.Run primes the watcher before polling starts.
	l.watcher = clipboard.NewWatcher(src, cfg.PollInterval, l.dispatch,
		clipboard.WithComparator(compare), clipboard.WithPrimed(false))
	return l
}

// Configure loads persisted credentials and builds the service clients.
func (l *Loop) Configure() error {
	var s config.Settings
	if l.store != nil {
		loaded, err := l.store.Load()
		if err != nil {
			return err
		}
		s = loaded
	}
	return l.ApplySettings(s)
}

// ApplySettings rebuilds the clients whose credentials changed, falling back
// to the environment for missing fields. A field is only remembered once its
// client was built, so reapplying the same value after a failure retries.
func (l *Loop) ApplySettings(s config.Settings) error {
	creds := config.Credentials(l.cfg, s)
	applied := l.state.Settings()
	var errs []error

	if _, err := l.state.Recognizer(); err != nil || creds.CertificatePath != applied.CertificatePath {
		r, err := l.buildRecognizer(creds.CertificatePath)
		if err != nil {
			errs = append(errs, err)
		} else {
			l.state.SetRecognizer(r)
			applied.CertificatePath = creds.CertificatePath
			log.Printf("Recognizer configured from %s", creds.CertificatePath)
		}
	}
	if _, err := l.state.Translator(); err != nil || creds.APIKey != applied.APIKey {
		t, err := l.buildTranslator(creds.APIKey)
		if err != nil {
			errs = append(errs, err)
		} else {
			l.state.SetTranslator(t)
			applied.APIKey = creds.APIKey
			log.Printf("Translator configured with key %s", logutil.RedactKey(creds.APIKey))
		}
	}

	l.state.SetSettings(applied)
	l.refreshStatus()
	return errors.Join(errs...)
}

func (l *Loop) buildRecognizer(path string) (ocr.Recognizer, error) {
	if path == "" {
		return nil, &config.ConfigError{Field: "certificatePath", Err: config.ErrNotConfigured}
	}
	return l.newRecognizer(path)
}

func (l *Loop) buildTranslator(apiKey string) (llm.Translator, error) {
	if apiKey == "" {
		return nil, &config.ConfigError{Field: "apiKey", Err: config.ErrNotConfigured}
	}
	return l.newTranslator(apiKey)
}

// SubmitText starts a translation of typed text. It never drops input and
// may be called from any goroutine.
func (l *Loop) SubmitText(text string) {
	l.track(pipeline.SourceManual, l.orch.SubmitManual(text), nil)
}

// SetLanguage changes the target language for runs submitted from now on.
func (l *Loop) SetLanguage(label string) {
	l.state.SetLanguage(label)
	log.Printf("Target language set to %s", l.state.Language())
}

func (l *Loop) Language() string { return l.state.Language() }

func (l *Loop) Pause() {
	l.watcher.Pause()
	l.refreshStatus()
}

func (l *Loop) Resume() {
	l.watcher.Resume()
	l.refreshStatus()
}

func (l *Loop) Paused() bool { return l.watcher.Paused() }

// Started is closed once the watcher has recorded the startup clipboard.
func (l *Loop) Started() <-chan struct{} { return l.started }

// Run blocks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.stopped)

	l.watcher.Prime()
	go func() { _ = l.watcher.Run(ctx) }()

	if l.store != nil {
		go func() {
			err := config.WatchSettings(ctx, l.store, func(s config.Settings) {
				select {
				case l.reloads <- s:
				default:
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Settings watcher stopped: %v", err)
			}
		}()
	}

	if l.cfg.Hotkey != "" {
		err := l.listenHotkey(ctx, l.cfg.Hotkey, func() {
			select {
			case l.hotkeyCh <- struct{}{}:
			default:
			}
		})
		if err != nil {
			log.Printf("Hotkey disabled: %v", err)
		}
	}

	if l.cfg.MetricsAddr != "" && l.metrics != nil {
		go func() {
			if err := l.metrics.Serve(ctx, l.cfg.MetricsAddr); err != nil {
				log.Printf("Metrics server failed: %v", err)
			}
		}()
	}

	l.refreshStatus()
	close(l.started)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.hotkeyCh:
			l.handleHotkey()
		case s := <-l.reloads:
			log.Printf("Settings file changed, reloading clients")
			if err := l.ApplySettings(s); err != nil {
				log.Printf("Settings reload incomplete: %v", err)
			}
		case res := <-l.results:
			l.handleResult(res)
		}
	}
}

// dispatch runs on the watcher goroutine and must not block.
func (l *Loop) dispatch(snap clipboard.Snapshot, done func()) {
	l.metrics.RecordDispatch()
	l.track(pipeline.SourceClipboard, l.orch.SubmitClipboard(snap.Data), done)
}

func (l *Loop) handleHotkey() {
	data, err := l.capture()
	if err != nil {
		log.Printf("Screen capture failed: %v", err)
		return
	}
	l.track(pipeline.SourceCapture, l.orch.SubmitCapture(data), nil)
}

func (l *Loop) track(source string, errCh <-chan error, done func()) {
	l.inFlight.Add(1)
	l.status(StatusBusy)
	go func() {
		err := <-errCh
		if done != nil {
			done()
		}
		select {
		case l.results <- result{source: source, err: err}:
		case <-l.stopped:
		}
	}()
}

func (l *Loop) handleResult(res result) {
	l.inFlight.Add(-1)
	if res.err != nil && !errors.Is(res.err, context.Canceled) {
		log.Printf("%s run ended: %s", res.source, pipeline.Outcome(res.err))
	}
	l.refreshStatus()
}

func (l *Loop) refreshStatus() {
	switch {
	case l.inFlight.Load() > 0:
		l.status(StatusBusy)
	case !l.state.Ready():
		l.status(StatusNotConfigured)
	case l.watcher != nil && l.watcher.Paused():
		l.status(StatusPaused)
	default:
		l.status(StatusIdle)
	}
}
