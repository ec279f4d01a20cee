package clipboard

import (
	"bytes"
	"context"
	"log"
	"sync"
	"time"
)

const DefaultPollInterval = time.Second

// Snapshot is one capture of the clipboard image. It is never mutated after
// capture.
type Snapshot struct {
	Data       []byte
	CapturedAt time.Time
}

// Comparator reports whether next shows the same content as prev.
type Comparator func(prev, next []byte) bool

// CompareExact treats snapshots as equal only when their bytes match.
func CompareExact(prev, next []byte) bool { return bytes.Equal(prev, next) }

// CompareContains treats next as unchanged when it contains prev. This is the
// looser legacy rule and can miss a change whose encoding embeds the previous
// one.
func CompareContains(prev, next []byte) bool { return bytes.Contains(next, prev) }

// DispatchFunc receives each detected change. It must call done once the run
// it started has finished; until then the watcher reports Dispatching.
type DispatchFunc func(snap Snapshot, done func())

type WatcherOption func(*Watcher)

// WithComparator replaces the default exact comparison.
func WithComparator(c Comparator) WatcherOption {
	return func(w *Watcher) {
		if c != nil {
			w.same = c
		}
	}
}

// WithPrimed controls whether an image already on the clipboard when Run
// starts is recorded silently (true, the default) or dispatched.
func WithPrimed(primed bool) WatcherOption {
	return func(w *Watcher) { w.primed = primed }
}

// Watcher polls a Source and dispatches once per content change.
type Watcher struct {
	src      Source
	interval time.Duration
	dispatch DispatchFunc
	same     Comparator
	primed   bool
	now      func() time.Time

	mu         sync.Mutex
	prev       *Snapshot
	inFlight   int
	paused     bool
	dispatches uint64
}

func NewWatcher(src Source, interval time.Duration, dispatch DispatchFunc, opts ...WatcherOption) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	w := &Watcher{
		src:      src,
		interval: interval,
		dispatch: dispatch,
		same:     CompareExact,
		primed:   true,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if w.primed {
		w.Prime()
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.Printf("Clipboard watcher started (interval %v)", w.interval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Poll()
		}
	}
}

// Prime records the current clipboard image without dispatching it.
func (w *Watcher) Prime() {
	data := w.src.ReadImage()
	if len(data) == 0 {
		return
	}
	w.mu.Lock()
	w.prev = &Snapshot{Data: data, CapturedAt: w.now()}
	w.mu.Unlock()
}

// Poll performs one tick and reports whether it dispatched.
func (w *Watcher) Poll() bool {
	data := w.src.ReadImage()
	if len(data) == 0 {
		return false
	}
	snap := Snapshot{Data: data, CapturedAt: w.now()}

	w.mu.Lock()
	changed := w.prev == nil || !w.same(w.prev.Data, snap.Data)
	w.prev = &snap
	if !changed || w.paused {
		w.mu.Unlock()
		return false
	}
	w.inFlight++
	w.dispatches++
	w.mu.Unlock()

	log.Printf("New image detected in clipboard (%d bytes)", len(snap.Data))

	var once sync.Once
	w.dispatch(snap, func() { once.Do(w.done) })
	return true
}

func (w *Watcher) done() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inFlight > 0 {
		w.inFlight--
	}
}

// Dispatching reports whether a dispatched run has not completed yet.
func (w *Watcher) Dispatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inFlight > 0
}

// Dispatches is the number of changes dispatched so far.
func (w *Watcher) Dispatches() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dispatches
}

// Pause stops dispatching. Snapshots keep being refreshed so that content
// copied while paused does not fire on Resume.
func (w *Watcher) Pause() {
	w.mu.Lock()
	w.paused = true
	w.mu.Unlock()
	log.Printf("Clipboard watcher paused")
}

func (w *Watcher) Resume() {
	w.mu.Lock()
	w.paused = false
	w.mu.Unlock()
	log.Printf("Clipboard watcher resumed")
}

func (w *Watcher) Paused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paused
}
