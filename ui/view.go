package ui

import (
	"fmt"
	"sync"

	"clip-translate/config"
	"clip-translate/pipeline"
)

// retiredLimit bounds how many superseded run IDs the View remembers.
const retiredLimit = 256

// View decides what the two panes show. The run whose first event arrived
// last owns the panes; every run it displaced is retired and its later events
// are dropped, so a slow run never overwrites a newer result.
type View struct {
	mu       sync.Mutex
	current  string
	retired  map[string]struct{}
	evict    []string
	original string
	result   string

	// OnChange receives the pane contents after every accepted event.
	OnChange func(original, translated string)
	// OnNeedCredentials receives the setting a failed run was missing.
	OnNeedCredentials func(field string)
}

func NewView() *View {
	return &View{retired: map[string]struct{}{}}
}

func (v *View) Publish(u pipeline.Update) {
	v.mu.Lock()
	if !v.acceptLocked(u.RunID) {
		if u.Final {
			delete(v.retired, u.RunID)
		}
		v.mu.Unlock()
		return
	}
	v.original = u.OriginalText
	v.result = u.TranslatedText
	original, result, cb := v.original, v.result, v.OnChange
	v.mu.Unlock()

	if cb != nil {
		cb(original, result)
	}
}

func (v *View) Failed(runID string, err error) {
	if fields := config.MissingFields(err); len(fields) > 0 {
		if v.OnNeedCredentials != nil {
			v.OnNeedCredentials(fields[0])
		}
		return
	}

	v.mu.Lock()
	shown := runID == v.current
	if !v.acceptLocked(runID) {
		delete(v.retired, runID)
		v.mu.Unlock()
		return
	}
	if !shown {
		v.original = ""
	}
	v.result = fmt.Sprintf("Error: %v", err)
	original, result, cb := v.original, v.result, v.OnChange
	v.mu.Unlock()

	if cb != nil {
		cb(original, result)
	}
}

// Text returns the pane contents.
func (v *View) Text() (original, translated string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.original, v.result
}

func (v *View) acceptLocked(runID string) bool {
	if runID == v.current {
		return true
	}
	if _, ok := v.retired[runID]; ok {
		return false
	}
	if v.current != "" {
		v.retireLocked(v.current)
	}
	v.current = runID
	return true
}

func (v *View) retireLocked(runID string) {
	if len(v.evict) >= retiredLimit {
		delete(v.retired, v.evict[0])
		v.evict = v.evict[1:]
	}
	v.retired[runID] = struct{}{}
	v.evict = append(v.evict, runID)
}
