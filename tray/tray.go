// Package tray is the notification-area front end used in headless mode.
package tray

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/getlantern/systray"
)

// Controller is the part of the event loop the menu drives.
type Controller interface {
	Pause()
	Resume()
	Paused() bool
	Language() string
	SetLanguage(label string)
}

type Options struct {
	Title      string
	AboutText  string
	Languages  []string
	Controller Controller
	// OnReady runs once the icon is up, on its own goroutine.
	OnReady func()
	OnQuit  func()
}

var (
	ready   atomic.Bool
	titleMu sync.RWMutex
	title   = "clip-translate"
	pending atomic.Value
)

// Run blocks on the platform tray loop until Quit is called. It must be
// called from the main goroutine.
func Run(opts Options) {
	if opts.Title != "" {
		titleMu.Lock()
		title = opts.Title
		titleMu.Unlock()
	}
	systray.Run(func() { onReady(opts) }, func() {
		ready.Store(false)
		if opts.OnQuit != nil {
			opts.OnQuit()
		}
	})
}

// Quit tears down the tray; Run returns afterwards.
func Quit() { systray.Quit() }

// SetStatus shows status in the tooltip. Calls made before the tray is up
// are applied once it is.
func SetStatus(status string) {
	pending.Store(status)
	if ready.Load() {
		systray.SetTooltip(tooltip(status))
	}
}

func tooltip(status string) string {
	titleMu.RLock()
	defer titleMu.RUnlock()
	if status == "" {
		return title
	}
	return fmt.Sprintf("%s: %s", title, status)
}

func onReady(opts Options) {
	icon, err := Icon()
	if err != nil {
		log.Printf("Tray icon unavailable: %v", err)
	} else {
		systray.SetIcon(icon)
	}
	titleMu.RLock()
	systray.SetTitle(title)
	titleMu.RUnlock()

	status, _ := pending.Load().(string)
	systray.SetTooltip(tooltip(status))
	ready.Store(true)

	var mPause *systray.MenuItem
	if opts.Controller != nil {
		mPause = systray.AddMenuItemCheckbox("Pause watching", "Stop reacting to clipboard images", opts.Controller.Paused())
	}

	langItems := map[*systray.MenuItem]string{}
	langClicks := make(chan string)
	if opts.Controller != nil && len(opts.Languages) > 0 {
		mLang := systray.AddMenuItem("Target language", "Language translations are written in")
		current := opts.Controller.Language()
		for _, lang := range opts.Languages {
			item := mLang.AddSubMenuItemCheckbox(lang, "Translate to "+lang, lang == current)
			langItems[item] = lang
			go func(item *systray.MenuItem, lang string) {
				for range item.ClickedCh {
					langClicks <- lang
				}
			}(item, lang)
		}
	}

	systray.AddSeparator()
	mAbout := systray.AddMenuItem("About", "About this tool")
	mQuit := systray.AddMenuItem("Quit", "Quit the application")

	var pauseClicks chan struct{}
	if mPause != nil {
		pauseClicks = mPause.ClickedCh
	}

	go func() {
		for {
			select {
			case <-pauseClicks:
				if opts.Controller.Paused() {
					opts.Controller.Resume()
					mPause.Uncheck()
				} else {
					opts.Controller.Pause()
					mPause.Check()
				}
			case lang := <-langClicks:
				opts.Controller.SetLanguage(lang)
				for item, l := range langItems {
					if l == lang {
						item.Check()
					} else {
						item.Uncheck()
					}
				}
			case <-mAbout.ClickedCh:
				showAbout(tooltip(""), opts.AboutText)
			case <-mQuit.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()

	if opts.OnReady != nil {
		go opts.OnReady()
	}
}
