// Package ui is the desktop window: original and translated panes, a box for
// typing text, the language picker and the credential prompts.
package ui

import (
	"fmt"
	"log"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"clip-translate/appstate"
	"clip-translate/config"
)

const (
	fieldCertificate = "certificatePath"
	fieldAPIKey      = "apiKey"
)

// Controller is what the window drives.
type Controller interface {
	SubmitText(text string)
	SetLanguage(label string)
	Language() string
	ApplySettings(s config.Settings) error
}

type UI struct {
	app   fyne.App
	win   fyne.Window
	ctrl  Controller
	store *config.SettingsStore
	view  *View
	about string

	original   *widget.Entry
	translated *widget.Entry
	input      *widget.Entry
	language   *widget.SelectEntry
	submit     *widget.Button
	status     *widget.Label

	prompting bool
}

// New builds the main window around view, which must already be the
// pipeline's publisher. about is shown by Help > About.
func New(app fyne.App, view *View, ctrl Controller, store *config.SettingsStore, about string) *UI {
	u := &UI{
		app:   app,
		win:   app.NewWindow("Clip Translate"),
		ctrl:  ctrl,
		store: store,
		view:  view,
		about: about,
	}
	u.view.OnChange = func(original, translated string) {
		fyne.Do(func() {
			u.original.SetText(original)
			u.translated.SetText(translated)
		})
	}
	u.view.OnNeedCredentials = func(field string) {
		fyne.Do(func() { u.promptFor([]string{field}) })
	}
	u.build()
	return u
}

func (u *UI) Window() fyne.Window { return u.win }

// SetStatus may be called from any goroutine.
func (u *UI) SetStatus(status string) {
	fyne.Do(func() { u.status.SetText(status) })
}

func (u *UI) build() {
	u.original = widget.NewMultiLineEntry()
	u.original.Wrapping = fyne.TextWrapWord
	u.original.SetPlaceHolder("Copy a screenshot to the clipboard...")

	u.translated = widget.NewMultiLineEntry()
	u.translated.Wrapping = fyne.TextWrapWord
	u.translated.SetPlaceHolder("Translation appears here")

	u.input = widget.NewMultiLineEntry()
	u.input.Wrapping = fyne.TextWrapWord
	u.input.SetPlaceHolder("Or type text to translate")
	u.input.SetMinRowsVisible(3)

	u.submit = widget.NewButton("Translate", u.submitInput)
	u.submit.Importance = widget.HighImportance

	u.language = widget.NewSelectEntry(appstate.Languages)
	u.language.SetText(u.ctrl.Language())
	u.language.OnChanged = func(label string) {
		if strings.TrimSpace(label) != "" {
			u.ctrl.SetLanguage(label)
		}
	}

	u.status = widget.NewLabel("")

	top := container.NewBorder(nil, nil, widget.NewLabel("Translate to:"), u.status, u.language)
	panes := container.NewVSplit(
		container.NewBorder(widget.NewLabel("Original"), nil, nil, nil, u.original),
		container.NewBorder(widget.NewLabel("Translation"), nil, nil, nil, u.translated),
	)
	bottom := container.NewBorder(nil, nil, nil, u.submit, u.input)

	u.win.SetContent(container.NewBorder(top, bottom, nil, nil, panes))
	u.win.SetMainMenu(u.menu())
	u.win.Resize(fyne.NewSize(800, 600))
	u.win.SetMaster()
}

func (u *UI) menu() *fyne.MainMenu {
	changeCert := fyne.NewMenuItem("Change Vision credentials (JSON)...", func() { u.promptFor([]string{fieldCertificate}) })
	changeKey := fyne.NewMenuItem("Change Gemini API key...", func() { u.promptFor([]string{fieldAPIKey}) })
	quit := fyne.NewMenuItem("Quit", func() { u.app.Quit() })
	quit.IsQuit = true

	return fyne.NewMainMenu(
		fyne.NewMenu("File", changeCert, changeKey, fyne.NewMenuItemSeparator(), quit),
		fyne.NewMenu("Help", fyne.NewMenuItem("About", u.showAbout)),
	)
}

func (u *UI) submitInput() {
	text := strings.TrimSpace(u.input.Text)
	if text == "" {
		return
	}
	u.ctrl.SubmitText(text)
}

// PromptMissing starts the prompt flow for every credential err reports as
// not configured. It must run on the UI goroutine.
func (u *UI) PromptMissing(err error) {
	if fields := config.MissingFields(err); len(fields) > 0 {
		u.promptFor(fields)
		return
	}
	if err != nil {
		dialog.ShowError(err, u.win)
	}
}

// promptFor asks for each field in turn, as the first-run flow does.
func (u *UI) promptFor(fields []string) {
	if len(fields) == 0 || u.prompting {
		return
	}
	u.prompting = true
	next := func() {
		u.prompting = false
		u.promptFor(fields[1:])
	}
	switch fields[0] {
	case fieldCertificate:
		u.promptCertificate(next)
	case fieldAPIKey:
		u.promptAPIKey(next)
	default:
		next()
	}
}

func (u *UI) promptCertificate(then func()) {
	d := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, u.win)
			then()
			return
		}
		if rc == nil {
			then()
			return
		}
		path := rc.URI().Path()
		_ = rc.Close()

		if err := u.store.SaveCertificatePath(path); err != nil {
			dialog.ShowError(err, u.win)
		} else {
			log.Printf("Vision credentials saved: %s", path)
			u.apply()
		}
		then()
	}, u.win)
	d.SetFilter(storage.NewExtensionFileFilter([]string{".json"}))
	d.SetTitleText("Select your Google Cloud Vision service-account key")
	d.Show()
}

func (u *UI) promptAPIKey(then func()) {
	key := widget.NewPasswordEntry()
	key.SetPlaceHolder("Gemini API key")
	items := []*widget.FormItem{widget.NewFormItem("API key", key)}

	dialog.ShowForm("Gemini API key", "Save", "Cancel", items, func(ok bool) {
		if ok {
			if err := u.store.SaveAPIKey(key.Text); err != nil {
				dialog.ShowError(err, u.win)
			} else {
				log.Printf("Gemini API key saved")
				u.apply()
			}
		}
		then()
	}, u.win)
}

func (u *UI) apply() {
	s, err := u.store.Load()
	if err != nil {
		dialog.ShowError(err, u.win)
		return
	}
	if err := u.ctrl.ApplySettings(s); err != nil && len(config.MissingFields(err)) == 0 {
		dialog.ShowError(err, u.win)
	}
}

func (u *UI) showAbout() {
	text := u.about
	if u.store != nil {
		text = fmt.Sprintf("%s\n\nSettings: %s", text, u.store.Path())
	}
	label := widget.NewLabel(text)
	label.Wrapping = fyne.TextWrapWord
	dialog.ShowCustom("About", "Close", label, u.win)
}

// ShowAndRun blocks until the window is closed.
func (u *UI) ShowAndRun() {
	u.win.ShowAndRun()
}
