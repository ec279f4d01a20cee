package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"

	"clip-translate/appstate"
	"clip-translate/clipboard"
	"clip-translate/config"
	"clip-translate/eventloop"
	"clip-translate/logutil"
	"clip-translate/metrics"
	"clip-translate/pipeline"
	"clip-translate/singleinstance"
	"clip-translate/tray"
	"clip-translate/ui"
)

const aboutText = "Translates text found in clipboard screenshots with Google Cloud Vision and Gemini.\n\n" +
	"Copy an image, press the capture hotkey, or type text to translate it."

// normalizeFlagDashes maps GNU-style --flag to Go's -flag.
func normalizeFlagDashes() {
	for i := 1; i < len(os.Args); i++ {
		if arg := os.Args[i]; strings.HasPrefix(arg, "--") && len(arg) > 2 {
			os.Args[i] = arg[1:]
		}
	}
}

func main() {
	enableDPIAwareness()

	headless := flag.Bool("headless", false, "Run with a tray icon and stdin instead of a window")
	configDir := flag.String("config-dir", "", "Directory holding config.json")
	envFile := flag.String("env", "", "Path to a .env file")
	handOver := flag.String("text", "", "Hand text to the running instance and exit")
	lang := flag.String("lang", "", "Target language for -text")
	normalizeFlagDashes()
	flag.Parse()

	cfg, err := config.LoadWithOptions(config.LoadOptions{DirOverride: *configDir, EnvFileOverride: *envFile})
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *handOver != "" {
		os.Exit(runHandOver(*handOver, *lang))
	}

	logutil.Setup(cfg.EnableFileLogging, cfg.Dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resident := singleinstance.NewServer()
	if err := resident.Start(ctx); err != nil {
		if port, ok := singleinstance.DetectResident(ctx); ok {
			fmt.Printf("clip-translate is already running on port %d\n", port)
			os.Exit(1)
		}
		log.Printf("Single-instance guard unavailable: %v", err)
	}
	defer resident.Close()

	if err := clipboard.Init(); err != nil {
		log.Fatalf("Failed to initialize clipboard: %v", err)
	}

	state := appstate.New(cfg.TargetLanguage)
	m := metrics.New()
	store := config.NewSettingsStore(cfg.SettingsPath())

	log.Printf("clip-translate starting (model %s, language %s, hotkey %s)", cfg.Model, state.Language(), cfg.Hotkey)
	log.Printf("Settings file: %s", store.Path())

	var (
		view *ui.View
		pub  pipeline.Publisher
	)
	if *headless {
		pubs := pipeline.Multi{&pipeline.WriterPublisher{Writer: os.Stdout}}
		if cfg.CopyResult {
			pubs = append(pubs, eventloop.CopyPublisher{})
		}
		pub = pubs
	} else {
		view = ui.NewView()
		pub = view
		if cfg.CopyResult {
			pub = pipeline.Multi{view, eventloop.CopyPublisher{}}
		}
	}

	orch := pipeline.New(state, pub,
		pipeline.WithDeadline(cfg.RunDeadline()),
		pipeline.WithMetrics(m),
		pipeline.WithManualWorkers(cfg.ManualWorkers),
	)
	defer orch.Close()

	var status eventloop.StatusFunc = tray.SetStatus
	var window *ui.UI
	if !*headless {
		status = func(s string) {
			if window != nil {
				window.SetStatus(s)
			}
		}
	}

	loop := eventloop.New(eventloop.Options{
		Config:       cfg,
		Store:        store,
		State:        state,
		Orchestrator: orch,
		Metrics:      m,
		Status:       status,
	})
	configErr := loop.Configure()
	if configErr != nil {
		log.Printf("Not fully configured: %v", configErr)
	}

	go serveHandOvers(ctx, resident, loop)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if *headless {
		runHeadless(ctx, cancel, loop, configErr, sigChan)
	} else {
		a := app.NewWithID("dev.cliptranslate.app")
		window = ui.New(a, view, loop, store, aboutText)
		a.Lifecycle().SetOnStarted(func() {
			window.PromptMissing(configErr)
		})
		go func() {
			select {
			case <-sigChan:
				log.Printf("Shutting down due to signal...")
				fyne.Do(a.Quit)
			case <-ctx.Done():
			}
		}()
		go runLoop(ctx, loop)
		window.ShowAndRun()
	}

	cancel()
	log.Printf("clip-translate stopped")
}

func runLoop(ctx context.Context, loop *eventloop.Loop) {
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Event loop stopped: %v", err)
	}
}

// runHeadless keeps the tray on the main goroutine and reads commands from
// stdin: ":lang <label>" switches the language, any other line is translated.
func runHeadless(ctx context.Context, cancel context.CancelFunc, loop *eventloop.Loop, configErr error, sigChan <-chan os.Signal) {
	if fields := config.MissingFields(configErr); len(fields) > 0 {
		fmt.Fprintf(os.Stderr, "Missing settings: %s. Set VISION_CREDENTIALS_FILE and GEMINI_API_KEY or edit the settings file.\n",
			strings.Join(fields, ", "))
	}

	go runLoop(ctx, loop)
	go readCommands(ctx, loop, os.Stdin)
	go func() {
		select {
		case <-sigChan:
			log.Printf("Shutting down due to signal...")
			tray.Quit()
		case <-ctx.Done():
		}
	}()

	tray.Run(tray.Options{
		Title:      "clip-translate",
		AboutText:  aboutText,
		Languages:  appstate.Languages,
		Controller: loop,
		OnQuit:     cancel,
	})
}

func readCommands(ctx context.Context, loop *eventloop.Loop, in io.Reader) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, ":lang "):
			loop.SetLanguage(strings.TrimPrefix(line, ":lang "))
			log.Printf("Target language: %s", loop.Language())
		default:
			loop.SubmitText(line)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("stdin closed: %v", err)
	}
}

func serveHandOvers(ctx context.Context, srv singleinstance.Server, loop *eventloop.Loop) {
	if srv.Port() == 0 {
		return
	}
	for {
		conn, err := srv.Next(ctx)
		if err != nil {
			return
		}
		handOver(ctx, conn, loop)
		_ = conn.Close()
	}
}

// handOver answers SUCCESS only once the text has been handed to the
// pipeline, which always starts a run for it.
func handOver(ctx context.Context, conn singleinstance.Conn, loop textSubmitter) {
	req := conn.Request()
	switch {
	case strings.TrimSpace(req.Text) == "":
		_ = conn.RespondError("empty text")
	case ctx.Err() != nil:
		_ = conn.RespondError("shutting down")
	default:
		if req.Language != "" {
			loop.SetLanguage(req.Language)
		}
		loop.SubmitText(req.Text)
		_ = conn.RespondSuccess()
	}
}

type textSubmitter interface {
	SubmitText(text string)
	SetLanguage(label string)
}

func runHandOver(text, lang string) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := singleinstance.NewClient().Submit(ctx, singleinstance.Request{Language: lang, Text: text})
	switch {
	case errors.Is(err, singleinstance.ErrNoResident):
		fmt.Fprintln(os.Stderr, "clip-translate is not running; use clip-translate-cli text instead")
		return 1
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
