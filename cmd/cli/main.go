package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clip-translate/appstate"
	"clip-translate/config"
	"clip-translate/llm"
	"clip-translate/logutil"
	"clip-translate/ocr"
	"clip-translate/pipeline"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

type cliOptions struct {
	language    string
	jsonOutput  bool
	verbose     bool
	configDir   string
	envFile     string
	credentials string
	deadline    time.Duration
}

// environment is what a command touches outside its flags.
type environment struct {
	stdin         io.Reader
	stdout        io.Writer
	stderr        io.Writer
	newRecognizer func(certificatePath string) (ocr.Recognizer, error)
	newTranslator func(apiKey, model string) (llm.Translator, error)
}

func defaultEnvironment() *environment {
	return &environment{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		newRecognizer: func(path string) (ocr.Recognizer, error) {
			c, err := ocr.NewVisionClientFromFile(path)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		newTranslator: func(apiKey, model string) (llm.Translator, error) {
			c, err := llm.NewGeminiClient(llm.Config{APIKey: apiKey, Model: model})
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args), defaultEnvironment())
}

func runWithArgs(args []string, env *environment) error {
	if len(args) == 0 {
		args = []string{"clip-translate-cli"}
	}
	cmd := newRootCmd(&cliOptions{}, env)
	cmd.SetArgs(args[1:])
	cmd.SetIn(env.stdin)
	cmd.SetOut(env.stdout)
	cmd.SetErr(env.stderr)
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions, env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "clip-translate-cli",
		Short:         "Recognize and translate text from images or plain text",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.language, "lang", "l", "", "Target language label (default from TARGET_LANGUAGE)")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	flags.StringVar(&opts.configDir, "config-dir", "", "Directory holding config.json")
	flags.StringVar(&opts.envFile, "env", "", "Path to a .env file")
	flags.StringVar(&opts.credentials, "credentials", "", "Vision service-account key file (overrides settings)")
	flags.DurationVar(&opts.deadline, "timeout", 0, "Upper bound for the run (default from RUN_DEADLINE_SEC)")

	cmd.AddCommand(newImageCmd(opts, env), newTextCmd(opts, env))
	return cmd
}

func newImageCmd(opts *cliOptions, env *environment) *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Recognize the text in an image and translate it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readImage(filePath, env.stdin)
			if err != nil {
				return err
			}
			return execute(cmd.Context(), *opts, env, true, func(ctx context.Context, orch *pipeline.Orchestrator) error {
				return orch.RunFromClipboard(ctx, raw)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "Path to an image file (use '-' for stdin)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newTextCmd(opts *cliOptions, env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "text [text...]",
		Short: "Translate text given as arguments, or read from stdin when none are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				b, err := io.ReadAll(env.stdin)
				if err != nil {
					return fmt.Errorf("failed to read from stdin: %w", err)
				}
				text = string(b)
			}
			if strings.TrimSpace(text) == "" {
				return errors.New("no text to translate")
			}
			return execute(cmd.Context(), *opts, env, false, func(ctx context.Context, orch *pipeline.Orchestrator) error {
				return orch.RunFromManualText(ctx, text)
			})
		},
	}
}

// execute builds the clients the run needs and drives one synchronous run.
// The recognizer is only required for image runs.
func execute(ctx context.Context, opts cliOptions, env *environment, needRecognizer bool, runFn func(context.Context, *pipeline.Orchestrator) error) error {
	if !opts.verbose {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(env.stderr)
		fmt.Fprintf(env.stderr, "[verbose] Starting clip-translate-cli\n")
	}

	cfg, err := config.LoadWithOptions(config.LoadOptions{DirOverride: opts.configDir, EnvFileOverride: opts.envFile})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	settings, err := config.NewSettingsStore(cfg.SettingsPath()).Load()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	creds := config.Credentials(cfg, settings)
	if opts.credentials != "" {
		creds.CertificatePath = opts.credentials
	}

	state := appstate.New(cfg.TargetLanguage)
	if opts.language != "" {
		state.SetLanguage(opts.language)
	}
	if opts.verbose {
		fmt.Fprintf(env.stderr, "[verbose] Model=%s Language=%s API key=%s\n", cfg.Model, state.Language(), logutil.RedactKey(creds.APIKey))
	}

	var errs []error
	if needRecognizer {
		if err := config.CheckCertificate(creds.CertificatePath); err != nil {
			errs = append(errs, err)
		} else if r, err := env.newRecognizer(creds.CertificatePath); err != nil {
			errs = append(errs, err)
		} else {
			state.SetRecognizer(r)
		}
	}
	if t, err := env.newTranslator(creds.APIKey, cfg.Model); err != nil {
		errs = append(errs, err)
	} else {
		state.SetTranslator(t)
	}
	if err := errors.Join(errs...); err != nil {
		if fields := config.MissingFields(err); len(fields) > 0 {
			return fmt.Errorf("missing %s; set VISION_CREDENTIALS_FILE and GEMINI_API_KEY or run the desktop app once: %w",
				strings.Join(fields, ", "), err)
		}
		return err
	}

	deadline := opts.deadline
	if deadline <= 0 {
		deadline = cfg.RunDeadline()
	}
	pub := &pipeline.WriterPublisher{Writer: env.stdout, JSON: opts.jsonOutput}
	orch := pipeline.New(state, pub, pipeline.WithDeadline(deadline), pipeline.WithManualWorkers(1))
	defer orch.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	start := time.Now()
	err = runFn(ctx, orch)
	if opts.verbose {
		fmt.Fprintf(env.stderr, "[verbose] Run finished in %v: %s\n", time.Since(start), pipeline.Outcome(err))
	}
	return err
}

func readImage(filePath string, stdin io.Reader) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if filePath == "-" {
		data, err = io.ReadAll(io.LimitReader(stdin, maxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("input file is empty")
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}
	return data, nil
}

// normalizeLegacyArgs accepts single-dash long flags such as -json.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	normalized := make([]string, len(args))
	copy(normalized, args)

	long := []string{"file", "json", "verbose", "lang", "config-dir", "env", "credentials", "timeout"}
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range long {
			if arg == "-"+name || strings.HasPrefix(arg, "-"+name+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
	}
	return normalized
}
