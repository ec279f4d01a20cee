package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	AppName        = "clip-translate"
	EnvPathEnvVar  = "CLIP_TRANSLATE_ENV"
	CompareExact   = "exact"
	CompareContain = "contains"

	defaultPollInterval   = time.Second
	defaultRunDeadlineSec = 60
)

type LoadOptions struct {
	DirOverride     string
	EnvFileOverride string
}

type Config struct {
	Model                 string        `env:"MODEL" envDefault:"gemini-1.5-flash"`
	TargetLanguage        string        `env:"TARGET_LANGUAGE" envDefault:"繁體中文"`
	PollInterval          time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`
	RunDeadlineSec        int           `env:"RUN_DEADLINE_SEC" envDefault:"60"`
	SnapshotCompare       string        `env:"SNAPSHOT_COMPARE" envDefault:"exact"`
	Hotkey                string        `env:"HOTKEY" envDefault:"Ctrl+Alt+T"`
	EnableFileLogging     bool          `env:"ENABLE_FILE_LOGGING"`
	MetricsAddr           string        `env:"METRICS_ADDR"`
	CopyResult            bool          `env:"COPY_RESULT"`
	ManualWorkers         int           `env:"MANUAL_WORKERS"`
	VisionCredentialsFile string        `env:"VISION_CREDENTIALS_FILE"`
	GeminiAPIKey          string        `env:"GEMINI_API_KEY"`
	Dir                   string        `env:"CONFIG_DIR"`
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Load configuration from sources in priority order:
	// 1) explicit env file override
	// 2) .env in the application (executable) directory
	// 3) file named by CLIP_TRANSLATE_ENV
	// Values already present in the process environment are never overwritten.
	if envPath := resolveEnvPath(opts); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, &ConfigError{Field: "env", Err: err}
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.RunDeadlineSec <= 0 {
		cfg.RunDeadlineSec = defaultRunDeadlineSec
	}
	cfg.SnapshotCompare = resolveCompare(cfg.SnapshotCompare)
	cfg.TargetLanguage = strings.TrimSpace(cfg.TargetLanguage)
	cfg.GeminiAPIKey = strings.TrimSpace(cfg.GeminiAPIKey)

	dir, err := resolveDir(opts, cfg.Dir)
	if err != nil {
		return nil, err
	}
	cfg.Dir = dir

	return cfg, nil
}

// RunDeadline is the upper bound for one pipeline run.
func (c *Config) RunDeadline() time.Duration {
	return time.Duration(c.RunDeadlineSec) * time.Second
}

// SettingsPath is where the persisted credentials live.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Dir, settingsFileName)
}

func resolveEnvPath(opts LoadOptions) string {
	if override := strings.TrimSpace(opts.EnvFileOverride); override != "" {
		return override
	}

	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func resolveDir(opts LoadOptions, fromEnv string) (string, error) {
	if override := strings.TrimSpace(opts.DirOverride); override != "" {
		return override, nil
	}
	if dir := strings.TrimSpace(fromEnv); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", &ConfigError{Field: "dir", Err: fmt.Errorf("resolve user config dir: %w", err)}
	}
	return filepath.Join(base, AppName), nil
}

func resolveCompare(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "contain", CompareContain:
		return CompareContain
	default:
		return CompareExact
	}
}
