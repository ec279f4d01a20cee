package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const settingsFileName = "config.json"

// Settings is the persisted credential state. The camelCase keys match the
// existing config.json layout.
type Settings struct {
	CertificatePath string `json:"certificatePath,omitempty"`
	APIKey          string `json:"apiKey,omitempty"`
}

// SettingsStore reads and writes Settings as a JSON file. Writes merge with
// what is on disk so unrelated keys survive.
type SettingsStore struct {
	mu   sync.Mutex
	path string
}

func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{path: path}
}

func (s *SettingsStore) Path() string { return s.path }

// Load returns empty Settings when the file does not exist yet.
func (s *SettingsStore) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, settings, err := s.readLocked()
	return settings, err
}

func (s *SettingsStore) SaveCertificatePath(path string) error {
	if err := CheckCertificate(path); err != nil {
		return err
	}
	return s.update("certificatePath", path)
}

func (s *SettingsStore) SaveAPIKey(apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return &ConfigError{Field: "apiKey", Err: ErrNotConfigured}
	}
	return s.update("apiKey", apiKey)
}

func (s *SettingsStore) update(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, _, err := s.readLocked()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return &ConfigError{Field: key, Err: err}
	}
	raw[key] = encoded

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return &ConfigError{Field: key, Err: err}
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return &ConfigError{Field: key, Err: fmt.Errorf("write %s: %w", s.path, err)}
	}
	return nil
}

func (s *SettingsStore) readLocked() (map[string]json.RawMessage, Settings, error) {
	raw := map[string]json.RawMessage{}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return raw, Settings{}, nil
	}
	if err != nil {
		return nil, Settings{}, &ConfigError{Field: "settings", Err: err}
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return raw, Settings{}, nil
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, Settings{}, &ConfigError{Field: "settings", Err: fmt.Errorf("parse %s: %w", s.path, err)}
	}
	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, Settings{}, &ConfigError{Field: "settings", Err: fmt.Errorf("parse %s: %w", s.path, err)}
	}
	return raw, settings, nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// CheckCertificate verifies that a service-account key file exists.
func CheckCertificate(path string) error {
	if strings.TrimSpace(path) == "" {
		return &ConfigError{Field: "certificatePath", Err: ErrNotConfigured}
	}
	st, err := os.Stat(path)
	if err != nil {
		return &ConfigError{Field: "certificatePath", Err: err}
	}
	if st.IsDir() {
		return &ConfigError{Field: "certificatePath", Err: fmt.Errorf("%s is a directory", path)}
	}
	return nil
}

// Credentials merges persisted settings with env fallbacks. Values entered
// through the prompts win over the environment.
func Credentials(cfg *Config, s Settings) Settings {
	out := s
	if out.CertificatePath == "" && cfg != nil {
		out.CertificatePath = cfg.VisionCredentialsFile
	}
	if out.APIKey == "" && cfg != nil {
		out.APIKey = cfg.GeminiAPIKey
	}
	return out
}
