package config

import (
	"errors"
	"fmt"
)

// ErrNotConfigured marks a credential that has never been supplied.
var ErrNotConfigured = errors.New("not configured")

// ConfigError reports missing or invalid persisted credentials and runtime
// configuration. Field names the offending setting.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsNotConfigured reports whether err means a credential is absent, so the
// caller should start a prompt flow instead of reporting a failure.
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}

// MissingFields lists the Field of every not-configured ConfigError in err,
// including those joined with errors.Join, in order and without duplicates.
func MissingFields(err error) []string {
	var fields []string
	seen := map[string]bool{}
	var walk func(error)
	walk = func(e error) {
		switch v := e.(type) {
		case nil:
		case *ConfigError:
			if errors.Is(v.Err, ErrNotConfigured) && !seen[v.Field] {
				seen[v.Field] = true
				fields = append(fields, v.Field)
			}
		case interface{ Unwrap() []error }:
			for _, inner := range v.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(v.Unwrap())
		}
	}
	walk(err)
	return fields
}
