package logutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRedactKey(t *testing.T) {
	if got := RedactKey("short"); got != "********" {
		t.Errorf("expected full mask for short key, got %q", got)
	}
	if got := RedactKey("AIzaSyABCDEFGHIJ1234"); got != "AIza...1234" {
		t.Errorf("unexpected redaction: %q", got)
	}
}

func TestSanitizeForLogging(t *testing.T) {
	got := SanitizeForLogging("line1\nline2\tx\x01")
	if got != `line1\nline2\tx?` {
		t.Errorf("unexpected sanitized text: %q", got)
	}

	long := strings.Repeat("字", 150)
	got = SanitizeForLogging(long)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected truncation marker, got %q", got)
	}
	if n := len([]rune(strings.TrimSuffix(got, "..."))); n != 100 {
		t.Errorf("expected 100 runes kept, got %d", n)
	}
}

func TestRotatingWriterRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	w, err := newRotatingWriter(path, 16)
	if err != nil {
		t.Fatalf("newRotatingWriter: %v", err)
	}
	defer w.Close()

	if _, err := w.Write([]byte("0123456789")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if _, err := w.Write([]byte("abcdefghij")); err != nil {
		t.Fatalf("second write: %v", err)
	}

	archived, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("expected archive after rotation: %v", err)
	}
	if string(archived) != "0123456789" {
		t.Errorf("unexpected archive content %q", archived)
	}
	current, _ := os.ReadFile(path)
	if string(current) != "abcdefghij" {
		t.Errorf("unexpected current content %q", current)
	}
}
