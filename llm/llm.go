package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrEmptySource     = errors.New("source text is empty")
	ErrEmptyGeneration = errors.New("model returned no text")
)

// Request is one translation job. The target language is captured when the
// request is built and never changes afterwards.
type Request struct {
	SourceText     string
	TargetLanguage string
}

// Translator turns Request.SourceText into Request.TargetLanguage.
type Translator interface {
	Translate(ctx context.Context, req Request) (string, error)
}

// TranslationError wraps transport failures, refusals and empty generations.
type TranslationError struct {
	TargetLanguage string
	Err            error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translation to %q failed: %v", e.TargetLanguage, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

// BuildPrompt is the instruction sent to the model.
func BuildPrompt(targetLanguage, text string) string {
	return fmt.Sprintf("Translate the following text to %s:\n\n%s", targetLanguage, text)
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(ctx context.Context, req Request) (string, error)

func (f TranslatorFunc) Translate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
