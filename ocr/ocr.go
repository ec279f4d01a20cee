package ocr

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoText is returned when the service found no text in the image.
var ErrNoText = errors.New("no text annotations in response")

// Result is the whole-image transcription of one normalized buffer.
type Result struct {
	Text    string
	ImageID string
}

// Recognizer extracts the full text of a normalized image buffer.
type Recognizer interface {
	Recognize(ctx context.Context, normalized []byte) (Result, error)
}

// RecognitionError wraps transport failures, service errors and empty
// results from a text-detection call.
type RecognitionError struct {
	ImageID string
	Err     error
}

func (e *RecognitionError) Error() string {
	if e.ImageID == "" {
		return fmt.Sprintf("text recognition failed: %v", e.Err)
	}
	return fmt.Sprintf("text recognition failed for image %.12s: %v", e.ImageID, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, normalized []byte) (Result, error)

func (f RecognizerFunc) Recognize(ctx context.Context, normalized []byte) (Result, error) {
	return f(ctx, normalized)
}
