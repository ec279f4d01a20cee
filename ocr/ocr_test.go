package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clip-translate/config"
)

func visionServer(t *testing.T, status int, body string, check func(annotateRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req annotateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if check != nil {
			check(req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRecognizeReturnsFirstAnnotation(t *testing.T) {
	img := []byte("normalized-png")
	srv := visionServer(t, http.StatusOK, `{"responses":[{"textAnnotations":[
		{"locale":"en","description":"Hello\nWorld"},
		{"description":"Hello"},
		{"description":"World"}]}]}`,
		func(req annotateRequest) {
			require.Len(t, req.Requests, 1)
			assert.Equal(t, base64.StdEncoding.EncodeToString(img), req.Requests[0].Image.Content)
			require.Len(t, req.Requests[0].Features, 1)
			assert.Equal(t, "TEXT_DETECTION", req.Requests[0].Features[0].Type)
			assert.Nil(t, req.Requests[0].ImageContext)
		})

	c := NewVisionClient(srv.Client(), WithEndpoint(srv.URL))
	res, err := c.Recognize(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, "Hello\nWorld", res.Text)
	assert.Len(t, res.ImageID, 64)
}

func TestRecognizeSendsLanguageHints(t *testing.T) {
	srv := visionServer(t, http.StatusOK, `{"responses":[{"textAnnotations":[{"description":"こんにちは"}]}]}`,
		func(req annotateRequest) {
			require.NotNil(t, req.Requests[0].ImageContext)
			assert.Equal(t, []string{"ja"}, req.Requests[0].ImageContext.LanguageHints)
		})

	c := NewVisionClient(srv.Client(), WithEndpoint(srv.URL), WithLanguageHints("ja"))
	_, err := c.Recognize(context.Background(), []byte("img"))
	require.NoError(t, err)
}

func TestRecognizeErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		noText bool
	}{
		{name: "no annotations", status: http.StatusOK, body: `{"responses":[{}]}`, noText: true},
		{name: "no responses", status: http.StatusOK, body: `{"responses":[]}`, noText: true},
		{name: "blank description", status: http.StatusOK, body: `{"responses":[{"textAnnotations":[{"description":"  "}]}]}`, noText: true},
		{name: "image error", status: http.StatusOK, body: `{"responses":[{"error":{"code":3,"message":"Bad image data."}}]}`},
		{name: "api error", status: http.StatusForbidden, body: `{"error":{"code":403,"message":"billing disabled","status":"PERMISSION_DENIED"}}`},
		{name: "non-json failure", status: http.StatusBadGateway, body: `<html>bad gateway</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := visionServer(t, tt.status, tt.body, nil)
			c := NewVisionClient(srv.Client(), WithEndpoint(srv.URL))

			_, err := c.Recognize(context.Background(), []byte("img"))
			var recErr *RecognitionError
			require.True(t, errors.As(err, &recErr), "expected RecognitionError, got %v", err)
			assert.NotEmpty(t, recErr.ImageID)
			assert.Equal(t, tt.noText, errors.Is(err, ErrNoText))
		})
	}
}

func TestRecognizeTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewVisionClient(nil, WithEndpoint(url))
	_, err := c.Recognize(context.Background(), []byte("img"))
	var recErr *RecognitionError
	assert.True(t, errors.As(err, &recErr))
}

func TestRecognizeHonoursCancellation(t *testing.T) {
	srv := visionServer(t, http.StatusOK, `{"responses":[{"textAnnotations":[{"description":"x"}]}]}`, nil)
	c := NewVisionClient(srv.Client(), WithEndpoint(srv.URL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Recognize(ctx, []byte("img"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecognizeEmptyBuffer(t *testing.T) {
	c := NewVisionClient(nil, WithEndpoint("http://127.0.0.1:0"))
	_, err := c.Recognize(context.Background(), nil)
	var recErr *RecognitionError
	assert.True(t, errors.As(err, &recErr))
}

func TestNewVisionClientFromFileRejectsBadCredentials(t *testing.T) {
	var cfgErr *config.ConfigError

	_, err := NewVisionClientFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.As(err, &cfgErr), "missing file: %v", err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
	_, err = NewVisionClientFromFile(bad)
	assert.True(t, errors.As(err, &cfgErr), "malformed file: %v", err)

	_, err = NewVisionClientFromFile("")
	assert.True(t, config.IsNotConfigured(err))
}
