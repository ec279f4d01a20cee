package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"clip-translate/config"
	"clip-translate/imaging"
)

const (
	visionURL       = "https://vision.googleapis.com/v1/images:annotate"
	visionScope     = "https://www.googleapis.com/auth/cloud-vision"
	featureText     = "TEXT_DETECTION"
	requestTimeout  = 45 * time.Second
	maxErrorPreview = 512
)

// Cloud Vision images:annotate structures
type annotateRequest struct {
	Requests []imageRequest `json:"requests"`
}

type imageRequest struct {
	Image        imageContent  `json:"image"`
	Features     []feature     `json:"features"`
	ImageContext *imageContext `json:"imageContext,omitempty"`
}

type imageContent struct {
	Content string `json:"content"`
}

type feature struct {
	Type string `json:"type"`
}

type imageContext struct {
	LanguageHints []string `json:"languageHints,omitempty"`
}

type annotateResponse struct {
	Responses []imageResponse `json:"responses"`
	Error     *apiStatus      `json:"error,omitempty"`
}

type imageResponse struct {
	TextAnnotations []textAnnotation `json:"textAnnotations"`
	Error           *apiStatus       `json:"error,omitempty"`
}

type textAnnotation struct {
	Locale      string `json:"locale,omitempty"`
	Description string `json:"description"`
}

type apiStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

type Option func(*VisionClient)

// WithEndpoint points the client at a different images:annotate URL.
func WithEndpoint(url string) Option {
	return func(c *VisionClient) { c.endpoint = url }
}

// WithLanguageHints passes BCP-47 hints to the detector.
func WithLanguageHints(hints ...string) Option {
	return func(c *VisionClient) { c.languageHints = hints }
}

// VisionClient calls the Google Cloud Vision TEXT_DETECTION feature.
type VisionClient struct {
	endpoint      string
	httpClient    *http.Client
	languageHints []string
}

// NewVisionClient uses httpClient as-is; it must attach credentials itself.
func NewVisionClient(httpClient *http.Client, opts ...Option) *VisionClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	c := &VisionClient{endpoint: visionURL, httpClient: httpClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewVisionClientFromFile authenticates with a service-account key file.
func NewVisionClientFromFile(credentialsPath string, opts ...Option) (*VisionClient, error) {
	if err := config.CheckCertificate(credentialsPath); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, &config.ConfigError{Field: "certificatePath", Err: err}
	}

	// The token source outlives any single request, so it gets a background context.
	ctx := context.Background()
	creds, err := google.CredentialsFromJSON(ctx, data, visionScope)
	if err != nil {
		return nil, &config.ConfigError{Field: "certificatePath", Err: fmt.Errorf("parse credentials %s: %w", credentialsPath, err)}
	}

	httpClient := oauth2.NewClient(ctx, creds.TokenSource)
	httpClient.Timeout = requestTimeout
	return NewVisionClient(httpClient, opts...), nil
}

// Recognize returns the first annotation, which the service fills with the
// whole-image transcription.
func (c *VisionClient) Recognize(ctx context.Context, normalized []byte) (Result, error) {
	imageID := imaging.Digest(normalized)
	fail := func(err error) (Result, error) {
		return Result{}, &RecognitionError{ImageID: imageID, Err: err}
	}

	if len(normalized) == 0 {
		return fail(fmt.Errorf("empty image buffer"))
	}

	req := imageRequest{
		Image:    imageContent{Content: base64.StdEncoding.EncodeToString(normalized)},
		Features: []feature{{Type: featureText}},
	}
	if len(c.languageHints) > 0 {
		req.ImageContext = &imageContext{LanguageHints: c.languageHints}
	}

	body, err := json.Marshal(annotateRequest{Requests: []imageRequest{req}})
	if err != nil {
		return fail(fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fail(fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fail(fmt.Errorf("API request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(fmt.Errorf("failed to read response: %w", err))
	}

	var parsed annotateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fail(fmt.Errorf("API returned status %d: %s", resp.StatusCode, preview(raw)))
		}
		return fail(fmt.Errorf("failed to decode response: %w", err))
	}
	if parsed.Error != nil {
		return fail(fmt.Errorf("API error: %s (code: %d)", parsed.Error.Message, parsed.Error.Code))
	}
	if resp.StatusCode != http.StatusOK {
		return fail(fmt.Errorf("API returned status %d", resp.StatusCode))
	}
	if len(parsed.Responses) == 0 {
		return fail(ErrNoText)
	}

	first := parsed.Responses[0]
	if first.Error != nil {
		return fail(fmt.Errorf("image error: %s (code: %d)", first.Error.Message, first.Error.Code))
	}
	if len(first.TextAnnotations) == 0 || strings.TrimSpace(first.TextAnnotations[0].Description) == "" {
		return fail(ErrNoText)
	}

	return Result{Text: first.TextAnnotations[0].Description, ImageID: imageID}, nil
}

func preview(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorPreview {
		return s[:maxErrorPreview] + "..."
	}
	return s
}
