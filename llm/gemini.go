package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clip-translate/config"
)

const (
	geminiBaseURL  = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultModel   = "gemini-1.5-flash"
	requestTimeout = 60 * time.Second
)

// Harm categories and the most permissive threshold.
const (
	HarmCategoryHarassment       = "HARM_CATEGORY_HARASSMENT"
	HarmCategoryHateSpeech       = "HARM_CATEGORY_HATE_SPEECH"
	HarmCategorySexuallyExplicit = "HARM_CATEGORY_SEXUALLY_EXPLICIT"
	HarmCategoryDangerousContent = "HARM_CATEGORY_DANGEROUS_CONTENT"
	BlockNone                    = "BLOCK_NONE"
)

// Gemini generateContent structures
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type Part struct {
	Text string `json:"text,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type GenerateRequest struct {
	Contents       []Content       `json:"contents"`
	SafetySettings []SafetySetting `json:"safetySettings,omitempty"`
}

type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type PromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type GenerateResponse struct {
	Candidates     []Candidate     `json:"candidates"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
	Error          *APIError       `json:"error,omitempty"`
}

type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// SafetySettings disables content blocking for every harm category so the
// model never refuses a translation on content grounds.
func SafetySettings() []SafetySetting {
	return []SafetySetting{
		{Category: HarmCategoryHarassment, Threshold: BlockNone},
		{Category: HarmCategoryHateSpeech, Threshold: BlockNone},
		{Category: HarmCategorySexuallyExplicit, Threshold: BlockNone},
		{Category: HarmCategoryDangerousContent, Threshold: BlockNone},
	}
}

type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiClient calls the Gemini generateContent endpoint.
type GeminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewGeminiClient(cfg Config) (*GeminiClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, &config.ConfigError{Field: "apiKey", Err: config.ErrNotConfigured}
	}
	model := strings.TrimPrefix(strings.TrimSpace(cfg.Model), "models/")
	if model == "" {
		model = DefaultModel
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &GeminiClient{apiKey: apiKey, model: model, baseURL: baseURL, httpClient: httpClient}, nil
}

func (c *GeminiClient) Model() string { return c.model }

// Translate returns the generated text verbatim.
func (c *GeminiClient) Translate(ctx context.Context, req Request) (string, error) {
	fail := func(err error) (string, error) {
		return "", &TranslationError{TargetLanguage: req.TargetLanguage, Err: err}
	}
	if strings.TrimSpace(req.SourceText) == "" {
		return fail(ErrEmptySource)
	}

	request := GenerateRequest{
		Contents: []Content{{
			Role:  "user",
			Parts: []Part{{Text: BuildPrompt(req.TargetLanguage, req.SourceText)}},
		}},
		SafetySettings: SafetySettings(),
	}

	response, err := c.makeAPIRequest(ctx, request)
	if err != nil {
		return fail(err)
	}

	if response.PromptFeedback != nil && response.PromptFeedback.BlockReason != "" {
		return fail(fmt.Errorf("prompt blocked: %s", response.PromptFeedback.BlockReason))
	}
	if len(response.Candidates) == 0 {
		return fail(ErrEmptyGeneration)
	}

	var b strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		if reason := response.Candidates[0].FinishReason; reason != "" && reason != "STOP" {
			return fail(fmt.Errorf("%w (finish reason: %s)", ErrEmptyGeneration, reason))
		}
		return fail(ErrEmptyGeneration)
	}
	return text, nil
}

// Ping checks that the key can see the configured model.
func (c *GeminiClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+c.model, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *GeminiClient) makeAPIRequest(ctx context.Context, request GenerateRequest) (*GenerateResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	var response GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if response.Error != nil {
		return nil, fmt.Errorf("API error: %s (status: %s, code: %d)", response.Error.Message, response.Error.Status, response.Error.Code)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	return &response, nil
}
