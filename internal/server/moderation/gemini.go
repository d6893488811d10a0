package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avasiljevs/pulseboard/internal/logging"
)

const defaultBaseEndpoint = "https://generativelanguage.googleapis.com"

// The classifier is instructed to answer with exactly one of two labels.
// Single common words are appropriate by policy so short benign input is not
// over-flagged; hate speech is inappropriate.
const promptFormat = `You only read userdata and return "appropriate" or "inappropriate". Single words like "hi", "click", "mother", "father" and most other single words should be considered appropriate. Hate speech is inappropriate. For: %s`

const verdictInappropriate = "inappropriate"

const safetyFinishReason = "SAFETY"

// GeminiClassifier calls the Google Generative Language REST API.
type GeminiClassifier struct {
	apiKey       string
	model        string
	baseEndpoint string
	httpClient   *http.Client
	logger       logging.Logger
}

// NewGeminiClassifier creates a classifier for the given model. If
// baseEndpoint is empty, the public Google endpoint is used. The timeout
// bounds a single classification call; an expired call fails open.
func NewGeminiClassifier(apiKey, model, baseEndpoint string, timeout time.Duration, logger logging.Logger) *GeminiClassifier {
	if baseEndpoint == "" {
		baseEndpoint = defaultBaseEndpoint
	}
	return &GeminiClassifier{
		apiKey:       apiKey,
		model:        model,
		baseEndpoint: strings.TrimSuffix(baseEndpoint, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With("module", "moderation"),
	}
}

type generateContentRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Classify asks the external classifier about text and reports whether it is
// inappropriate. Both verdicts and failure fallbacks are logged.
func (c *GeminiClassifier) Classify(ctx context.Context, text string) bool {
	if c.apiKey == "" {
		c.logger.Error(ctx, "classifier API key is missing, failing open")
		return false
	}

	verdict, err := c.generate(ctx, fmt.Sprintf(promptFormat, text))
	if err != nil {
		if safetyBlocked(err) {
			c.logger.Warn(ctx, "classifier safety block, flagging content")
			return true
		}
		c.logger.Error(ctx, "classifier call failed, failing open", "error", err)
		return false
	}

	flagged := strings.ToLower(strings.TrimSpace(verdict)) == verdictInappropriate
	c.logger.Info(ctx, "classifier verdict", "flagged", flagged)
	return flagged
}

// errSafetyBlock marks responses the classifier refused to answer on safety
// grounds.
type errSafetyBlock struct {
	reason string
}

func (e *errSafetyBlock) Error() string {
	return fmt.Sprintf("candidate was blocked due to %s", e.reason)
}

func safetyBlocked(err error) bool {
	_, ok := err.(*errSafetyBlock)
	return ok
}

func (c *GeminiClassifier) generate(ctx context.Context, prompt string) (string, error) {
	body := generateContentRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseEndpoint, c.model, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result generateContentResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if result.PromptFeedback.BlockReason != "" {
		return "", &errSafetyBlock{reason: result.PromptFeedback.BlockReason}
	}
	if len(result.Candidates) == 0 {
		return "", fmt.Errorf("empty response: no candidates")
	}
	if result.Candidates[0].FinishReason == safetyFinishReason {
		return "", &errSafetyBlock{reason: safetyFinishReason}
	}
	if len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response: no content parts")
	}

	return result.Candidates[0].Content.Parts[0].Text, nil
}
