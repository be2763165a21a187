// Package tts provides the speech synthesis adapter for the Fish Audio API.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/companion-labs/voicerelay/internal/cache"
)

// ErrCreditsExhausted marks a 402 response: paid-tier exhaustion or an
// invalid credential.
var ErrCreditsExhausted = errors.New("tts: API key invalid or credits exhausted")

// HTTPError is any other non-200 response from the synthesis service.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("synthesis API error [%d]: %s", e.StatusCode, e.Body)
}

// Client is the Fish Audio TTS client. Synthesis failure is non-fatal to a
// turn: callers substitute a fallback artifact or omit the tts field.
type Client struct {
	baseURL    string
	apiKey     string
	voiceID    string
	model      string
	httpClient *http.Client
	cache      *cache.Cache
}

// NewClient creates a new synthesis client writing artifacts to the given
// cache.
func NewClient(baseURL, apiKey, voiceID, model string, timeout time.Duration, artifacts *cache.Cache) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		voiceID: voiceID,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cache: artifacts,
	}
}

type synthesisRequest struct {
	Text        string `json:"text"`
	Model       string `json:"model"`
	ReferenceID string `json:"reference_id,omitempty"`
}

// Synthesize sends text to the synthesis service, persists the returned audio
// to the cache, and returns the cached filename. An empty voiceID falls back
// to the configured default voice; an empty format defaults to mp3.
func (c *Client) Synthesize(ctx context.Context, text, voiceID, format string) (string, error) {
	if voiceID == "" {
		voiceID = c.voiceID
	}
	if format == "" {
		format = "mp3"
	}

	body, err := json.Marshal(&synthesisRequest{
		Text:        text,
		Model:       c.model,
		ReferenceID: voiceID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tts", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusPaymentRequired {
		return "", ErrCreditsExhausted
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read audio payload: %w", err)
	}

	filename, err := c.cache.Store("tts_", format, audio)
	if err != nil {
		return "", err
	}
	return filename, nil
}
