// Package llm provides the chat completion adapter for the Anthropic
// Messages API.
package llm

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
)

const (
	maxTokens   = 800
	temperature = 0.7
)

// ErrMissingCredential is returned before any network call when no API key
// is configured.
var ErrMissingCredential = errors.New("llm: missing API key")

// HTTPError is a non-success response from the completion service.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("completion API error [%d]: %s", e.StatusCode, e.Body)
}

// TransportError is any failure to reach the completion service or decode
// its response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("completion request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client is the Anthropic Messages API client.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	version    string
	httpClient *http.Client
}

// NewClient creates a new completion client.
func NewClient(baseURL, apiKey, model, version string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		version: version,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

// Complete sends a single-turn chat request and returns the first text
// segment of the response content, or "" if the response carries none.
// One attempt per call; the caller decides on fallback text.
func (c *Client) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingCredential
	}

	body, err := json.Marshal(&messagesRequest{
		Model:       c.model,
		System:      systemPrompt,
		Messages:    []chatMessage{{Role: "user", Content: userText}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", &TransportError{Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", &TransportError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", c.version)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result messagesResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &TransportError{Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	if len(result.Content) == 0 {
		return "", nil
	}
	return result.Content[0].Text, nil
}
