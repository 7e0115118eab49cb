// Package llm is a minimal client for the Anthropic Messages API with
// retry on rate limits and upstream errors.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mindclone/mindclone/internal/config"
)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	apiVersion       = "2023-06-01"
	maxAttempts      = 3
)

// ErrNotConfigured is returned when no API key is available. Callers can
// map it to a clearer failure than a generic upstream error.
var ErrNotConfigured = errors.New("anthropic API key not configured")

// retryBaseDelay is the first backoff step; shortened in tests.
var retryBaseDelay = time.Second

// Message is one turn in a conversation.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Client calls the Anthropic Messages API.
type Client struct {
	Model     string
	apiKey    string
	baseURL   string
	maxTokens int
	client    *http.Client
}

// NewClient creates a client, reading the API key from the environment
// variable named in the config.
func NewClient(cfg config.Chat) *Client {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Client{
		Model:     cfg.Model,
		apiKey:    os.Getenv(cfg.APIKeyEnv),
		baseURL:   anthropicBaseURL,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: 120 * time.Second},
	}
}

// IsConfigured reports whether an API key is set.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Complete sends the conversation and returns the assistant's reply.
// Rate limits and upstream errors are retried with exponential backoff;
// client errors fail immediately.
func (c *Client) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages to send")
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay * time.Duration(1<<(attempt-1))
			log.Printf("retrying anthropic request in %s (attempt %d of %d)",
				delay, attempt+1, maxAttempts)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		reply, retryable, err := c.post(ctx, system, messages)
		if err == nil {
			return reply, nil
		}
		if !retryable {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

func (c *Client) post(ctx context.Context, system string, messages []Message) (string, bool, error) {
	body := map[string]any{
		"model":      c.Model,
		"max_tokens": c.maxTokens,
		"messages":   messages,
	}
	if system != "" {
		body["system"] = system
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", false, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/messages", bytes.NewReader(data))
	if err != nil {
		return "", false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("anthropic API error: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", false, fmt.Errorf("decoding response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retryable, fmt.Errorf("anthropic API returned %d: %s",
			resp.StatusCode, result.Error.Message)
	}

	var parts []string
	for _, block := range result.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", false, fmt.Errorf("no text content in response")
	}
	return strings.Join(parts, "\n"), false, nil
}
