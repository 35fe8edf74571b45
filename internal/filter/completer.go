// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package filter runs the LLM relevance filter: bounded-concurrency model
// calls, structured decision parsing with fallback, and a full audit trail
// in the filtering tables.
package filter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// Completer abstracts the LLM vendor. Implementations must be safe for
// concurrent use and surface transient failures as errors so the retry
// wrapper can fire.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// backoffBase controls the base duration for completer retries. Tests
// override this to avoid real sleeps.
var backoffBase = 2 * time.Second

const backoffMax = 10 * time.Second

// callWithRetry invokes the completer with exponential backoff, bounded to
// [backoffBase, backoffMax] per wait.
func callWithRetry(ctx context.Context, c Completer, system, user string, maxRetries int) (string, error) {
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			if backoff > backoffMax {
				backoff = backoffMax
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		out, err := c.Complete(ctx, system, user)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

// chatAPIBase is the OpenAI-compatible chat completions endpoint. Declared
// as a var so tests can substitute an httptest server.
var chatAPIBase = "https://api.openai.com/v1/chat/completions"

// ChatCompleter calls an OpenAI-compatible chat completions API.
type ChatCompleter struct {
	APIKey          string
	Model           string
	MaxOutputTokens int
	Client          *http.Client
}

// NewChatCompleter builds a completer for the given model. maxOutputTokens
// zero selects 5000.
func NewChatCompleter(apiKey, model string, maxOutputTokens int) *ChatCompleter {
	if maxOutputTokens <= 0 {
		maxOutputTokens = 5000
	}
	return &ChatCompleter{
		APIKey:          apiKey,
		Model:           model,
		MaxOutputTokens: maxOutputTokens,
		Client:          &http.Client{Timeout: 60 * time.Second},
	}
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	MaxCompletionTokens int           `json:"max_completion_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one system+user exchange and returns the raw assistant
// text. Non-2xx statuses are errors so the retry wrapper can fire.
func (c *ChatCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxCompletionTokens: c.MaxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, chatAPIBase, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("chat API error %d: %s", resp.StatusCode, body)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
