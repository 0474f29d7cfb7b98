// Package rewrite refreshes stale lecture descriptions through an
// OpenAI-compatible chat completion endpoint.
package rewrite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const requestTimeout = 60 * time.Second

// Rewriter produces a replacement description for a lecture.
type Rewriter interface {
	Rewrite(ctx context.Context, title, description string) (string, error)
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	maxChars   int
}

func NewClient(baseURL, apiKey, model string, maxChars int) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		maxChars:   maxChars,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) Rewrite(ctx context.Context, title, description string) (string, error) {
	prompt := fmt.Sprintf(
		"Rewrite the following description of the lecture %q in at most %d characters. "+
			"Keep the meaning, improve the wording, and answer with the rewritten text only.\n\n%s",
		title, c.maxChars, description)

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encoding rewrite request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building rewrite request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling rewrite API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("rewrite API returned %d: %s", resp.StatusCode, snippet)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding rewrite response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("rewrite API returned no choices")
	}

	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("rewrite API returned empty text")
	}
	return text, nil
}
