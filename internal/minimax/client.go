package minimax

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
	// DefaultBaseURL is the Anthropic-compatible MiniMax endpoint.
	DefaultBaseURL = "https://api.minimaxi.com/anthropic"
	// DefaultModel is used when the config leaves the model empty.
	DefaultModel = "MiniMax-M2.1"

	anthropicVersion = "2023-06-01"
	defaultMaxTokens = 1024
	// RankMaxTokens is enough for N short "index|reason" lines.
	RankMaxTokens = 500
)

// ErrEmptyResponse is returned when the reply has no text block.
var ErrEmptyResponse = errors.New("minimax response has no text")

// Client calls the Messages API of an Anthropic-compatible endpoint.
// It implements ranking.Oracle and summary.Generator.
type Client struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
}

// NewClient creates a client. Empty baseURL and model mean the defaults.
func NewClient(apiKey, baseURL, model string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		maxTokens: defaultMaxTokens,
		client:    httpClient,
	}
}

// Name implements ranking.Oracle.
func (c *Client) Name() string {
	return "minimax"
}

// Rank implements ranking.Oracle.
func (c *Client) Rank(ctx context.Context, prompt string) (string, error) {
	return c.Complete(ctx, prompt, RankMaxTokens)
}

// Generate implements summary.Generator.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.Complete(ctx, prompt, c.maxTokens)
}

// Complete sends a single user message and returns the last text block of the reply.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("minimax request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var out messagesResponse
	if err := json.Unmarshal(data, &out); err != nil {
		if resp.StatusCode >= 400 {
			return "", fmt.Errorf("minimax api status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Type == "error" || out.Error != nil {
		msg := "unknown error"
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("minimax api error (status %d): %s", resp.StatusCode, msg)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("minimax api status %d", resp.StatusCode)
	}

	// Reasoning models put thinking blocks first; the answer is the last text block.
	for i := len(out.Content) - 1; i >= 0; i-- {
		if out.Content[i].Type == "text" {
			return strings.TrimSpace(out.Content[i].Text), nil
		}
	}
	return "", ErrEmptyResponse
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type messagesResponse struct {
	Type    string         `json:"type"`
	Content []contentBlock `json:"content"`
	Error   *apiError      `json:"error,omitempty"`
}
