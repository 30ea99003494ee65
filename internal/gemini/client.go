package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/maine/youtube_digest/internal/logging"
)

// ErrQuotaExceeded is returned when the daily quota is used up. It is not retried.
var ErrQuotaExceeded = errors.New("gemini quota exceeded")

// GeminiClient is the part of the Gemini API the rest of the module needs.
type GeminiClient interface {
	GenerateText(ctx context.Context, model string, prompt string) (string, error)
}

type generateFunc func(ctx context.Context, model string, prompt string) (string, error)

// Client wraps the official SDK and retries transient failures.
type Client struct {
	generate generateFunc
	opts     Options
	logger   *slog.Logger
}

var _ GeminiClient = (*Client)(nil)

// Options tunes retries. Zero values mean defaults.
type Options struct {
	// MaxAttempts includes the first call; <= 0 means 3.
	MaxAttempts int
	// BaseDelay grows linearly per attempt; <= 0 means 2s.
	BaseDelay time.Duration
	// RateLimitDelay is used after a 429 that is not a daily quota; <= 0 means 10s.
	RateLimitDelay time.Duration
	Logger         *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 2 * time.Second
	}
	if o.RateLimitDelay <= 0 {
		o.RateLimitDelay = 10 * time.Second
	}
	return o
}

// NewClient creates a Gemini client for apiKey.
func NewClient(ctx context.Context, apiKey string, opts Options) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	sdk, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newClient(func(ctx context.Context, model string, prompt string) (string, error) {
		result, err := sdk.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
		if err != nil {
			return "", err
		}
		text, err := result.Text()
		if err != nil {
			return "", fmt.Errorf("get text from result: %w", err)
		}
		return text, nil
	}, opts), nil
}

func newClient(fn generateFunc, opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		generate: fn,
		opts:     opts,
		logger:   logging.OrDefault(opts.Logger),
	}
}

// GenerateText sends prompt to model and returns the text answer.
// Rate limits and 5xx errors are retried until MaxAttempts or ctx expires.
func (c *Client) GenerateText(ctx context.Context, model string, prompt string) (string, error) {
	var lastErr error
	delay := time.Duration(0)

	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		text, err := c.generate(ctx, model, prompt)
		if err == nil {
			return text, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("generate content: %w", ctxErr)
		}
		lastErr = err

		switch classify(err.Error()) {
		case kindDailyQuota:
			c.logger.Error("gemini daily quota exceeded", "model", model, "error", err)
			return "", fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		case kindRateLimit:
			delay = c.opts.RateLimitDelay
		case kindTemporary:
			delay = c.opts.BaseDelay * time.Duration(attempt)
		default:
			return "", fmt.Errorf("generate content: %w", err)
		}

		c.logger.Warn("gemini request failed, retrying",
			"model", model,
			"attempt", attempt,
			"max_attempts", c.opts.MaxAttempts,
			"delay", delay,
			"error", err)
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

type errorKind int

const (
	kindPermanent errorKind = iota
	kindDailyQuota
	kindRateLimit
	kindTemporary
)

// classify sorts SDK errors by their text; the SDK does not expose typed codes.
func classify(errStr string) errorKind {
	s := strings.ToLower(errStr)

	is429 := strings.Contains(s, "429") ||
		strings.Contains(s, "too many requests") ||
		strings.Contains(s, "resource exhausted") ||
		strings.Contains(s, "resource_exhausted") ||
		strings.Contains(s, "rate limit")

	switch {
	case is429 && (strings.Contains(s, "per day") || strings.Contains(s, "perday") ||
		strings.Contains(s, "free_tier_requests")):
		return kindDailyQuota
	case is429:
		return kindRateLimit
	case strings.Contains(s, "500") ||
		strings.Contains(s, "502") ||
		strings.Contains(s, "503") ||
		strings.Contains(s, "504") ||
		strings.Contains(s, "unavailable") ||
		strings.Contains(s, "overloaded") ||
		strings.Contains(s, "internal server error") ||
		strings.Contains(s, "bad gateway") ||
		strings.Contains(s, "gateway timeout"):
		return kindTemporary
	default:
		return kindPermanent
	}
}
