package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/maine/youtube_digest/internal/formatter"
	"github.com/maine/youtube_digest/internal/logging"
	"github.com/maine/youtube_digest/internal/video"
)

const (
	retryAttempts = 3
	retryDelay    = 2 * time.Second
	maxRetryDelay = 10 * time.Second
)

// DirectSender implements app.Sender by sending the card to one user through the app bot.
type DirectSender struct {
	client     FeishuClient
	userID     string
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewDirectSender creates a sender for userID.
func NewDirectSender(client FeishuClient, userID string, logger *slog.Logger) *DirectSender {
	return &DirectSender{
		client:     client,
		userID:     userID,
		retryDelay: retryDelay,
		logger:     logging.OrDefault(logger),
	}
}

// Name implements app.Sender.
func (s *DirectSender) Name() string {
	return "feishu_direct"
}

// Send implements app.Sender.
func (s *DirectSender) Send(ctx context.Context, d video.Digest) error {
	if d.Empty() {
		return nil
	}
	card := formatter.BuildCard(d)

	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			delay := s.retryDelay * time.Duration(attempt)
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := s.client.SendCard(ctx, s.userID, card)
		if err == nil {
			s.logger.Info("digest sent to feishu user", "entries", len(d.Entries))
			return nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return err
		}
		s.logger.Warn("feishu send failed, retrying", "attempt", attempt+1, "error", err)
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isRetryableError treats transport errors and throttling as temporary.
// Other API errors (bad user id, missing permission) will not go away.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}

// WebhookSender implements app.Sender by posting the card to a group bot webhook.
type WebhookSender struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewWebhookSender creates a sender for the webhook url.
func NewWebhookSender(webhookURL string, httpClient *http.Client, logger *slog.Logger) *WebhookSender {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookSender{
		url:    webhookURL,
		client: httpClient,
		logger: logging.OrDefault(logger),
	}
}

// Name implements app.Sender.
func (s *WebhookSender) Name() string {
	return "feishu_webhook"
}

// Send implements app.Sender.
func (s *WebhookSender) Send(ctx context.Context, d video.Digest) error {
	if d.Empty() {
		return nil
	}

	data, err := json.Marshal(webhookRequest{MsgType: "interactive", Card: formatter.BuildCard(d)})
	if err != nil {
		return fmt.Errorf("marshal webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	var out webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return &APIError{Status: resp.StatusCode, Msg: "undecodable webhook response"}
	}
	if resp.StatusCode >= 400 || out.StatusCode != 0 || out.Code != 0 {
		code, msg := out.Code, out.Msg
		if code == 0 {
			code, msg = out.StatusCode, out.StatusMessage
		}
		return &APIError{Status: resp.StatusCode, Code: code, Msg: msg}
	}

	s.logger.Info("digest sent to feishu webhook", "entries", len(d.Entries))
	return nil
}

// LogSender implements app.Sender by printing the digest as plain text.
// It stands in for the direct sender when no app credentials are set.
type LogSender struct {
	w io.Writer
}

// NewLogSender creates a sender writing to w; nil means stdout.
func NewLogSender(w io.Writer) *LogSender {
	if w == nil {
		w = os.Stdout
	}
	return &LogSender{w: w}
}

// Name implements app.Sender.
func (s *LogSender) Name() string {
	return "log"
}

// Send implements app.Sender.
func (s *LogSender) Send(ctx context.Context, d video.Digest) error {
	if d.Empty() {
		return nil
	}
	_, err := io.WriteString(s.w, formatter.PlainText(d))
	return err
}
