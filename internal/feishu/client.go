package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maine/youtube_digest/internal/formatter"
)

// DefaultBaseURL is the Feishu open platform root.
const DefaultBaseURL = "https://open.feishu.cn"

const usersPageSize = 50

// FeishuClient is the part of the open platform the senders and CLI need.
type FeishuClient interface {
	SendCard(ctx context.Context, userID string, card formatter.Card) error
	ListUsers(ctx context.Context) ([]User, error)
}

// Client talks to the open platform with app credentials.
// A tenant token is requested for every operation.
type Client struct {
	appID     string
	appSecret string
	baseURL   string
	client    *http.Client
}

var _ FeishuClient = (*Client)(nil)

// NewClient creates a client. Empty baseURL means DefaultBaseURL.
func NewClient(appID, appSecret, baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    httpClient,
	}
}

// TenantToken obtains a tenant_access_token for the app.
func (c *Client) TenantToken(ctx context.Context) (string, error) {
	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, "/open-apis/auth/v3/tenant_access_token/internal", "",
		tokenRequest{AppID: c.appID, AppSecret: c.appSecret}, &resp)
	if err != nil {
		return "", fmt.Errorf("get tenant token: %w", err)
	}
	if resp.TenantAccessToken == "" {
		return "", fmt.Errorf("get tenant token: empty token")
	}
	return resp.TenantAccessToken, nil
}

// SendCard sends an interactive card to one user by user_id.
func (c *Client) SendCard(ctx context.Context, userID string, card formatter.Card) error {
	if userID == "" {
		return fmt.Errorf("user id is empty")
	}

	token, err := c.TenantToken(ctx)
	if err != nil {
		return err
	}

	content, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("marshal card: %w", err)
	}

	var resp envelope
	err = c.do(ctx, http.MethodPost, "/open-apis/im/v1/messages?receive_id_type=user_id", token,
		messageRequest{ReceiveID: userID, MsgType: "interactive", Content: string(content)}, &resp)
	if err != nil {
		return fmt.Errorf("send card: %w", err)
	}
	return nil
}

// ListUsers returns the users visible to the app, following pagination.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	token, err := c.TenantToken(ctx)
	if err != nil {
		return nil, err
	}

	var users []User
	pageToken := ""
	for {
		params := url.Values{}
		params.Set("page_size", fmt.Sprintf("%d", usersPageSize))
		params.Set("user_id_type", "user_id")
		if pageToken != "" {
			params.Set("page_token", pageToken)
		}

		var resp usersResponse
		if err := c.do(ctx, http.MethodGet, "/open-apis/contact/v3/users?"+params.Encode(), token, nil, &resp); err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		users = append(users, resp.Data.Items...)

		if !resp.Data.HasMore || resp.Data.PageToken == "" {
			return users, nil
		}
		pageToken = resp.Data.PageToken
	}
}

// do sends a JSON request and decodes the reply into out, which must embed
// envelope. A non-zero code is returned as *APIError.
func (c *Client) do(ctx context.Context, method, path, token string, body any, out interface{ apiCode() (int, string) }) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{Status: resp.StatusCode, Msg: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decode response: %w", err)
	}

	if code, msg := out.apiCode(); code != 0 || resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Code: code, Msg: msg}
	}
	return nil
}

func (e *envelope) apiCode() (int, string) {
	return e.Code, e.Msg
}
