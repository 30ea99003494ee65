package feishu

import "fmt"

// codeRateLimited is the open platform code for "request trigger frequency limit".
const codeRateLimited = 99991400

// APIError is a non-zero code from the open platform or a webhook.
type APIError struct {
	Status int
	Code   int
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("feishu api error: status %d, code %d: %s", e.Status, e.Code, e.Msg)
}

// Temporary reports whether the call may succeed when repeated.
func (e *APIError) Temporary() bool {
	return e.Status >= 500 || e.Status == 429 || e.Code == codeRateLimited
}

// User is one entry of the contact directory.
type User struct {
	UserID string `json:"user_id"`
	OpenID string `json:"open_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type tokenRequest struct {
	AppID     string `json:"app_id"`
	AppSecret string `json:"app_secret"`
}

type tokenResponse struct {
	envelope
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}

type messageRequest struct {
	ReceiveID string `json:"receive_id"`
	MsgType   string `json:"msg_type"`
	Content   string `json:"content"`
}

type usersResponse struct {
	envelope
	Data struct {
		Items     []User `json:"items"`
		HasMore   bool   `json:"has_more"`
		PageToken string `json:"page_token"`
	} `json:"data"`
}

type webhookRequest struct {
	MsgType string `json:"msg_type"`
	Card    any    `json:"card"`
}

// webhookResponse covers both the legacy {StatusCode} and the current {code} shapes.
type webhookResponse struct {
	StatusCode    int    `json:"StatusCode"`
	StatusMessage string `json:"StatusMessage"`
	Code          int    `json:"code"`
	Msg           string `json:"msg"`
}
