package authapi

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

	"farmdb/internal/config"
)

const basePath = "/v1/auth"

// Client talks to the FarmDB server's /v1/auth REST contract. It holds no
// session state; tokens are passed in per call.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates an auth API client for the given server base URL
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: config.HTTPTimeout},
	}
}

// NewWithHTTPClient allows injecting a custom *http.Client (tests)
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.HTTPTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Register creates a new account and returns its first token pair
func (c *Client) Register(ctx context.Context, email, password, displayName string) (TokenPair, error) {
	body := map[string]string{"email": email, "password": password}
	if displayName != "" {
		body["display_name"] = displayName
	}
	var pair TokenPair
	err := c.do(ctx, http.MethodPost, "/register", "", body, &pair)
	return pair, err
}

// LoginPassword exchanges email+password for a token pair
func (c *Client) LoginPassword(ctx context.Context, email, password string) (TokenPair, error) {
	var pair TokenPair
	err := c.do(ctx, http.MethodPost, "/login/password", "", map[string]string{
		"email":    email,
		"password": password,
	}, &pair)
	return pair, err
}

// PasskeyLoginOptions requests authentication options, optionally scoped to
// one account's credentials by email
func (c *Client) PasskeyLoginOptions(ctx context.Context, email string) (AuthenticationOptions, error) {
	body := map[string]string{}
	if email != "" {
		body["email"] = email
	}
	var resp struct {
		Options AuthenticationOptions `json:"options"`
	}
	err := c.do(ctx, http.MethodPost, "/login/passkey/options", "", body, &resp)
	return resp.Options, err
}

// PasskeyLoginVerify submits a ceremony response (with its _challenge_key)
// and returns a token pair
func (c *Client) PasskeyLoginVerify(ctx context.Context, credential json.RawMessage) (TokenPair, error) {
	var pair TokenPair
	err := c.do(ctx, http.MethodPost, "/login/passkey/verify", "", map[string]json.RawMessage{
		"credential": credential,
	}, &pair)
	return pair, err
}

// PasskeyRegisterOptions requests registration options for the current user
func (c *Client) PasskeyRegisterOptions(ctx context.Context, accessToken string) (RegistrationOptions, error) {
	var resp struct {
		Options RegistrationOptions `json:"options"`
	}
	err := c.do(ctx, http.MethodPost, "/passkeys/register/options", accessToken, struct{}{}, &resp)
	return resp.Options, err
}

// PasskeyRegisterVerify submits a registration ceremony response and returns
// the stored record
func (c *Client) PasskeyRegisterVerify(ctx context.Context, accessToken string, credential json.RawMessage, friendlyName string) (PasskeyRecord, error) {
	body := map[string]interface{}{"credential": credential}
	if friendlyName != "" {
		body["friendly_name"] = friendlyName
	}
	var record PasskeyRecord
	err := c.do(ctx, http.MethodPost, "/passkeys/register/verify", accessToken, body, &record)
	return record, err
}

// ListPasskeys returns the current user's passkeys
func (c *Client) ListPasskeys(ctx context.Context, accessToken string) ([]PasskeyRecord, error) {
	var resp struct {
		Passkeys []PasskeyRecord `json:"passkeys"`
	}
	if err := c.do(ctx, http.MethodGet, "/passkeys", accessToken, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Passkeys, nil
}

// DeletePasskey removes a passkey by id
func (c *Client) DeletePasskey(ctx context.Context, accessToken, id string) error {
	return c.do(ctx, http.MethodDelete, "/passkeys/"+url.PathEscape(id), accessToken, nil, nil)
}

// Refresh exchanges a refresh token for a fresh token pair
func (c *Client) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	var pair TokenPair
	err := c.do(ctx, http.MethodPost, "/refresh", "", map[string]string{
		"refresh_token": refreshToken,
	}, &pair)
	return pair, err
}

// Logout revokes a refresh token server-side
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.do(ctx, http.MethodPost, "/logout", "", map[string]string{
		"refresh_token": refreshToken,
	}, nil)
}

// Me returns the authenticated user
func (c *Client) Me(ctx context.Context, accessToken string) (User, error) {
	var user User
	err := c.do(ctx, http.MethodGet, "/me", accessToken, nil, &user)
	return user, err
}

func (c *Client) do(ctx context.Context, method, path, accessToken string, reqBody, out interface{}) error {
	var payload io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+basePath+path, payload)
	if err != nil {
		return err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Detail: errorDetail(body)}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// errorDetail extracts the server's {"detail": ...} message without ever
// echoing other payload fields into logs or UI
func errorDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if detail := strings.TrimSpace(parsed.Detail); detail != "" {
			return detail
		}
	}
	return ""
}

// Lifetime converts the pair's expires_in into a duration; zero when absent
func (p TokenPair) Lifetime() time.Duration {
	if p.ExpiresIn <= 0 {
		return 0
	}
	return time.Duration(p.ExpiresIn) * time.Second
}
