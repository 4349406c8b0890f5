package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
)

// Client calls the admin API of a running bot
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates an API client. token may be empty.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Status gets the bot status
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Jobs lists running jobs
func (c *Client) Jobs(ctx context.Context) ([]domain.JobSnapshot, error) {
	var result struct {
		Jobs []domain.JobSnapshot `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/jobs", nil, &result); err != nil {
		return nil, err
	}
	return result.Jobs, nil
}

// AllowList gets the mode and allow-list
func (c *Client) AllowList(ctx context.Context) (*AllowList, error) {
	var list AllowList
	if err := c.do(ctx, http.MethodGet, "/api/allowlist", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Allow adds an identity. added is false if it was already present.
func (c *Client) Allow(ctx context.Context, identity string) (bool, error) {
	var result struct {
		Added bool `json:"added"`
	}
	err := c.do(ctx, http.MethodPost, "/api/allowlist", IdentityRequest{Identity: identity}, &result)
	return result.Added, err
}

// Deny removes an identity. removed is false if it was absent.
func (c *Client) Deny(ctx context.Context, identity string) (bool, error) {
	var result struct {
		Removed bool `json:"removed"`
	}
	err := c.do(ctx, http.MethodDelete, "/api/allowlist/"+url.PathEscape(identity), nil, &result)
	return result.Removed, err
}

// SetMode switches public mode
func (c *Client) SetMode(ctx context.Context, public bool) error {
	return c.do(ctx, http.MethodPost, "/api/mode", ModeRequest{Public: &public}, nil)
}

// Send sends a text message to a chat
func (c *Client) Send(ctx context.Context, chatID, text string) error {
	return c.do(ctx, http.MethodPost, "/api/send", SendRequest{ChatID: chatID, Text: text}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, env.Error)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}
