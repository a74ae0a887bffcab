package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUnauthorized marks a rejected or missing bearer token. Call sites
// branch on it to suggest logging in again.
var ErrUnauthorized = errors.New("unauthorized")

// Client talks to the workspace backend. The default HTTP client carries a
// request timeout; streaming requests use a separate client without one,
// since a stream stays open for the whole generation.
type Client struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	streamClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return NewClientWithTimeout(baseURL, token, 30*time.Second)
}

func NewClientWithTimeout(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		streamClient: &http.Client{},
	}
}

// SetToken replaces the bearer token for subsequent requests
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// doJSON issues a request with an optional JSON body and decodes the JSON
// response into out when out is non-nil
func (c *Client) doJSON(ctx context.Context, method, url string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return responseError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// responseError builds an error from a non-2xx response, preferring the
// backend's detail message over the raw body
func responseError(resp *http.Response) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("request failed with status %d (failed to read error response: %w)", resp.StatusCode, err)
	}

	var detail struct {
		Detail string `json:"detail"`
	}
	message := string(raw)
	if json.Unmarshal(raw, &detail) == nil && detail.Detail != "" {
		message = detail.Detail
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("request failed with status %d: %s: %w", resp.StatusCode, message, ErrUnauthorized)
	}
	return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, message)
}
