// Package netclient implements the session collaborator interfaces over
// the network hub's REST API.
package netclient

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

func normalizeHubURL(hubURL string) string {
	return strings.TrimRight(hubURL, "/")
}

// normalizeNodeAddress strips exactly one trailing path separator, so a
// configured "https://node.example/" resolves identically to
// "https://node.example".
func normalizeNodeAddress(addr string) string {
	return strings.TrimSuffix(addr, "/")
}

// Client talks to the network hub and to partner nodes. It implements
// session.TokenService, session.NodeDirectory and session.ResourceLoader.
type Client struct {
	baseURL string
	httpc   *http.Client

	// tokenPath, when set, is where the current session token is cached
	// between CLI invocations.
	tokenPath string
}

// Option configures a Client.
type Option func(*Client)

// WithTokenPath enables on-disk token caching at the given path.
func WithTokenPath(path string) Option {
	return func(c *Client) { c.tokenPath = path }
}

// WithHTTPClient replaces the transport; intended for tests.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// New creates a Client for the given hub URL.
func New(hubURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: normalizeHubURL(hubURL),
		httpc:   &http.Client{Timeout: 20 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized hub URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) doJSON(ctx context.Context, method, url, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
