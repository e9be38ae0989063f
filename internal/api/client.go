// Package api is the typed client for the buynow reservation backend. Every
// endpoint the storefront consumes has a request/response pair here; handlers
// never touch raw HTTP themselves.
package api

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
)

const defaultTimeout = 8 * time.Second

const idempotencyHeader = "Idempotency-Key"

// TokenSource supplies a bearer access token for authenticated calls.
// Implementations may refresh behind the scenes; returning an empty token with
// a nil error means the caller is anonymous.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource around a fixed token string. Empty means
// anonymous.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

// Client issues calls against the backend REST API.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// NewClient constructs a backend client. The token source may be nil for a
// purely anonymous client.
func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http: &http.Client{
			Timeout: defaultTimeout,
		},
		tokens: tokens,
	}
}

// HTTPClient exposes the underlying client for transport tweaks in tests.
func (c *Client) HTTPClient() *http.Client {
	if c.http == nil {
		c.http = &http.Client{Timeout: defaultTimeout}
	}
	return c.http
}

// WithTokens returns a shallow copy of the client bound to a different token
// source. Used when a session-scoped credential provider becomes available.
func (c *Client) WithTokens(tokens TokenSource) *Client {
	cp := *c
	cp.tokens = tokens
	return &cp
}

type authMode int

const (
	authNone authMode = iota
	authOptional
	authRequired
)

type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	auth    authMode
	headers map[string]string
}

// do performs a request and decodes a JSON response into out. A 2xx response
// with an empty body is success with no payload; out is left untouched.
func (c *Client) do(ctx context.Context, req request, out any) error {
	endpoint, err := url.JoinPath(c.baseURL, req.path)
	if err != nil {
		return err
	}
	if len(req.query) > 0 {
		endpoint = endpoint + "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}
	if err := c.authorize(ctx, httpReq, req.auth); err != nil {
		return err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("api: read %s: %w", req.path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("api: decode %s: %w", req.path, err)
	}
	return nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request, mode authMode) error {
	if mode == authNone {
		return nil
	}
	if c.tokens == nil {
		if mode == authRequired {
			return &Error{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: "no credentials available"}
		}
		return nil
	}
	token, err := c.tokens.Token(ctx)
	if err != nil || token == "" {
		if mode == authRequired {
			if err != nil {
				return fmt.Errorf("api: token: %w", err)
			}
			return &Error{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: "no credentials available"}
		}
		// anonymous fallback for optional auth
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}
