// Package client is the data-access layer used by front ends of the case
// API: a JSON-over-HTTP client, a normalization boundary that maps every
// response onto the entity's camelCase shape, and cached queries.
package client

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

	"github.com/casecompass/case-compass/pkg/logger"
)

const DefaultTimeout = 10 * time.Second

var (
	ErrNetwork  = errors.New("network error: please check your internet connection")
	ErrNotFound = errors.New("resource not found: please check the request URL")
)

// APIError is a non-2xx answer other than 404.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// envelope is the body shape every endpoint answers with.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	ID      int64           `json:"id"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *logger.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the request timeout on a copy of the HTTP client, so a
// shared client such as http.DefaultClient is left untouched.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.http
		hc.Timeout = d
		c.http = &hc
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for an API rooted at baseURL, e.g.
// "http://localhost:5000/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do sends one request and decodes the envelope. Transport failures become
// ErrNetwork, 404 becomes ErrNotFound and other failures an *APIError.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Error("API request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.logger.Debug("API resource not found", "method", method, "path", path)
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg := env.Message
		if msg == "" && decodeErr != nil {
			msg = strings.TrimSpace(string(raw))
		}
		c.logger.Error("API error", "method", method, "path", path, "status", resp.StatusCode, "message", msg)
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	case decodeErr != nil:
		return nil, fmt.Errorf("unexpected response from %s: %w", path, decodeErr)
	}

	return &env, nil
}

// ConnectionStatus is the answer of /test-connection.
type ConnectionStatus struct {
	Success bool
	Message string
	Rows    []map[string]interface{}
}

// TestConnection asks the API to run a trivial database query.
func (c *Client) TestConnection(ctx context.Context) (*ConnectionStatus, error) {
	env, err := c.do(ctx, http.MethodGet, "/test-connection", nil)
	if err != nil {
		return nil, err
	}

	status := &ConnectionStatus{Success: env.Success, Message: env.Message}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &status.Rows); err != nil {
			return nil, fmt.Errorf("unexpected test-connection data: %w", err)
		}
	}
	return status, nil
}
