// Package api is the single HTTP gateway to the task service. Every request
// carries the caller's identity in the userId header, read from the session at
// send time.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/tgienger/taskboard/internal/logging"
)

// DefaultTimeout bounds a request when no timeout is configured
const DefaultTimeout = 10 * time.Second

// Header names sent with every request
const (
	HeaderUserID    = "userId"
	HeaderRequestID = "X-Request-ID"
)

// Identity supplies the caller's identity. It is consulted on every request.
type Identity interface {
	UserID() (int64, bool)
	Token() string
}

// Client talks to the backend REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	identity   Identity
	sendBearer bool
	logger     *log.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithBearer also sends the session token as a bearer Authorization header
func WithBearer(enabled bool) Option {
	return func(c *Client) { c.sendBearer = enabled }
}

// WithLogger sets the request logger
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for the API rooted at baseURL. identity may be nil for
// clients that only call unauthenticated endpoints.
func New(baseURL string, identity Identity, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		identity:   identity,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Anonymous returns a copy of the client that sends no identity
func (c *Client) Anonymous() *Client {
	clone := *c
	clone.identity = nil
	return &clone
}

// BaseURL returns the API root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get issues a GET and decodes the JSON response into out
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST with a JSON body
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

// Patch issues a PATCH. A nil body sends no payload.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, nil, body, out)
}

// Delete issues a DELETE
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) (err error) {
	requestID := uuid.NewString()
	ctx, span := startRequestSpan(ctx, method, path, requestID)
	start := time.Now()
	status := 0
	defer func() {
		endRequestSpan(span, status, err)
		recordRequestMetrics(ctx, method, status, time.Since(start))
		if err != nil {
			c.logger.Warn("api request failed", "method", method, "path", path,
				"status", status, "request_id", requestID, "err", err)
		} else {
			c.logger.Debug("api request", "method", method, "path", path,
				"status", status, "duration", time.Since(start), "request_id", requestID)
		}
	}()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.attachIdentity(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Message: "network error: could not reach the server", RequestID: requestID, Err: networkError{err}}
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Status: status, Message: "network error: response was cut off", RequestID: requestID, Err: networkError{err}}
	}

	if status < 200 || status >= 300 {
		return &Error{Status: status, Message: serverMessage(status, data), RequestID: requestID}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Status: status, Message: "unexpected response from server", RequestID: requestID, Err: err}
	}
	return nil
}

// attachIdentity sets the userId header from the current session. With no
// session the header is left off and the backend decides.
func (c *Client) attachIdentity(req *http.Request) {
	if c.identity == nil {
		return
	}
	userID, ok := c.identity.UserID()
	if !ok {
		return
	}
	// Set directly so the header goes out with the exact casing the backend expects
	req.Header[HeaderUserID] = []string{strconv.FormatInt(userID, 10)}

	if c.sendBearer {
		if token := c.identity.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
}
