package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// maxResponseSize bounds how much of a backend response is read (10 MB).
const maxResponseSize = 10 << 20

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is the REST backend root, e.g. "http://localhost:8000/api".
	BaseURL string
	// Timeout bounds each request. Zero means no client-side timeout.
	Timeout time.Duration
	// Transport is the round tripper used for requests. If nil,
	// http.DefaultTransport is used.
	Transport http.RoundTripper
	// Logger is used for request logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client sends JSON requests to the backend and normalizes every failure
// into an *Error. It holds no credentials: callers pass the bearer token
// explicitly on each request.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a backend client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("apiclient: BaseURL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("apiclient: invalid BaseURL %q: %w", cfg.BaseURL, err)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout, Transport: transport},
		logger:  logger,
	}, nil
}

// Options are the per-request knobs.
type Options struct {
	// Token is sent as a bearer credential when non-empty.
	Token string
	// Body is encoded as JSON for every method except GET.
	Body any
}

// Do sends a request and decodes a JSON success body into out. When the
// backend answers with an empty body (204 or zero length) out is left
// untouched and empty is true.
func (c *Client) Do(ctx context.Context, method, path string, opts Options, out any) (empty bool, err error) {
	body, err := c.send(ctx, method, path, opts)
	if err != nil {
		return false, err
	}
	if body == nil {
		return true, nil
	}
	if out == nil {
		return false, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, &Error{
			Kind:       KindDecode,
			StatusCode: http.StatusOK,
			Message:    msgBadResponse,
			Method:     method,
			Path:       path,
			Err:        err,
		}
	}
	return false, nil
}

// Request sends a request and returns the decoded body typed as T. A nil
// result with a nil error means the backend sent an empty success body.
func Request[T any](ctx context.Context, c *Client, method, path string, opts Options) (*T, error) {
	var out T
	empty, err := c.Do(ctx, method, path, opts, &out)
	if err != nil {
		return nil, err
	}
	if empty {
		return nil, nil
	}
	return &out, nil
}

// send performs the round trip. It returns a nil body for empty successes.
func (c *Client) send(ctx context.Context, method, path string, opts Options) ([]byte, error) {
	var bodyReader io.Reader
	if opts.Body != nil && method != http.MethodGet {
		encoded, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("apiclient: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("apiclient: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		reason := classifyTransportError(err)
		c.logger.Warn("backend request failed",
			"method", method,
			"path", path,
			"reason", reason,
			"error", err,
		)
		return nil, &Error{
			Kind:    KindTransport,
			Message: msgTransport,
			Reason:  reason,
			Method:  method,
			Path:    path,
			Err:     err,
		}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))

	c.logger.Debug("backend request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body, statusText(resp)),
			Method:     method,
			Path:       path,
		}
	}

	if resp.StatusCode == http.StatusNoContent || resp.ContentLength == 0 || resp.Header.Get("Content-Length") == "0" {
		return nil, nil
	}
	if readErr != nil {
		return nil, &Error{
			Kind:    KindTransport,
			Message: msgTransport,
			Reason:  classifyTransportError(readErr),
			Method:  method,
			Path:    path,
			Err:     readErr,
		}
	}
	if len(body) == 0 {
		return nil, nil
	}
	return body, nil
}

// errorMessage extracts the backend's "message" field. A JSON body without a
// message yields the generic text; a body that is not JSON yields the
// transport status text.
func errorMessage(body []byte, status string) string {
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		if status == "" {
			return msgGeneric
		}
		return status
	}
	if envelope.Message == "" {
		return msgGeneric
	}
	return envelope.Message
}

// statusText returns the reason phrase of the response status line.
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
