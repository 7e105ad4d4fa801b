// Package client talks to the upstream listing server: the raw listing
// fragment, the files page, the reset request and the event stream.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/rillToMe/CrypShare/internal/logging"
)

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: server returned %d", e.URL, e.Code)
}

// Config holds client configuration.
type Config struct {
	BaseURL   string
	ListPath  string
	ResetPath string
	Timeout   time.Duration
	// Retries is the number of extra attempts on connection errors and 5xx.
	// Zero keeps one attempt per sync cycle.
	Retries int
}

// Client fetches from the listing server.
type Client struct {
	baseURL    string
	listPath   string
	resetPath  string
	httpClient *http.Client
}

// retryLogger adapts zap to retryablehttp.LeveledLogger.
type retryLogger struct {
	s *zap.SugaredLogger
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, keysAndValues...)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.s.Warnw(msg, keysAndValues...)
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ListPath == "" {
		cfg.ListPath = "/list_html"
	}
	if cfg.ResetPath == "" {
		cfg.ResetPath = "/__FORGET_FLAG.txt"
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.RetryMax = cfg.Retries
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = retryLogger{s: logging.Named("client").Sugar()}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		listPath:   cfg.ListPath,
		resetPath:  cfg.ResetPath,
		httpClient: rc.StandardClient(),
	}
}

func (c *Client) url(path string) string {
	return c.baseURL + "/" + strings.TrimPrefix(path, "/")
}

// FetchListing fetches the raw listing fragment, bypassing caches.
func (c *Client) FetchListing(ctx context.Context) (string, error) {
	return c.get(ctx, c.listPath)
}

// FetchPage fetches a page such as /files.html, bypassing caches.
func (c *Client) FetchPage(ctx context.Context, path string) (string, error) {
	return c.get(ctx, path)
}

func (c *Client) get(ctx context.Context, path string) (string, error) {
	url := c.url(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", &StatusError{URL: url, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}
	return string(body), nil
}

// RequestReset asks the server to forget the current share.
func (c *Client) RequestReset(ctx context.Context) error {
	url := c.url(c.resetPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, strings.NewReader("reset"))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("put %s: %w", url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{URL: url, Code: resp.StatusCode}
	}
	return nil
}
