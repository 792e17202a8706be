package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrTransient wraps network and timeout failures; callers retry these
	// before falling back to the next source.
	ErrTransient = errors.New("transient source error")

	// ErrMalformedPayload marks a response whose body could not be decoded
	// into the expected shape. Treated as an empty result, never propagated
	// out of a resolve.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrUpstreamErrorPage marks the retailer's rendered error page: a 200
	// with no catalog data. Distinct from "no results".
	ErrUpstreamErrorPage = errors.New("upstream error page")
)

// Client fetches retailer pages and API responses with a realistic browser
// header set. It follows redirects (including the alternate-host redirect
// the structured API sometimes issues) and stamps every failure with the
// taxonomy above.
type Client struct {
	http            *http.Client
	userAgent       string
	referer         string
	errorPageMarker string
	log             *zap.Logger
}

// Options configure a Client. Zero values get sensible defaults.
type Options struct {
	Timeout         time.Duration
	UserAgent       string
	Referer         string
	ErrorPageMarker string
}

func NewClient(opts Options, log *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		http:            &http.Client{Timeout: opts.Timeout},
		userAgent:       opts.UserAgent,
		referer:         opts.Referer,
		errorPageMarker: strings.ToLower(opts.ErrorPageMarker),
		log:             log,
	}
}

// Get fetches a URL and returns body, status and error. A non-2xx status
// returns the body alongside an ErrTransient-wrapped error so callers can
// keep diagnostics while the cascade moves on.
func (c *Client) Get(ctx context.Context, url string) ([]byte, int, error) {
	return c.do(ctx, http.MethodGet, url, nil, "")
}

// Post sends a body (JSON unless contentType overrides it) and returns the
// response like Get.
func (c *Client) Post(ctx context.Context, url string, body []byte, contentType string) ([]byte, int, error) {
	if contentType == "" {
		contentType = "application/json"
	}
	return c.do(ctx, http.MethodPost, url, body, contentType)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, contentType string) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9")
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("fetch failed", zap.String("url", url), zap.Error(err))
		return nil, 0, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	b, readErr := io.ReadAll(resp.Body)
	c.log.Debug("fetch",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))
	if readErr != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read body: %v", ErrTransient, readErr)
	}

	if c.errorPageMarker != "" && strings.Contains(strings.ToLower(string(b)), c.errorPageMarker) {
		return b, resp.StatusCode, ErrUpstreamErrorPage
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return b, resp.StatusCode, fmt.Errorf("%w: http status %d", ErrTransient, resp.StatusCode)
	}
	return b, resp.StatusCode, nil
}
