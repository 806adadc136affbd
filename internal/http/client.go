package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrStalled is returned from a body read when no data arrived within the
// inactivity timeout. It is distinct from cancellation: a stalled read is a
// hard fetch error.
var ErrStalled = errors.New("http: no data received within inactivity timeout")

// Options configures the HTTP client.
type Options struct {
	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 8
	MaxIdleConnsPerHost int

	// ResponseTimeout is the maximum time to wait for response headers.
	// Default: 30s
	ResponseTimeout time.Duration

	// InactivityTimeout aborts a body read that produces no data for this
	// long. Set to 0 to disable.
	// Default: 600s
	InactivityTimeout time.Duration

	// UserAgent is sent with every request when non-empty.
	UserAgent string
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost: 8,
		ResponseTimeout:     30 * time.Second,
		InactivityTimeout:   600 * time.Second,
	}
}

// Conditions carries the validators for a conditional GET. Empty fields are
// omitted from the request.
type Conditions struct {
	IfNoneMatch     string
	IfModifiedSince string
}

// Response is the result of a ConditionalGet.
//
// Body is non-nil only for 2xx responses; for 304 and other statuses the
// underlying body has already been drained and closed.
type Response struct {
	StatusCode    int
	ETag          string
	LastModified  string
	ContentLength string
	Body          io.ReadCloser
}

// Client performs conditional GET requests with a shared connection pool.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts Options) *Client {
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = 8
	}
	if opts.ResponseTimeout <= 0 {
		opts.ResponseTimeout = 30 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
		MaxIdleConns:          opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: opts.ResponseTimeout,
	}

	return &Client{
		client: &http.Client{Transport: transport},
		opts:   opts,
	}
}

// ConditionalGet performs a GET with the given conditional headers.
//
// The returned Body (when non-nil) is guarded by the inactivity watchdog:
// a read that stalls for longer than Options.InactivityTimeout fails with
// ErrStalled. Closing the body releases the watchdog.
func (c *Client) ConditionalGet(ctx context.Context, url string, cond Conditions) (*Response, error) {
	reqCtx, cause := context.WithCancelCause(ctx)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		cause(nil)
		return nil, fmt.Errorf("create request: %w", err)
	}
	if cond.IfModifiedSince != "" {
		req.Header.Set("If-Modified-Since", cond.IfModifiedSince)
	}
	if cond.IfNoneMatch != "" {
		req.Header.Set("If-None-Match", cond.IfNoneMatch)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		cause(nil)
		return nil, err
	}

	out := &Response{
		StatusCode:    resp.StatusCode,
		ETag:          resp.Header.Get("ETag"),
		LastModified:  resp.Header.Get("Last-Modified"),
		ContentLength: resp.Header.Get("Content-Length"),
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 304 and error statuses: nothing useful in the body.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		cause(nil)
		return out, nil
	}

	out.Body = newWatchdogBody(reqCtx, resp.Body, cause, c.opts.InactivityTimeout)
	return out, nil
}

// watchdogBody wraps a response body with an inactivity timer. Every
// successful read rearms the timer; if it fires, the request context is
// cancelled with ErrStalled as cause, which aborts the blocked read.
type watchdogBody struct {
	ctx   context.Context
	body  io.ReadCloser
	cause context.CancelCauseFunc
	timer *time.Timer
	limit time.Duration
}

func newWatchdogBody(ctx context.Context, body io.ReadCloser, cause context.CancelCauseFunc, limit time.Duration) io.ReadCloser {
	wd := &watchdogBody{ctx: ctx, body: body, cause: cause, limit: limit}
	if limit > 0 {
		wd.timer = time.AfterFunc(limit, func() {
			cause(ErrStalled)
		})
	}
	return wd
}

func (wd *watchdogBody) Read(p []byte) (int, error) {
	n, err := wd.body.Read(p)
	if n > 0 && wd.timer != nil {
		wd.timer.Reset(wd.limit)
	}
	if err != nil && err != io.EOF {
		// The transport reports a generic cancellation; surface the
		// watchdog cause when that is what aborted the read.
		if errors.Is(context.Cause(wd.ctx), ErrStalled) {
			return n, ErrStalled
		}
	}
	return n, err
}

func (wd *watchdogBody) Close() error {
	if wd.timer != nil {
		wd.timer.Stop()
	}
	wd.cause(nil)
	return wd.body.Close()
}
