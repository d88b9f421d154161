// Package transport implements the HTTP client the paging engine talks through.
//
// The client carries the request-scoped concerns of every outbound call:
//   - client-side rate limiting (golang.org/x/time/rate)
//   - an X-Request-ID header per request
//   - Prometheus request counters and latency histograms
//   - structured request logging
//
// Non-2xx responses and network failures are both returned as *Error so that
// callers can classify them from a single type.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Request is a fully resolved HTTP request.
type Request struct {
	URL    string
	Method string
	Header map[string]string
	Body   []byte
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Data   []byte
	Header http.Header
}

// Error is returned by Do for network failures (Response is nil) and for
// responses with a non-2xx status (Response is set).
type Error struct {
	Errno    syscall.Errno
	Response *Response
	Err      error
}

func (e *Error) Error() string {
	if e.Response != nil {
		return fmt.Sprintf("request failed with status %d: %v", e.Response.Status, e.Err)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ClientConfig holds configuration options for the HTTP client
type ClientConfig struct {
	Timeout        time.Duration // Per request timeout, 0 disables it
	RateLimit      float64       // Requests per second, 0 disables limiting
	RateLimitBurst int           // Maximum burst size for rate limiting
}

// DefaultClientConfig returns a ClientConfig with sensible defaults
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:        30 * time.Second,
		RateLimit:      5.0, // 5 requests per second
		RateLimitBurst: 10,  // Burst of 10 requests
	}
}

// Client executes requests over net/http.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	metrics *Metrics
	logger  *logrus.Logger
}

// NewClient creates a client. metrics may be nil.
func NewClient(cfg ClientConfig, logger *logrus.Logger, metrics *Metrics) *Client {
	c := &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		metrics: metrics,
		logger:  logger,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c
}

// Do executes req and reads the whole response body.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, &Error{Err: err}
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	requestID := withRequestID(httpReq.Header)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.observe(method, "error", start)
		c.log(requestID, method, req.URL, 0, start, err)

		terr := &Error{Err: err}
		var errno syscall.Errno
		if errors.As(err, &errno) {
			terr.Errno = errno
		}
		return nil, terr
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.observe(method, strconv.Itoa(resp.StatusCode), start)
	c.log(requestID, method, req.URL, resp.StatusCode, start, err)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	out := &Response{
		Status: resp.StatusCode,
		Data:   data,
		Header: resp.Header,
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Response: out, Err: errors.New(resp.Status)}
	}
	return out, nil
}

func (c *Client) observe(method, code string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.Requests.WithLabelValues(method, code).Inc()
	c.metrics.Latency.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

func (c *Client) log(requestID, method, url string, status int, start time.Time, err error) {
	if c.logger == nil {
		return
	}
	entry := c.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"method":     method,
		"url":        url,
		"status":     status,
		"duration":   time.Since(start),
	})
	if err != nil {
		entry.WithError(err).Debug("request failed")
		return
	}
	entry.Debug("request completed")
}
