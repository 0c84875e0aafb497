// Package transport provides the deadline-bounded HTTP executor used by every probe strategy.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/PentesterFlow/PanelProbe/internal/errors"
)

// DefaultUserAgent mimics a desktop browser; several panels reject obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Client executes single HTTP calls with a hard deadline and without following redirects.
type Client struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
}

// Config holds configuration for the transport client.
type Config struct {
	UserAgent           string
	MaxBodyBytes        int64
	MaxIdleConnsPerHost int
	SkipTLSVerify       bool
	Proxy               string
}

// DefaultConfig returns defaults tuned for probing a single third-party host.
func DefaultConfig() Config {
	return Config{
		UserAgent:           DefaultUserAgent,
		MaxBodyBytes:        2 * 1024 * 1024,
		MaxIdleConnsPerHost: 4,
		SkipTLSVerify:       true,
	}
}

// NewClient creates a new transport client.
func NewClient(config Config) (*Client, error) {
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.SkipTLSVerify,
		},
	}

	if config.Proxy != "" {
		proxyURL, err := url.Parse(config.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", config.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			// The Location header is a success signal; redirects are never followed.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent:    config.UserAgent,
		maxBodyBytes: config.MaxBodyBytes,
	}, nil
}

// Request describes one outbound call.
type Request struct {
	Method  string
	URL     string
	Header  http.Header
	Body    []byte
	Timeout time.Duration
}

// Response holds a fully read response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Location returns the raw Location header.
func (r *Response) Location() string {
	return r.Header.Get("Location")
}

type outcome struct {
	resp *Response
	err  error
}

// Do executes the request. The call, including reading the body, is raced
// against a timer of req.Timeout; on expiry the call is abandoned and a
// timeout error is returned.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Timeout <= 0 {
		req.Timeout = 15 * time.Second
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	callCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, req.Method, req.URL, body)
	if err != nil {
		return nil, errors.NewParseError(req.URL, "request_creation", err)
	}

	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	done := make(chan outcome, 1)

	go func() {
		resp, err := c.client.Do(httpReq)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
		if err != nil {
			done <- outcome{err: err}
			return
		}

		done <- outcome{resp: &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       data,
		}}
	}()

	timer := time.NewTimer(req.Timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			if ctx.Err() == nil && callCtx.Err() == context.DeadlineExceeded {
				return nil, errors.NewTimeoutError(req.URL, "request", fmt.Errorf("no response within %s", req.Timeout))
			}
			return nil, errors.Categorize(out.err, req.URL)
		}
		out.resp.Duration = time.Since(start)
		return out.resp, nil
	case <-timer.C:
		cancel()
		return nil, errors.NewTimeoutError(req.URL, "request", fmt.Errorf("no response within %s", req.Timeout))
	case <-ctx.Done():
		cancel()
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewTimeoutError(req.URL, "request", ctx.Err())
		}
		return nil, errors.NewCancelledError(req.URL, "request")
	}
}

// Close releases idle connections.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}
