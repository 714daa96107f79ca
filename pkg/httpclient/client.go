// Package httpclient provides the outbound HTTP client shared by the feed
// reader and the transcription providers.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Profile selects the request headers a client sends.
type Profile string

const (
	// BrowserProfile sends browser-like headers. Some podcast hosts answer
	// 406 to clients that do not look like a browser.
	BrowserProfile Profile = "browser"

	// CurlProfile sends a curl User-Agent. Cloudflare-fronted hosts often
	// answer 403 to browser-like agents that fail their challenge.
	CurlProfile Profile = "curl"

	// DefaultTimeout bounds a single request including the body read.
	DefaultTimeout = 30 * time.Second

	// maxRedirects mirrors net/http's own limit.
	maxRedirects = 10
)

// Client wraps an http.Client with a header profile.
type Client struct {
	client  *http.Client
	profile Profile
}

// New creates a client with the given profile and timeout. A zero timeout
// selects DefaultTimeout.
func New(profile Profile, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		profile: profile,
	}
}

// HTTP exposes the underlying client for libraries that take one directly.
func (c *Client) HTTP() *http.Client {
	return c.client
}

// Do sends req with the profile's headers applied. Headers already set on
// req are kept.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	c.applyProfile(req)
	return c.client.Do(req)
}

// Fetch GETs url and returns the body, failing on any non-2xx status.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", url, err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

func (c *Client) applyProfile(req *http.Request) {
	set := func(k, v string) {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	switch c.profile {
	case BrowserProfile:
		set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
		set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		set("Accept-Language", "en-US,en;q=0.9")
	case CurlProfile:
		set("User-Agent", "curl/8.7.1")
	}
}
