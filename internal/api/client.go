// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the ThiCode chat backend.
//
// The backend is a Django application using session cookies and CSRF
// protection. Every request carries the cookie jar and an X-CSRFToken header;
// a 403 caused by a stale token is retried exactly once after refreshing it.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/jeranaias/thicode-tui/internal/logger"
)

// Configuration constants for the backend client.
const (
	// DefaultBaseURL is used when no server URL is configured.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion attacks.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit

	// CSRFCookieName is the cookie Django stores the CSRF secret in.
	CSRFCookieName = "csrftoken"

	// CSRFHeaderName is the header Django reads the token from.
	CSRFHeaderName = "X-CSRFToken"

	userAgent = "thicode/1.0"
)

// Client talks to the chat backend. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	jar        http.CookieJar
	limiter    *rate.Limiter

	mu        sync.RWMutex
	csrfToken string
}

// NewClient creates a client for the backend at baseURL with an empty
// cookie jar, DefaultTimeout and no rate limit.
func NewClient(baseURL string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", baseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Client{
		baseURL: u,
		jar:     jar,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Jar:     jar,
		},
		limiter: rate.NewLimiter(rate.Inf, 0),
	}, nil
}

// WithTimeout sets the request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

// WithRateLimit throttles outgoing requests to rps with the given burst.
// A non-positive rps disables throttling.
func (c *Client) WithRateLimit(rps float64, burst int) *Client {
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// BaseURL returns the backend origin.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// =============================================================================
// COOKIES
// =============================================================================

// Cookies returns the cookies the jar would send to the backend.
func (c *Client) Cookies() []*http.Cookie {
	return c.cookieJar().Cookies(c.baseURL)
}

// SetCookies loads previously saved cookies into the jar.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	c.cookieJar().SetCookies(c.baseURL, cookies)
}

func (c *Client) cookieJar() http.CookieJar {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jar
}

// ClearSession forgets all cookies and the cached CSRF token.
func (c *Client) ClearSession() {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return
	}
	c.mu.Lock()
	c.jar = jar
	c.httpClient = &http.Client{Timeout: c.httpClient.Timeout, Jar: jar}
	c.csrfToken = ""
	c.mu.Unlock()
}

// =============================================================================
// REQUESTS
// =============================================================================

// Get performs a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, body, out)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// Do sends a request to path and decodes a successful JSON response into
// out (which may be nil). A 403 whose body mentions CSRF triggers one token
// refresh and one retry; a second 403 is returned as the final error.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	status, respBody, err := c.send(ctx, method, path, payload)
	if err != nil {
		return err
	}

	if isCSRFFailure(status, respBody) {
		logger.L().Info("csrf token rejected, refreshing", zap.String("path", path))
		if _, err := c.FetchCSRF(ctx); err != nil {
			return err
		}
		status, respBody, err = c.send(ctx, method, path, payload)
		if err != nil {
			return err
		}
		if isCSRFFailure(status, respBody) {
			return &APIError{Status: status, Message: extractMessage(respBody), Err: ErrCSRF}
		}
	}

	return decodeResponse(status, respBody, out)
}

// send performs a single HTTP exchange and returns the status and body.
func (c *Client) send(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, &TransportError{Method: method, Path: path, Err: err}
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, payload != nil)

	c.mu.RLock()
	httpClient := c.httpClient
	c.mu.RUnlock()

	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		logger.L().Debug("api request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return 0, nil, &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	// Never log headers or bodies: they carry session cookies and passwords.
	logger.L().Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	data, err := readResponse(resp)
	if err != nil {
		return resp.StatusCode, nil, &TransportError{Method: method, Path: path, Err: err}
	}
	return resp.StatusCode, data, nil
}

func (c *Client) resolve(path string) string {
	return c.baseURL.String() + path
}

// setHeaders sets the headers every backend request needs.
func (c *Client) setHeaders(req *http.Request, hasBody bool) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.CSRFToken(); token != "" {
		req.Header.Set(CSRFHeaderName, token)
	}
	// Django checks the Referer on HTTPS requests that need CSRF
	if c.baseURL.Scheme == "https" {
		req.Header.Set("Referer", c.baseURL.String()+"/")
	}
}

// readResponse reads the response body with size limits to prevent memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// decodeResponse converts a status and body into out or an *APIError.
func decodeResponse(status int, body []byte, out any) error {
	if status >= 200 && status < 300 {
		if out == nil || len(bytes.TrimSpace(body)) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		return nil
	}

	apiErr := &APIError{Status: status, Message: extractMessage(body)}
	switch status {
	case http.StatusUnauthorized:
		apiErr.Err = ErrUnauthorized
	case http.StatusForbidden:
		// DRF answers 403 for anonymous session requests
		if strings.Contains(strings.ToLower(apiErr.Message), "authentication credentials") {
			apiErr.Err = ErrUnauthorized
		}
	}
	return apiErr
}
