// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"net/http"
)

type csrfResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// FetchCSRF asks the backend for a fresh CSRF token and caches it for
// subsequent requests. The endpoint also sets the csrftoken cookie.
func (c *Client) FetchCSRF(ctx context.Context) (string, error) {
	status, body, err := c.send(ctx, http.MethodGet, PathCSRF, nil)
	if err != nil {
		return "", err
	}
	var resp csrfResponse
	if err := decodeResponse(status, body, &resp); err != nil {
		return "", err
	}

	token := resp.CSRFToken
	if token == "" {
		token = c.cookieToken()
	}
	c.mu.Lock()
	c.csrfToken = token
	c.mu.Unlock()
	return token, nil
}

// CSRFToken returns the token to send: the one fetched from the backend,
// else the value of the csrftoken cookie, else "".
func (c *Client) CSRFToken() string {
	c.mu.RLock()
	token := c.csrfToken
	c.mu.RUnlock()
	if token != "" {
		return token
	}
	return c.cookieToken()
}

func (c *Client) cookieToken() string {
	for _, ck := range c.cookieJar().Cookies(c.baseURL) {
		if ck.Name == CSRFCookieName {
			return ck.Value
		}
	}
	return ""
}

// isCSRFFailure reports whether a response is Django's CSRF rejection.
func isCSRFFailure(status int, body []byte) bool {
	return status == http.StatusForbidden && bytes.Contains(body, []byte("CSRF"))
}
