// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Error variables for conditions callers branch on.
var (
	// ErrUnauthorized indicates the session is missing or expired (HTTP 401).
	ErrUnauthorized = errors.New("not authenticated")

	// ErrCSRF indicates the backend rejected the CSRF token even after a refresh.
	ErrCSRF = errors.New("CSRF verification failed")
)

// TransportError wraps failures that happened before a response was read:
// DNS, connection refused, TLS, timeouts, truncated bodies.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is an error reported by the backend with a non-2xx status.
type APIError struct {
	Status  int
	Message string

	// Err is a sentinel classifying the failure (ErrUnauthorized, ErrCSRF), or nil.
	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, msg)
}

// Unwrap allows errors.Is(err, ErrUnauthorized) and friends.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err means the user must log in again.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsNotFound reports whether the backend answered 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Message returns the text to show a user for err. Backend messages are
// passed through verbatim; transport failures get a generic sentence.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if errors.Is(apiErr.Err, ErrUnauthorized) {
			return "please log in"
		}
		return http.StatusText(apiErr.Status)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "the server took too long to respond"
	}
	if errors.Is(err, context.Canceled) {
		return "request cancelled"
	}

	var tErr *TransportError
	if errors.As(err, &tErr) {
		return "unable to reach the server, please try again later"
	}
	return err.Error()
}

// errorPayload covers the shapes the backend uses for failures.
type errorPayload struct {
	Message        string          `json:"message"`
	Error          string          `json:"error"`
	Detail         json.RawMessage `json:"detail"`
	NonFieldErrors []string        `json:"non_field_errors"`
}

// extractMessage picks the first non-empty of message, error and detail,
// then falls back to form validation errors.
func extractMessage(body []byte) string {
	var p errorPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return ""
	}
	if s := strings.TrimSpace(p.Message); s != "" {
		return s
	}
	if s := strings.TrimSpace(p.Error); s != "" {
		return s
	}
	if len(p.Detail) > 0 {
		var s string
		if json.Unmarshal(p.Detail, &s) == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	if len(p.NonFieldErrors) > 0 {
		return p.NonFieldErrors[0]
	}
	return fieldErrors(body)
}

// fieldErrors flattens a Django form error map such as
// {"password2": ["The two password fields didn't match."]}.
func fieldErrors(body []byte) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	var parts []string
	for name, raw := range fields {
		var msgs []string
		if json.Unmarshal(raw, &msgs) != nil || len(msgs) == 0 {
			continue
		}
		parts = append(parts, name+": "+msgs[0])
	}
	if len(parts) == 0 {
		return ""
	}
	// map order is random
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
