// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes shared by all thicode commands.
//
// Commands always return errors; main decides how to display them and
// which exit code to use.

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/thicode-tui/internal/api"
	"github.com/jeranaias/thicode-tui/internal/chat"
	"github.com/jeranaias/thicode-tui/internal/config"
	"github.com/jeranaias/thicode-tui/internal/offline"
	"github.com/jeranaias/thicode-tui/internal/storage"
)

// =============================================================================
// EXIT CODES - Specific codes for different error categories
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates the user is not logged in or was refused
	ExitAuthError = 4
	// ExitNetworkError indicates the backend could not be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// ErrNotLoggedIn is returned by commands that need a session when there is
// none. It matches api.ErrUnauthorized.
var ErrNotLoggedIn = fmt.Errorf("not logged in, run `thicode login` first: %w", api.ErrUnauthorized)

// =============================================================================
// ERROR TYPES FOR STRUCTURED ERROR HANDLING
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "conversations", "login")
	Action  string // Action being performed (e.g., "rename", "delete")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   string // Value that was provided
	Reason  string // Why validation failed
	Example string // Example of valid value (optional)
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// AuthError is a login the backend refused.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "login failed: " + e.Reason
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	Resource string // Type of resource (e.g., "conversation", "config key")
	ID       string // Identifier that was not found
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// =============================================================================
// ERROR CONSTRUCTION HELPERS
// =============================================================================

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{
		Command: command,
		Action:  action,
		Reason:  reason,
		Err:     err,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// NewValidationErrorWithExample creates a validation error with an example.
func NewValidationErrorWithExample(field, value, reason, example string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Reason:  reason,
		Example: example,
	}
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// ErrMissingArgument creates an error for missing required arguments.
func ErrMissingArgument(argName, usage string) error {
	return NewValidationErrorWithExample(argName, "", "required argument missing", usage)
}

// ErrUnknownSubcommand creates an error for an unrecognised subcommand.
func ErrUnknownSubcommand(command, sub, usage string) error {
	return NewValidationErrorWithExample(command+" subcommand", sub, "unknown subcommand", usage)
}

// =============================================================================
// ERROR DISPLAY HELPERS
// =============================================================================

// DisplayError writes err to w, as JSON in JSON mode.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}

	if jsonMode {
		DisplayErrorJSON(w, err)
		return
	}

	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), userMessage(err))
}

// DisplayErrorJSON outputs an error as JSON.
func DisplayErrorJSON(w io.Writer, err error) {
	output := map[string]interface{}{
		"error":     userMessage(err),
		"success":   false,
		"exit_code": GetExitCode(err),
	}

	var (
		cmdErr      *CommandError
		validErr    *ValidationError
		notFoundErr *NotFoundError
		apiErr      *api.APIError
	)
	switch {
	case errors.As(err, &validErr):
		output["error_type"] = "validation_error"
		output["field"] = validErr.Field
		output["value"] = validErr.Value
		output["reason"] = validErr.Reason
		if validErr.Example != "" {
			output["example"] = validErr.Example
		}
	case errors.As(err, &notFoundErr):
		output["error_type"] = "not_found_error"
		output["resource"] = notFoundErr.Resource
		output["id"] = notFoundErr.ID
	case errors.As(err, &apiErr):
		output["error_type"] = "backend_error"
		output["status"] = apiErr.Status
	case errors.As(err, &cmdErr):
		output["error_type"] = "command_error"
		output["command"] = cmdErr.Command
		output["action"] = cmdErr.Action
	default:
		output["error_type"] = "generic_error"
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(output)
}

// userMessage is what the user sees for err. Backend failures show the
// backend's own words.
func userMessage(err error) string {
	var (
		apiErr   *api.APIError
		transErr *api.TransportError
	)
	switch {
	case errors.Is(err, ErrNotLoggedIn):
		return err.Error()
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case api.IsUnauthorized(err):
		return "session expired, run `thicode login`"
	case errors.As(err, &apiErr), errors.As(err, &transErr):
		return api.Message(err)
	}
	return err.Error()
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode determines the appropriate exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		validationErr *ValidationError
		notFoundErr   *NotFoundError
		authErr       *AuthError
		transportErr  *api.TransportError
		configErrs    config.ValidateErrors
		configErr     config.ValidationError
	)

	switch {
	case errors.As(err, &validationErr), errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, ErrConfirmationRequired):
		return ExitUsageError
	case errors.As(err, &authErr), api.IsUnauthorized(err), errors.Is(err, api.ErrCSRF):
		return ExitAuthError
	case errors.Is(err, chat.ErrPollTimeout), errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.As(err, &notFoundErr), api.IsNotFound(err), errors.Is(err, storage.ErrConversationNotFound):
		return ExitNotFoundError
	case errors.As(err, &transportErr), errors.Is(err, offline.ErrOffline):
		return ExitNetworkError
	case errors.As(err, &configErrs), errors.As(err, &configErr), errors.Is(err, offline.ErrNoCache):
		return ExitConfigError
	}

	// Fall back to the message for errors from outside the packages above
	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "config") {
		return ExitConfigError
	}
	if strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "no such host") ||
		strings.Contains(errMsg, "unreachable") {
		return ExitNetworkError
	}
	if strings.Contains(errMsg, "timed out") {
		return ExitTimeoutError
	}

	return ExitGeneralError
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
