// Package sdkerr defines the error taxonomy returned by the client.
//
// Local precondition failures are reported as *ValidationError before any
// network call. Token and permission problems are *AuthenticationError and
// always carry remediation text. Zone lifecycle failures are *ZoneError.
// Unexpected HTTP responses from the remote API are *APIError.
package sdkerr

import (
	"errors"
	"fmt"
)

// Remediation links surfaced to callers.
const (
	TokenSettingsURL = "https://brightdata.com/cp/setting/users"
	APIKeysURL       = "https://brightdata.com/cp/api_keys"
	ZonesURL         = "https://brightdata.com/cp/zones"
)

// ValidationError reports malformed caller input detected before any network call.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// Validationf builds a ValidationError for field with a formatted message.
func Validationf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AuthenticationError reports a rejected token or missing permission.
type AuthenticationError struct {
	Status      int
	Message     string
	Remediation string
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	msg := "authentication: " + e.Message
	if e.Status != 0 {
		msg = fmt.Sprintf("authentication (%d): %s", e.Status, e.Message)
	}
	if e.Remediation != "" {
		msg += " (" + e.Remediation + ")"
	}
	return msg
}

// ZoneError reports a zone lifecycle failure that is not a permission problem.
type ZoneError struct {
	Zone    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ZoneError) Error() string {
	prefix := "zone"
	if e.Zone != "" {
		prefix = fmt.Sprintf("zone %q", e.Zone)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ZoneError) Unwrap() error {
	return e.Cause
}

// APIError reports an unexpected HTTP status from the remote API.
type APIError struct {
	Status  int
	Body    string
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api (HTTP %d): %s: %s", e.Status, e.Message, e.Body)
}

// Retryable reports whether the status suggests a transient server failure.
func (e *APIError) Retryable() bool {
	return e.Status >= 500
}

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsAuthentication reports whether err wraps an *AuthenticationError.
func IsAuthentication(err error) bool {
	var target *AuthenticationError
	return errors.As(err, &target)
}

// IsZone reports whether err wraps a *ZoneError.
func IsZone(err error) bool {
	var target *ZoneError
	return errors.As(err, &target)
}

// IsAPI reports whether err wraps an *APIError.
func IsAPI(err error) bool {
	var target *APIError
	return errors.As(err, &target)
}
