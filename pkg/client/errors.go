package client

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrNotFound is returned by single-object lookups when the API has no
	// record for the identifier. It is an expected outcome, not a failure.
	ErrNotFound = errors.New("soundcharts: object not found")

	// ErrNoSocialAccount marks an entity that has no account on the requested
	// platform. Match it with errors.Is.
	ErrNoSocialAccount = errors.New("soundcharts: no social account on platform")
)

// ErrorDetail is one error descriptor reported by the API.
type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RemoteError is returned for any non-2xx response.
type RemoteError struct {
	URL        string
	StatusCode int
	ErrorClass ErrorClass
	// Errors may be empty when the error body could not be parsed.
	Errors []ErrorDetail
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	msgs := e.Messages()
	if len(msgs) == 0 {
		return fmt.Sprintf("soundcharts %s error (status %d) from %s",
			e.ErrorClass, e.StatusCode, e.URL)
	}
	return fmt.Sprintf("soundcharts %s error (status %d) from %s: %s",
		e.ErrorClass, e.StatusCode, e.URL, strings.Join(msgs, "; "))
}

// Messages returns the human readable messages of all error descriptors.
func (e *RemoteError) Messages() []string {
	msgs := make([]string, 0, len(e.Errors))
	for _, d := range e.Errors {
		if d.Message != "" {
			msgs = append(msgs, d.Message)
		}
	}
	return msgs
}

// NoSocialAccountError is a RemoteError that means the entity permanently has
// no presence on a platform.
type NoSocialAccountError struct {
	Remote *RemoteError
}

// Error implements the error interface.
func (e *NoSocialAccountError) Error() string {
	return fmt.Sprintf("%v: %v", ErrNoSocialAccount, e.Remote)
}

// Unwrap exposes the underlying RemoteError.
func (e *NoSocialAccountError) Unwrap() error {
	return e.Remote
}

// Is reports whether target is ErrNoSocialAccount.
func (e *NoSocialAccountError) Is(target error) bool {
	return target == ErrNoSocialAccount
}

// UnexpectedTypeError is returned when a single-object response carries a
// different "type" than the caller asked for.
type UnexpectedTypeError struct {
	Expected string
	Received string
}

// Error implements the error interface.
func (e *UnexpectedTypeError) Error() string {
	return fmt.Sprintf("soundcharts: expected type %q, received %q", e.Expected, e.Received)
}

var noSocialAccountPattern = regexp.MustCompile(`(?i)no\s+social\s+account|social\s+account.*not\s+found`)

// IsNoSocialAccount reports whether err is a RemoteError whose messages say the
// entity has no social account on the platform.
func IsNoSocialAccount(err error) bool {
	var remote *RemoteError
	if !errors.As(err, &remote) {
		return false
	}
	for _, msg := range remote.Messages() {
		if noSocialAccountPattern.MatchString(msg) {
			return true
		}
	}
	return false
}

// AsAbsence converts a no-social-account RemoteError into a
// NoSocialAccountError. Any other error is returned unchanged.
func AsAbsence(err error) error {
	var absent *NoSocialAccountError
	if errors.As(err, &absent) {
		return err
	}
	if !IsNoSocialAccount(err) {
		return err
	}
	var remote *RemoteError
	errors.As(err, &remote)
	return &NoSocialAccountError{Remote: remote}
}

// IsRemote reports whether err is (or wraps) a RemoteError.
func IsRemote(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote)
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx errors are permanent for the same request
		return false
	case ErrorClassServer:
		return true
	case ErrorClassRateLimit:
		return true
	case ErrorClassNetwork:
		return true
	default:
		return false
	}
}
