package bench

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorCategory classifies failed operation runs.
type ErrorCategory int

const (
	ErrorNone ErrorCategory = iota
	ErrorTimeout
	ErrorInterrupt
	ErrorExecution
	ErrorAuthentication
	ErrorHTTPClient
	ErrorHTTPServer
	ErrorHTTPNotFound
)

var AllErrorCategories = []ErrorCategory{
	ErrorTimeout,
	ErrorInterrupt,
	ErrorExecution,
	ErrorAuthentication,
	ErrorHTTPClient,
	ErrorHTTPServer,
	ErrorHTTPNotFound,
}

func (c ErrorCategory) String() string {
	switch c {
	case ErrorNone:
		return "none"
	case ErrorTimeout:
		return "timeout"
	case ErrorInterrupt:
		return "interrupt"
	case ErrorExecution:
		return "execution"
	case ErrorAuthentication:
		return "authentication"
	case ErrorHTTPClient:
		return "http_client_error"
	case ErrorHTTPServer:
		return "http_server_error"
	case ErrorHTTPNotFound:
		return "http_not_found"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

func (c ErrorCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// CategoryFromStatus maps an HTTP status code to an error category. Codes
// outside the 4xx/5xx ranges map to ErrorExecution.
func CategoryFromStatus(code int) ErrorCategory {
	switch code {
	case http.StatusUnauthorized,
		http.StatusPaymentRequired,
		http.StatusForbidden,
		http.StatusProxyAuthRequired,
		419, // authentication timeout
		440: // login timeout
		return ErrorAuthentication
	case http.StatusNotFound, http.StatusGone:
		return ErrorHTTPNotFound
	}

	switch {
	case code >= 400 && code < 500:
		return ErrorHTTPClient
	case code >= 500 && code < 600:
		return ErrorHTTPServer
	default:
		return ErrorExecution
	}
}

// CategoryOf derives the error category of an operation failure.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ErrorNone
	}

	var ce interface{ Category() ErrorCategory }
	if errors.As(err, &ce) {
		return ce.Category()
	}
	var se interface{ StatusCode() int }
	if errors.As(err, &se) {
		return CategoryFromStatus(se.StatusCode())
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTimeout
	case errors.Is(err, context.Canceled):
		return ErrorInterrupt
	default:
		return ErrorExecution
	}
}

type categorizedError struct {
	category ErrorCategory
	err      error
}

func (e *categorizedError) Error() string           { return e.err.Error() }
func (e *categorizedError) Unwrap() error           { return e.err }
func (e *categorizedError) Category() ErrorCategory { return e.category }

// Categorize attaches an explicit category to err.
func Categorize(category ErrorCategory, err error) error {
	if err == nil {
		return nil
	}
	return &categorizedError{category: category, err: err}
}

// StatusError reports an unexpected HTTP response status.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("unexpected response status: %s", e.Status)
	}
	return fmt.Sprintf("unexpected response status: %d", e.Code)
}

func (e *StatusError) StatusCode() int { return e.Code }

// HaltError is returned once a run was halted by the halt policy.
type HaltError struct {
	Reason string
	Err    error
}

func (e *HaltError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("halted: %s: %v", e.Reason, e.Err)
	}
	return "halted: " + e.Reason
}

func (e *HaltError) Unwrap() error { return e.Err }

func Halt(reason string, err error) *HaltError {
	return &HaltError{Reason: reason, Err: err}
}

// IsHalt reports whether err carries a HaltError.
func IsHalt(err error) bool {
	var he *HaltError
	return errors.As(err, &he)
}

var ErrEmptyMix = errors.New("operation mix is empty")

// ErrNoOperations is returned when all operations of a mix are excluded.
var ErrNoOperations = errors.New("no operations left to run")
