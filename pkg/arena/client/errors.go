package client

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the arena server. Detail carries the
// human-readable reason extracted from the response body's "detail" field,
// falling back to "HTTP <status>" when the body has none.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Detail, e.Status)
}

// MalformedBodyError is a successful response whose body could not be decoded
// into the expected shape. The raw text is preserved so callers can still
// display it.
type MalformedBodyError struct {
	Raw string
	Err error
}

func (e *MalformedBodyError) Error() string {
	return fmt.Sprintf("malformed response body: %v", e.Err)
}

func (e *MalformedBodyError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is an HTTP 401 from the server. Callers use
// it to offer a login redirect instead of a generic error banner.
func IsAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// IsNotFound reports whether err is an HTTP 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
