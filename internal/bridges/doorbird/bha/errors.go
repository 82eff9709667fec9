package bha

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyMonitoring is returned by StartMonitoring while a monitor runs.
	ErrAlreadyMonitoring = errors.New("bha: monitor already running")

	// ErrCommandRejected is returned when the device answers a command with
	// a non-success return code.
	ErrCommandRejected = errors.New("bha: command rejected by device")

	// ErrMalformedResponse is returned when a response body cannot be decoded.
	ErrMalformedResponse = errors.New("bha: malformed response")
)

// HTTPError is a non-2xx response from the device.
type HTTPError struct {
	Path       string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("bha: %s: HTTP %d", e.Path, e.StatusCode)
}

// IsUnauthorized reports whether err is an HTTP 401 from the device.
func IsUnauthorized(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == 401
}
