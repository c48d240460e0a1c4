package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the normalized form of a non-2xx API response. The gateway
// client never retries or swallows these; callers decide what a given
// status means for them.
type Error struct {
	Status  int
	Message string
	Body    []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: %s (status %d)", e.Message, e.Status)
}

// IsUnauthorized reports whether err is an API error carrying a 401,
// the server's signal that the session is invalid or expired.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// StatusOf returns the HTTP status carried by err, or zero if err is not
// an API error (for example a transport failure).
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
