package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is returned for a response outside the 2xx range.
type StatusError struct {
	// Op names the failed call, e.g. "start mission".
	Op         string
	StatusCode int
	// Status is the reason phrase of StatusCode.
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to %s: %s", e.Op, e.Status)
}

func newStatusError(op string, resp *http.Response) *StatusError {
	text := http.StatusText(resp.StatusCode)
	if text == "" {
		text = resp.Status
	}
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Status: text}
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}
