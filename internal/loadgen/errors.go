package loadgen

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrConfig       = errors.New("invalid load configuration")
	ErrVerification = errors.New("verification failed")
)

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

// Retryable reports whether the request may succeed when repeated.
func (e *StatusError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}
