package webhook

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// RetryDelays is the fixed backoff ladder indexed by attempts-1. Attempts past
// the table reuse the last entry.
var RetryDelays = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	15 * time.Second,
	60 * time.Second,
	300 * time.Second,
}

// HTTPError is a delivery attempt that completed with an error status code.
// Transport failures (DNS, connection, timeout) stay as plain errors.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("callback responded with status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ShouldRetry classifies a failed delivery. Transport errors are always
// retryable. 4xx responses are terminal except 408 and 429; 5xx are retryable.
func ShouldRetry(err error) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return true
	}

	status := httpErr.StatusCode
	if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
		return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
	}
	return status >= http.StatusInternalServerError
}

// NextDelay returns the backoff for the given attempt count (1-based, the
// attempt that just failed).
func NextDelay(attempts int) time.Duration {
	idx := attempts - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(RetryDelays) {
		idx = len(RetryDelays) - 1
	}
	return RetryDelays[idx]
}
