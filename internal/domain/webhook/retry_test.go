//go:build unit

package webhook_test

import (
	"errors"
	"testing"
	"time"

	"ledger-gateway/internal/domain/webhook"

	"github.com/stretchr/testify/assert"
)

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		retry bool
	}{
		{name: "transport error", err: errors.New("dial tcp: connection refused"), retry: true},
		{name: "400 bad request", err: &webhook.HTTPError{StatusCode: 400}, retry: false},
		{name: "403 forbidden", err: &webhook.HTTPError{StatusCode: 403}, retry: false},
		{name: "404 not found", err: &webhook.HTTPError{StatusCode: 404}, retry: false},
		{name: "408 request timeout", err: &webhook.HTTPError{StatusCode: 408}, retry: true},
		{name: "429 too many requests", err: &webhook.HTTPError{StatusCode: 429}, retry: true},
		{name: "500 internal server error", err: &webhook.HTTPError{StatusCode: 500}, retry: true},
		{name: "502 bad gateway", err: &webhook.HTTPError{StatusCode: 502}, retry: true},
		{name: "503 service unavailable", err: &webhook.HTTPError{StatusCode: 503}, retry: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.retry, webhook.ShouldRetry(tc.err))
		})
	}
}

func TestShouldRetryWrappedHTTPError(t *testing.T) {
	wrapped := errors.Join(errors.New("delivery failed"), &webhook.HTTPError{StatusCode: 403})
	assert.False(t, webhook.ShouldRetry(wrapped))
}

func TestNextDelay(t *testing.T) {
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{attempts: 1, want: 1 * time.Second},
		{attempts: 2, want: 5 * time.Second},
		{attempts: 3, want: 15 * time.Second},
		{attempts: 4, want: 60 * time.Second},
		{attempts: 5, want: 300 * time.Second},
		{attempts: 6, want: 300 * time.Second},
		{attempts: 0, want: 1 * time.Second},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, webhook.NextDelay(tc.attempts), "attempts=%d", tc.attempts)
	}
}
