//go:build unit

package webhook_test

import (
	"testing"
	"time"

	"ledger-gateway/internal/domain/transaction"
	"ledger-gateway/internal/domain/webhook"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJob(t *testing.T) *webhook.Job {
	t.Helper()
	payload := webhook.Payload{
		TxID:          "tx_42",
		CorrelationID: "abc-1",
		Status:        transaction.StatusCommitted,
	}
	createdAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return webhook.NewJob(payload, "https://client.example.com/hook", createdAt, 0)
}

func TestNewJob(t *testing.T) {
	job := newTestJob(t)

	assert.Equal(t, "webhook:abc-1:1767323045000", job.ID)
	assert.Equal(t, "https://client.example.com/hook", job.CallbackURL)
	assert.Equal(t, 0, job.Attempts)
	assert.Equal(t, webhook.DefaultMaxAttempts, job.MaxAttempts, "non-positive cap falls back to the default")
	assert.Nil(t, job.NextRetry)
	assert.Nil(t, job.MovedToDLQAt)
}

func TestNewJobConfiguredCap(t *testing.T) {
	job := webhook.NewJob(webhook.Payload{CorrelationID: "abc-1"}, "https://client.example.com/hook", time.Now(), 2)

	assert.Equal(t, 2, job.MaxAttempts)

	job.Attempts = 1
	assert.False(t, job.Exhausted())
	job.Attempts = 2
	assert.True(t, job.Exhausted())
}

func TestJobExhausted(t *testing.T) {
	job := newTestJob(t)

	for i := 0; i < webhook.DefaultMaxAttempts-1; i++ {
		job.Attempts++
		assert.False(t, job.Exhausted(), "attempt %d should not exhaust the job", job.Attempts)
	}
	job.Attempts++
	assert.True(t, job.Exhausted())
}

func TestJobResetForReplay(t *testing.T) {
	job := newTestJob(t)
	job.Attempts = 5
	job.RecordFailure("callback responded with status 500 Internal Server Error")
	job.ScheduleAt(time.Now().Add(time.Minute))
	movedAt := time.Now()
	job.MovedToDLQAt = &movedAt

	job.ResetForReplay()

	assert.Equal(t, 0, job.Attempts)
	assert.Nil(t, job.NextRetry)
	assert.Nil(t, job.LastError)
	assert.Nil(t, job.MovedToDLQAt)
}

func TestJobScheduleAt(t *testing.T) {
	job := newTestJob(t)
	dueAt := time.Date(2026, 1, 2, 3, 5, 0, 0, time.UTC)

	job.ScheduleAt(dueAt)

	require.NotNil(t, job.NextRetry)
	assert.Equal(t, dueAt.UnixMilli(), *job.NextRetry)
}
