package webhook

import (
	"fmt"
	"time"

	"ledger-gateway/internal/domain/transaction"
)

const DefaultMaxAttempts = 5

// Payload is the notification body delivered to the callback URL. Receivers
// deduplicate on (correlationId, txId); delivery is at-least-once.
type Payload struct {
	TxID          string             `json:"txId"`
	CorrelationID string             `json:"correlationId"`
	Status        transaction.Status `json:"status"`
	BlockNumber   *int64             `json:"blockNumber,omitempty"`
	PayloadHash   *string            `json:"payloadHash,omitempty"`
	Error         *string            `json:"error,omitempty"`
}

// Job is one pending delivery. A job lives in exactly one of: the webhook
// queue, the retry scheduler, or the DLQ.
type Job struct {
	ID           string     `json:"id"`
	Payload      Payload    `json:"payload"`
	CallbackURL  string     `json:"callbackUrl"`
	Attempts     int        `json:"attempts"`
	MaxAttempts  int        `json:"maxAttempts"`
	NextRetry    *int64     `json:"nextRetry,omitempty"` // unix millis
	LastError    *string    `json:"lastError,omitempty"`
	MovedToDLQAt *time.Time `json:"movedToDlqAt,omitempty"`
}

func NewJob(payload Payload, callbackURL string, createdAt time.Time, maxAttempts int) *Job {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Job{
		ID:          fmt.Sprintf("webhook:%s:%d", payload.CorrelationID, createdAt.UnixMilli()),
		Payload:     payload,
		CallbackURL: callbackURL,
		Attempts:    0,
		MaxAttempts: maxAttempts,
	}
}

func (j *Job) Exhausted() bool {
	return j.Attempts >= j.MaxAttempts
}

// ResetForReplay clears the failure state before an operator-triggered
// requeue. This is the only path that decrements the attempt counter.
func (j *Job) ResetForReplay() {
	j.Attempts = 0
	j.NextRetry = nil
	j.LastError = nil
	j.MovedToDLQAt = nil
}

func (j *Job) RecordFailure(errMsg string) {
	j.LastError = &errMsg
}

func (j *Job) ScheduleAt(dueAt time.Time) {
	millis := dueAt.UnixMilli()
	j.NextRetry = &millis
}
