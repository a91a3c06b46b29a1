package response

import (
	"time"

	"ledger-gateway/internal/domain/webhook"
	"ledger-gateway/internal/usecase"
)

type WebhookStatsResponse struct {
	Service    string    `json:"service"`
	Queue      int64     `json:"queue"`
	Retry      int64     `json:"retry"`
	DLQ        int64     `json:"dlq"`
	Processing bool      `json:"processing"`
	Timestamp  time.Time `json:"timestamp"`
}

type DLQJobResponse struct {
	ID            string     `json:"id"`
	CorrelationID string     `json:"correlationId"`
	CallbackURL   string     `json:"callbackUrl"`
	Attempts      int        `json:"attempts"`
	LastError     *string    `json:"lastError,omitempty"`
	MovedToDLQAt  *time.Time `json:"movedToDlqAt,omitempty"`
}

type DLQPageResponse struct {
	Jobs       []DLQJobResponse `json:"jobs"`
	Pagination Pagination       `json:"pagination"`
}

type ReplayAllResponse struct {
	ReprocessedJobs int       `json:"reprocessedJobs"`
	Timestamp       time.Time `json:"timestamp"`
}

type ReplayJobResponse struct {
	JobID         string    `json:"jobId"`
	CorrelationID string    `json:"correlationId"`
	RetryAt       time.Time `json:"retryAt"`
}

type DeliveryHistoryResponse struct {
	CorrelationID  string     `json:"correlationId"`
	Status         string     `json:"status"`
	CallbackURL    string     `json:"callbackUrl"`
	Attempts       int        `json:"attempts"`
	NextRetry      *int64     `json:"nextRetry,omitempty"`
	LastError      *string    `json:"lastError,omitempty"`
	MovedToDLQAt   *time.Time `json:"movedToDlqAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	ResponseStatus *int       `json:"responseStatus,omitempty"`
	RetrievedAt    time.Time  `json:"retrievedAt"`
}

type TestWebhookResponse struct {
	CorrelationID string          `json:"correlationId"`
	CallbackURL   string          `json:"callbackUrl"`
	Payload       webhook.Payload `json:"payload"`
	Timestamp     time.Time       `json:"timestamp"`
}

func FromStats(stats *usecase.WebhookStats, now time.Time) *WebhookStatsResponse {
	return &WebhookStatsResponse{
		Service:    "webhook",
		Queue:      stats.Queue,
		Retry:      stats.Retry,
		DLQ:        stats.DLQ,
		Processing: stats.Processing,
		Timestamp:  now,
	}
}

func FromDLQJob(job *webhook.Job) DLQJobResponse {
	return DLQJobResponse{
		ID:            job.ID,
		CorrelationID: job.Payload.CorrelationID,
		CallbackURL:   job.CallbackURL,
		Attempts:      job.Attempts,
		LastError:     job.LastError,
		MovedToDLQAt:  job.MovedToDLQAt,
	}
}

func FromDLQPage(jobs []*webhook.Job, total int64, limit, offset int) *DLQPageResponse {
	items := make([]DLQJobResponse, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, FromDLQJob(job))
	}
	return &DLQPageResponse{
		Jobs: items,
		Pagination: Pagination{
			Total:   int(total),
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+limit < int(total),
		},
	}
}

func FromDeliveryHistory(history *usecase.DeliveryHistory, now time.Time) *DeliveryHistoryResponse {
	return &DeliveryHistoryResponse{
		CorrelationID:  history.CorrelationID,
		Status:         history.Status,
		CallbackURL:    history.CallbackURL,
		Attempts:       history.Attempts,
		NextRetry:      history.NextRetry,
		LastError:      history.LastError,
		MovedToDLQAt:   history.MovedToDLQAt,
		CompletedAt:    history.CompletedAt,
		ResponseStatus: history.ResponseStatus,
		RetrievedAt:    now,
	}
}
