//go:build unit

package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"ledger-gateway/internal/domain/transaction"
	"ledger-gateway/internal/domain/webhook"

	"github.com/stretchr/testify/suite"
)

type WebhookHandlerTestSuite struct {
	suite.Suite
	f *handlerFixture
}

func (s *WebhookHandlerTestSuite) SetupTest() {
	s.f = newHandlerFixture(s.T())
}

func TestWebhookHandlerSuite(t *testing.T) {
	suite.Run(t, new(WebhookHandlerTestSuite))
}

func (s *WebhookHandlerTestSuite) pushDeadJob(correlationID string) *webhook.Job {
	payload := webhook.Payload{
		TxID:          "tx_" + correlationID,
		CorrelationID: correlationID,
		Status:        transaction.StatusCommitted,
	}
	job := webhook.NewJob(payload, "https://client.example.com/hook", s.f.clock.Now(), 0)
	job.Attempts = 5
	job.RecordFailure("callback responded with status 500 Internal Server Error")
	s.Require().NoError(s.f.webhooks.PushDLQ(context.Background(), job, s.f.clock.Now()))
	return job
}

func (s *WebhookHandlerTestSuite) TestStatus() {
	s.pushDeadJob("d1")

	w := s.f.do(http.MethodGet, "/api/webhooks/status", nil)
	s.Equal(http.StatusOK, w.Code)

	var resp struct {
		Service    string `json:"service"`
		Queue      int64  `json:"queue"`
		Retry      int64  `json:"retry"`
		DLQ        int64  `json:"dlq"`
		Processing bool   `json:"processing"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal("webhook", resp.Service)
	s.Equal(int64(0), resp.Queue)
	s.Equal(int64(1), resp.DLQ)
	s.True(resp.Processing)
}

func (s *WebhookHandlerTestSuite) TestDLQListing() {
	s.pushDeadJob("d1")
	s.pushDeadJob("d2")

	w := s.f.do(http.MethodGet, "/api/webhooks/dlq?limit=1&offset=0", nil)
	s.Equal(http.StatusOK, w.Code)

	var resp struct {
		Jobs       []json.RawMessage `json:"jobs"`
		Pagination struct {
			Total   int  `json:"total"`
			HasMore bool `json:"hasMore"`
		} `json:"pagination"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Len(resp.Jobs, 1)
	s.Equal(2, resp.Pagination.Total)
	s.True(resp.Pagination.HasMore)
}

func (s *WebhookHandlerTestSuite) TestReprocessAll() {
	s.pushDeadJob("d1")
	s.pushDeadJob("d2")

	w := s.f.do(http.MethodPost, "/api/webhooks/dlq/reprocess", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"reprocessedJobs":2`)

	queue, _, dlq, err := s.f.webhooks.Stats(context.Background())
	s.Require().NoError(err)
	s.Equal(int64(2), queue)
	s.Equal(int64(0), dlq)
}

func (s *WebhookHandlerTestSuite) TestRetrySingleJob() {
	job := s.pushDeadJob("d1")

	w := s.f.do(http.MethodPost, "/api/webhooks/retry/"+job.ID, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"correlationId":"d1"`)

	w = s.f.do(http.MethodPost, "/api/webhooks/retry/webhook:nope:0", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *WebhookHandlerTestSuite) TestHistory() {
	ctx := context.Background()
	s.pushDeadJob("failed-1")

	success := webhook.NewJob(webhook.Payload{
		TxID:          "tx_ok",
		CorrelationID: "ok-1",
		Status:        transaction.StatusCommitted,
	}, "https://client.example.com/hook", s.f.clock.Now(), 0)
	success.Attempts = 1
	s.Require().NoError(s.f.webhooks.ArchiveSuccess(ctx, success, s.f.clock.Now(), 200))

	w := s.f.do(http.MethodGet, "/api/webhooks/history/ok-1", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"status":"SUCCESS"`)
	s.Contains(w.Body.String(), `"responseStatus":200`)

	w = s.f.do(http.MethodGet, "/api/webhooks/history/failed-1", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"status":"FAILED"`)

	w = s.f.do(http.MethodGet, "/api/webhooks/history/nope", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *WebhookHandlerTestSuite) TestTriggerTest() {
	body := map[string]any{
		"correlationId": "test-1",
		"callbackUrl":   "https://client.example.com/hook",
	}

	w := s.f.do(http.MethodPost, "/api/webhooks/test", body)
	s.Equal(http.StatusAccepted, w.Code)
	s.Contains(w.Body.String(), `"correlationId":"test-1"`)
	s.Contains(w.Body.String(), `"status":"COMMITTED"`)

	job, err := s.f.webhooks.Dequeue(context.Background())
	s.Require().NoError(err)
	s.Require().NotNil(job)
	s.Equal("test-1", job.Payload.CorrelationID)
}

func (s *WebhookHandlerTestSuite) TestTriggerTestValidation() {
	cases := []struct {
		name string
		body map[string]any
	}{
		{name: "missing correlation id", body: map[string]any{"callbackUrl": "https://client.example.com/hook"}},
		{name: "missing callback URL", body: map[string]any{"correlationId": "test-1"}},
		{name: "malformed callback URL", body: map[string]any{"correlationId": "test-1", "callbackUrl": "nope"}},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			w := s.f.do(http.MethodPost, "/api/webhooks/test", tc.body)
			s.Equal(http.StatusBadRequest, w.Code)
		})
	}
}

func (s *WebhookHandlerTestSuite) TestRetryAtUsesClock() {
	job := s.pushDeadJob("d1")

	w := s.f.do(http.MethodPost, "/api/webhooks/retry/"+job.ID, nil)
	s.Equal(http.StatusOK, w.Code)

	var resp struct {
		RetryAt time.Time `json:"retryAt"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.True(resp.RetryAt.Equal(s.f.clock.Now()))
}
