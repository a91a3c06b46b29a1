package api

import (
	"errors"
	"net/http"

	reqdto "ledger-gateway/internal/handler/dto/request"
	resdto "ledger-gateway/internal/handler/dto/response"
	"ledger-gateway/internal/handler/httperr"
	"ledger-gateway/internal/handler/middleware"
	"ledger-gateway/internal/pkg/clock"
	"ledger-gateway/internal/usecase"

	"github.com/gin-gonic/gin"
)

type WebhookHandler struct {
	webhookUseCase usecase.WebhookUseCase
	clock          clock.Clock
}

func NewWebhookHandler(webhookUseCase usecase.WebhookUseCase, clk clock.Clock) *WebhookHandler {
	return &WebhookHandler{
		webhookUseCase: webhookUseCase,
		clock:          clk,
	}
}

// GetStats reports queue depths and whether the dispatcher loop is running.
func (h *WebhookHandler) GetStats(c *gin.Context) {
	stats, err := h.webhookUseCase.Stats(c.Request.Context())
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Failed to load webhook stats", nil)
		return
	}

	c.JSON(http.StatusOK, resdto.FromStats(stats, h.clock.Now().UTC()))
}

// GetDLQ pages through jobs parked in the dead letter queue.
func (h *WebhookHandler) GetDLQ(c *gin.Context) {
	limit := parseIntQuery(c, "limit", usecase.MaxDLQPageSize)
	offset := parseIntQuery(c, "offset", 0)

	jobs, total, err := h.webhookUseCase.DLQPage(c.Request.Context(), int64(offset), int64(limit))
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Failed to read dead letter queue", nil)
		return
	}

	c.JSON(http.StatusOK, resdto.FromDLQPage(jobs, total, limit, offset))
}

// ReplayDLQ requeues every dead letter job with attempt counters reset.
func (h *WebhookHandler) ReplayDLQ(c *gin.Context) {
	count, err := h.webhookUseCase.ReplayAll(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrReplayInProgress):
			httperr.AbortWithError(c, http.StatusConflict, err, "DLQ replay already in progress", nil)
		default:
			httperr.AbortWithError(c, http.StatusInternalServerError, err, "DLQ replay failed", nil)
		}
		return
	}

	c.JSON(http.StatusOK, resdto.ReplayAllResponse{
		ReprocessedJobs: count,
		Timestamp:       h.clock.Now().UTC(),
	})
}

// ReplayJob requeues a single dead letter job by its id.
func (h *WebhookHandler) ReplayJob(c *gin.Context) {
	jobID := c.Param("jobId")

	job, err := h.webhookUseCase.ReplayJob(c.Request.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrJobNotFound):
			httperr.AbortWithError(c, http.StatusNotFound, err, "Job not found in dead letter queue", nil)
		default:
			httperr.AbortWithError(c, http.StatusInternalServerError, err, "Failed to replay job", nil)
		}
		return
	}

	c.JSON(http.StatusOK, resdto.ReplayJobResponse{
		JobID:         job.ID,
		CorrelationID: job.Payload.CorrelationID,
		RetryAt:       h.clock.Now().UTC(),
	})
}

// GetHistory returns the delivery outcome for a correlation id.
func (h *WebhookHandler) GetHistory(c *gin.Context) {
	correlationID := c.Param("correlationId")

	history, err := h.webhookUseCase.History(c.Request.Context(), correlationID)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrHistoryNotFound):
			httperr.AbortWithError(c, http.StatusNotFound, err, "No delivery history for correlation id", nil)
		default:
			httperr.AbortWithError(c, http.StatusInternalServerError, err, "Failed to load delivery history", nil)
		}
		return
	}

	c.JSON(http.StatusOK, resdto.FromDeliveryHistory(history, h.clock.Now().UTC()))
}

// TriggerTest enqueues a synthetic committed notification against a caller
// supplied callback URL.
func (h *WebhookHandler) TriggerTest(c *gin.Context) {
	var req reqdto.TestWebhookRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, bindErr, "Invalid request", nil)
		return
	}

	params := usecase.TriggerTestParams{
		CorrelationID: req.CorrelationID,
		CallbackURL:   req.CallbackURL,
		Payload:       req.Payload,
		UserID:        middleware.GetUserID(c),
	}

	payload, err := h.webhookUseCase.TriggerTest(c.Request.Context(), params)
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Failed to enqueue test webhook", nil)
		return
	}

	c.JSON(http.StatusAccepted, resdto.TestWebhookResponse{
		CorrelationID: req.CorrelationID,
		CallbackURL:   req.CallbackURL,
		Payload:       *payload,
		Timestamp:     h.clock.Now().UTC(),
	})
}
