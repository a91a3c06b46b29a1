package api

import (
	"errors"
	"net/http"
	"strconv"

	reqdto "ledger-gateway/internal/handler/dto/request"
	resdto "ledger-gateway/internal/handler/dto/response"
	"ledger-gateway/internal/handler/middleware"
	"ledger-gateway/internal/pkg/clock"
	"ledger-gateway/internal/usecase"

	"github.com/gin-gonic/gin"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

type TransactionHandler struct {
	transactionUseCase usecase.TransactionUseCase
	clock              clock.Clock
}

func NewTransactionHandler(transactionUseCase usecase.TransactionUseCase, clk clock.Clock) *TransactionHandler {
	return &TransactionHandler{
		transactionUseCase: transactionUseCase,
		clock:              clk,
	}
}

// SubmitTransaction accepts a ledger instruction keyed by correlation id.
// Duplicate submissions return the existing record with 200 instead of 201.
func (h *TransactionHandler) SubmitTransaction(c *gin.Context) {
	var req reqdto.SubmitTransactionRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	params := usecase.SubmitParams{
		CorrelationID: req.CorrelationID,
		Payload:       req.ToPayload(h.clock.Now()),
		CallbackURL:   req.GetCallbackURL(),
		UserID:        middleware.GetUserID(c),
	}

	rec, existing, err := h.transactionUseCase.Submit(c.Request.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrSubmitFailed):
			c.JSON(http.StatusBadGateway, gin.H{
				"error": "Transaction submission to the ledger failed",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}
		return
	}

	status := http.StatusCreated
	message := "Transaction submitted"
	if existing {
		status = http.StatusOK
		message = "Transaction already submitted"
	}
	c.JSON(status, resdto.SubmitTransactionResponse{
		CorrelationID: req.CorrelationID,
		TxID:          rec.TxID,
		Status:        string(rec.Status),
		Message:       message,
		Timestamp:     h.clock.Now().UTC(),
	})
}

// GetTransaction returns the record for a correlation id.
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	correlationID := c.Param("correlationId")

	rec, err := h.transactionUseCase.GetByCorrelationID(c.Request.Context(), correlationID)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrTransactionNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Transaction not found",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}
		return
	}

	c.JSON(http.StatusOK, resdto.FromRecord(correlationID, rec, h.clock.Now().UTC()))
}

// GetTransactionByTxID resolves a ledger transaction id through the reverse
// index and returns the same view as GetTransaction.
func (h *TransactionHandler) GetTransactionByTxID(c *gin.Context) {
	txID := c.Param("txId")

	rec, err := h.transactionUseCase.GetByTxID(c.Request.Context(), txID)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrTransactionNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Transaction not found",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}
		return
	}

	c.JSON(http.StatusOK, resdto.FromRecord(rec.TxID, rec, h.clock.Now().UTC()))
}

// ListTransactions pages through all live records. Debug surface.
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	limit := parseIntQuery(c, "limit", defaultListLimit)
	offset := parseIntQuery(c, "offset", 0)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	items, total, err := h.transactionUseCase.List(c.Request.Context(), offset, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
		return
	}

	c.JSON(http.StatusOK, resdto.FromListedTransactions(items, total, limit, offset, h.clock.Now().UTC()))
}

// RetryTransaction clears a failed record so the same correlation id can be
// submitted again.
func (h *TransactionHandler) RetryTransaction(c *gin.Context) {
	correlationID := c.Param("correlationId")

	prev, err := h.transactionUseCase.Retry(c.Request.Context(), correlationID)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrTransactionNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Transaction not found",
			})
		case errors.Is(err, usecase.ErrTransactionCommitted):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Transaction already committed, cannot retry",
			})
		case errors.Is(err, usecase.ErrTransactionPending):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Transaction is still pending, cannot retry",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}
		return
	}

	c.JSON(http.StatusOK, resdto.RetryTransactionResponse{
		CorrelationID:  correlationID,
		PreviousStatus: string(prev.Status),
		RetryAt:        h.clock.Now().UTC(),
	})
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
