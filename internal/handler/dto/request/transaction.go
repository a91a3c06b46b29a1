package request

import (
	"strings"
	"time"

	"ledger-gateway/internal/domain/transaction"
)

type SubmitTransactionRequest struct {
	CorrelationID string  `json:"correlationId" binding:"required"`
	ContainerID   string  `json:"containerId" binding:"required"`
	Instruction   string  `json:"instruction" binding:"required"`
	Source        string  `json:"source" binding:"required"`
	CallbackURL   *string `json:"callbackUrl,omitempty" binding:"omitempty,url"`
}

func (r SubmitTransactionRequest) GetCallbackURL() *string {
	if r.CallbackURL == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*r.CallbackURL)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (r SubmitTransactionRequest) ToPayload(now time.Time) transaction.Payload {
	return transaction.Payload{
		ContainerID: r.ContainerID,
		Instruction: r.Instruction,
		Source:      r.Source,
		Timestamp:   now.UTC().Format(time.RFC3339),
	}
}
