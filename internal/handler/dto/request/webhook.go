package request

import (
	"ledger-gateway/internal/domain/webhook"
)

type TestWebhookRequest struct {
	CorrelationID string           `json:"correlationId" binding:"required"`
	CallbackURL   string           `json:"callbackUrl" binding:"required,url"`
	Payload       *webhook.Payload `json:"payload,omitempty"`
}
