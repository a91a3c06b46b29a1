package response

import (
	"time"

	"ledger-gateway/internal/domain/transaction"
	"ledger-gateway/internal/usecase"
)

type TransactionResponse struct {
	CorrelationID string    `json:"correlationId"`
	TxID          string    `json:"txId"`
	Status        string    `json:"status"`
	BlockNumber   *int64    `json:"blockNumber,omitempty"`
	PayloadHash   *string   `json:"payloadHash,omitempty"`
	Error         *string   `json:"error,omitempty"`
	RetrievedAt   time.Time `json:"retrievedAt"`
}

type SubmitTransactionResponse struct {
	CorrelationID string    `json:"correlationId"`
	TxID          string    `json:"txId"`
	Status        string    `json:"status"`
	Message       string    `json:"message"`
	Timestamp     time.Time `json:"timestamp"`
}

type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	Pagination   Pagination            `json:"pagination"`
}

type RetryTransactionResponse struct {
	CorrelationID  string    `json:"correlationId"`
	PreviousStatus string    `json:"previousStatus"`
	RetryAt        time.Time `json:"retryAt"`
}

func FromRecord(correlationID string, rec *transaction.Record, now time.Time) *TransactionResponse {
	return &TransactionResponse{
		CorrelationID: correlationID,
		TxID:          rec.TxID,
		Status:        string(rec.Status),
		BlockNumber:   rec.BlockNumber,
		PayloadHash:   rec.PayloadHash,
		Error:         rec.Error,
		RetrievedAt:   now,
	}
}

func FromListedTransactions(items []usecase.ListedTransaction, total, limit, offset int, now time.Time) *TransactionListResponse {
	transactions := make([]TransactionResponse, 0, len(items))
	for _, item := range items {
		transactions = append(transactions, *FromRecord(item.CorrelationID, &item.Record, now))
	}
	return &TransactionListResponse{
		Transactions: transactions,
		Pagination: Pagination{
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+limit < total,
		},
	}
}
