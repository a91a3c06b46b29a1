package transaction

import (
	"errors"
)

var (
	ErrUnknownStatus = errors.New("unknown transaction status")
)

// Status is the lifecycle state of one ledger operation. SUBMITTED and PENDING
// are in flight; COMMITTED and FAILED are terminal and never transition again.
type Status string

const (
	StatusSubmitted Status = "SUBMITTED"
	StatusPending   Status = "PENDING"
	StatusCommitted Status = "COMMITTED"
	StatusFailed    Status = "FAILED"
)

func (s Status) IsTerminal() bool {
	return s == StatusCommitted || s == StatusFailed
}

func (s Status) Validate() error {
	switch s {
	case StatusSubmitted, StatusPending, StatusCommitted, StatusFailed:
		return nil
	default:
		return ErrUnknownStatus
	}
}

// Payload is the client-supplied operation input forwarded to the chaincode.
type Payload struct {
	ContainerID string `json:"containerId"`
	Instruction string `json:"instruction"`
	Source      string `json:"source"`
	Timestamp   string `json:"timestamp"`
}

// Record is the ledger record for one correlation id. It is serialized as-is
// at the store boundary; at most one record exists per correlation id.
type Record struct {
	TxID        string  `json:"txId"`
	Status      Status  `json:"status"`
	BlockNumber *int64  `json:"blockNumber,omitempty"`
	PayloadHash *string `json:"payloadHash,omitempty"`
	Error       *string `json:"error,omitempty"`
}

func NewSubmitted(txID string) Record {
	return Record{
		TxID:   txID,
		Status: StatusSubmitted,
	}
}

func NewFailed(errMsg string) Record {
	return Record{
		Status: StatusFailed,
		Error:  &errMsg,
	}
}

// Completed builds the terminal record written when the backend reports a
// commit (or a failure) for the transaction.
func Completed(txID string, status Status, blockNumber *int64, payloadHash *string, errMsg *string) Record {
	return Record{
		TxID:        txID,
		Status:      status,
		BlockNumber: blockNumber,
		PayloadHash: payloadHash,
		Error:       errMsg,
	}
}
