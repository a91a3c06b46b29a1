// Package fabric is the boundary to the distributed ledger. The gateway only
// consumes a transaction id at submission time and a completion notice once
// the network commits (or rejects) the transaction.
package fabric

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"ledger-gateway/internal/domain/transaction"
	"ledger-gateway/internal/pkg/config"
)

// CompletionNotice is what the ledger reports once a transaction reaches a
// terminal state.
type CompletionNotice struct {
	TxID        string
	Status      transaction.Status
	BlockNumber *int64
	PayloadHash *string
	Error       *string
}

// CompletionHandler receives asynchronous completion notices. Wired after
// construction because the handler (the transaction usecase) also depends on
// the client for submissions.
type CompletionHandler interface {
	RecordCompletion(ctx context.Context, notice CompletionNotice) error
}

type Client interface {
	Submit(ctx context.Context, correlationID string, payload transaction.Payload) (string, error)
}

// SimulatedClient stands in for a real gateway connection. Submissions get a
// synthetic transaction id; a commit notice follows after the configured
// delay. With a zero delay nothing fires on its own and Complete must be
// called explicitly, which is what tests do.
type SimulatedClient struct {
	cfg config.FabricConfig

	mu       sync.Mutex
	handler  CompletionHandler
	payloads map[string]transaction.Payload
}

var _ Client = (*SimulatedClient)(nil)

func NewSimulatedClient(cfg config.FabricConfig) *SimulatedClient {
	return &SimulatedClient{
		cfg:      cfg,
		payloads: make(map[string]transaction.Payload),
	}
}

func (c *SimulatedClient) SetCompletionHandler(handler CompletionHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

func (c *SimulatedClient) Submit(_ context.Context, correlationID string, payload transaction.Payload) (string, error) {
	txID := fmt.Sprintf("tx_%d_%s", time.Now().UnixMilli(), randomSuffix())

	c.mu.Lock()
	c.payloads[txID] = payload
	c.mu.Unlock()

	slog.Info("simulated transaction submitted",
		"correlation_id", correlationID,
		"tx_id", txID,
		"channel", c.cfg.ChannelName,
		"chaincode", c.cfg.ChaincodeName,
	)

	if c.cfg.SimulatedCommitDelay > 0 {
		time.AfterFunc(c.cfg.SimulatedCommitDelay, func() {
			c.Complete(context.Background(), txID)
		})
	}

	return txID, nil
}

// Complete emits the commit notice for a previously submitted transaction.
func (c *SimulatedClient) Complete(ctx context.Context, txID string) {
	c.mu.Lock()
	handler := c.handler
	payload, ok := c.payloads[txID]
	if ok {
		delete(c.payloads, txID)
	}
	c.mu.Unlock()

	if !ok {
		slog.Warn("completion for unknown simulated transaction", "tx_id", txID)
		return
	}
	if handler == nil {
		slog.Warn("no completion handler registered", "tx_id", txID)
		return
	}

	blockNumber := int64(rand.Intn(1000) + 1)
	hash := PayloadHash(payload)
	notice := CompletionNotice{
		TxID:        txID,
		Status:      transaction.StatusCommitted,
		BlockNumber: &blockNumber,
		PayloadHash: &hash,
	}

	if err := handler.RecordCompletion(ctx, notice); err != nil {
		slog.Error("failed to record simulated completion", "tx_id", txID, "error", err)
	}
}

// PayloadHash is the content hash stamped on committed records.
func PayloadHash(payload transaction.Payload) string {
	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func randomSuffix() string {
	return strconv.FormatUint(rand.Uint64()%(36*36*36*36*36*36), 36)
}
