// Package ledgerstore persists the transaction ledger: one record per
// correlation id plus a reverse index from backend transaction id.
package ledgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"ledger-gateway/internal/domain/transaction"
	"ledger-gateway/internal/infra"
	"ledger-gateway/internal/infra/kvs"
)

const (
	recordPrefix  = "tx:"
	reversePrefix = "txid:"

	// Records age out of the store; the gateway never deletes them itself.
	NonTerminalTTL = time.Hour
	TerminalTTL    = 24 * time.Hour
)

type Store struct {
	kv kvs.Store
}

func New(kv kvs.Store) *Store {
	return &Store{kv: kv}
}

func RecordTTL(status transaction.Status) time.Duration {
	if status.IsTerminal() {
		return TerminalTTL
	}
	return NonTerminalTTL
}

func (s *Store) Save(ctx context.Context, correlationID string, rec transaction.Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return infra.WrapRepoErr("failed to marshal transaction record", err)
	}
	if err := s.kv.SetEx(ctx, recordPrefix+correlationID, string(data), ttl); err != nil {
		return infra.WrapRepoErr("failed to store transaction record", err)
	}
	return nil
}

// SaveReverseIndex maps a backend transaction id back to its correlation id.
// The TTL matches the record so both expire together.
func (s *Store) SaveReverseIndex(ctx context.Context, txID, correlationID string, ttl time.Duration) error {
	if err := s.kv.SetEx(ctx, reversePrefix+txID, correlationID, ttl); err != nil {
		return infra.WrapRepoErr("failed to store reverse index", err)
	}
	return nil
}

func (s *Store) FindByCorrelationID(ctx context.Context, correlationID string) (*transaction.Record, error) {
	data, err := s.kv.Get(ctx, recordPrefix+correlationID)
	if err != nil {
		if errors.Is(err, kvs.ErrNotFound) {
			return nil, infra.WrapRepoErr("transaction record not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to get transaction record", err)
	}

	var rec transaction.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, infra.WrapRepoErr("failed to unmarshal transaction record", err)
	}
	return &rec, nil
}

func (s *Store) ResolveTxID(ctx context.Context, txID string) (string, error) {
	correlationID, err := s.kv.Get(ctx, reversePrefix+txID)
	if err != nil {
		if errors.Is(err, kvs.ErrNotFound) {
			return "", infra.WrapRepoErr("reverse index not found", err, infra.KindNotFound)
		}
		return "", infra.WrapRepoErr("failed to resolve transaction id", err)
	}
	return correlationID, nil
}

// Delete removes the record and its reverse index so the client may resubmit.
// Only the operator retry path uses this; records otherwise age out.
func (s *Store) Delete(ctx context.Context, correlationID, txID string) error {
	keys := []string{recordPrefix + correlationID}
	if txID != "" {
		keys = append(keys, reversePrefix+txID)
	}
	if err := s.kv.Del(ctx, keys...); err != nil {
		return infra.WrapRepoErr("failed to delete transaction record", err)
	}
	return nil
}

// ListCorrelationIDs scans the record keyspace. Debug listing only; KEYS is not
// for hot paths.
func (s *Store) ListCorrelationIDs(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx, recordPrefix+"*")
	if err != nil {
		return nil, infra.WrapRepoErr("failed to list transaction keys", err)
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, strings.TrimPrefix(key, recordPrefix))
	}
	return ids, nil
}
