// Package callbackstore keeps the callback URL registered at submission time
// until the completion notice consumes it (or it ages out).
package callbackstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ledger-gateway/internal/infra"
	"ledger-gateway/internal/infra/kvs"
)

const (
	keyPrefix = "callback:"

	// DefaultTTL bounds how long an unconsumed registration lingers.
	DefaultTTL = 24 * time.Hour
	// TestTriggerTTL is the shorter window used by manual webhook triggers.
	TestTriggerTTL = time.Hour
)

type Registration struct {
	CallbackURL string    `json:"callbackUrl"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Store struct {
	kv kvs.Store
}

func New(kv kvs.Store) *Store {
	return &Store{kv: kv}
}

func (s *Store) Register(ctx context.Context, correlationID string, reg Registration, ttl time.Duration) error {
	data, err := json.Marshal(reg)
	if err != nil {
		return infra.WrapRepoErr("failed to marshal callback registration", err)
	}
	if err := s.kv.SetEx(ctx, keyPrefix+correlationID, string(data), ttl); err != nil {
		return infra.WrapRepoErr("failed to store callback registration", err)
	}
	return nil
}

// Resolve returns the registration without deleting it: duplicate completion
// notices for the same correlation id must still resolve.
func (s *Store) Resolve(ctx context.Context, correlationID string) (*Registration, error) {
	data, err := s.kv.Get(ctx, keyPrefix+correlationID)
	if err != nil {
		if errors.Is(err, kvs.ErrNotFound) {
			return nil, infra.WrapRepoErr("callback registration not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to get callback registration", err)
	}

	var reg Registration
	if err := json.Unmarshal([]byte(data), &reg); err != nil {
		return nil, infra.WrapRepoErr("failed to unmarshal callback registration", err)
	}
	return &reg, nil
}
