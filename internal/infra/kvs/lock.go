package kvs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const lockPrefix = "lock:"

// AcquireLock takes a best-effort distributed lock via set-if-absent with
// expiry. Returns false when another holder owns the lock.
func AcquireLock(ctx context.Context, store Store, name string, ttl time.Duration) (bool, error) {
	holder := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString())
	return store.SetNX(ctx, lockPrefix+name, holder, ttl)
}

// ReleaseLock drops the lock unconditionally. The TTL bounds the damage if a
// holder dies without releasing.
func ReleaseLock(ctx context.Context, store Store, name string) error {
	return store.Del(ctx, lockPrefix+name)
}
