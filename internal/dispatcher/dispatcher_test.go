//go:build unit

package dispatcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ledger-gateway/internal/domain/transaction"
	"ledger-gateway/internal/domain/webhook"
	"ledger-gateway/internal/infra"
	"ledger-gateway/internal/infra/kvs"
	"ledger-gateway/internal/infra/webhookstore"
	"ledger-gateway/internal/pkg/clock"
	"ledger-gateway/internal/pkg/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-webhook-secret"

type fixture struct {
	dispatcher *Dispatcher
	store      *webhookstore.Store
	clock      *clock.MockClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := webhookstore.New(kvs.NewFromRedis(rdb))
	clk := clock.NewMockClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	cfg := config.WebhookConfig{
		Secret:          testSecret,
		PollInterval:    5 * time.Second,
		DeliveryTimeout: 2 * time.Second,
		MaxAttempts:     5,
	}

	return &fixture{
		dispatcher: New(store, cfg, clk),
		store:      store,
		clock:      clk,
	}
}

func (f *fixture) enqueue(t *testing.T, callbackURL string) *webhook.Job {
	t.Helper()
	block := int64(100)
	payload := webhook.Payload{
		TxID:          "tx_42",
		CorrelationID: "abc-1",
		Status:        transaction.StatusCommitted,
		BlockNumber:   &block,
	}
	job := webhook.NewJob(payload, callbackURL, f.clock.Now(), 0)
	require.NoError(t, f.store.Enqueue(context.Background(), job))
	return job
}

func TestDeliverSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var gotBody []byte
	var gotSignature, gotTimestamp, gotAttempt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get("X-Ledger-Signature")
		gotTimestamp = r.Header.Get("X-Ledger-Timestamp")
		gotAttempt = r.Header.Get("X-Ledger-Attempt")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f.enqueue(t, server.URL)
	f.dispatcher.runCycle(ctx)

	assert.Equal(t, f.clock.Now().UTC().Format(time.RFC3339), gotTimestamp)
	assert.Equal(t, webhook.Sign(testSecret, gotTimestamp, gotBody), gotSignature)
	assert.Equal(t, "1", gotAttempt)
	assert.Contains(t, string(gotBody), `"correlationId":"abc-1"`)
	assert.Contains(t, string(gotBody), `"status":"COMMITTED"`)

	record, err := f.store.FindSuccess(ctx, "abc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, record.Attempts)
	assert.Equal(t, http.StatusOK, record.ResponseStatus)

	// The job left the queue for good
	queue, retry, dlq, err := f.store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, queue+retry+dlq)
}

func TestRetryLadderThenSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f.enqueue(t, server.URL)

	// First attempt fails, lands in the scheduler 1s out
	f.dispatcher.runCycle(ctx)
	pending, err := f.store.FindPendingByCorrelation(ctx, "abc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, pending.Attempts)
	require.NotNil(t, pending.NextRetry)
	assert.Equal(t, f.clock.Now().Add(1*time.Second).UnixMilli(), *pending.NextRetry)

	// Second attempt, 5s backoff
	f.clock.Add(2 * time.Second)
	f.dispatcher.runCycle(ctx)
	pending, err = f.store.FindPendingByCorrelation(ctx, "abc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, pending.Attempts)
	assert.Equal(t, f.clock.Now().Add(5*time.Second).UnixMilli(), *pending.NextRetry)

	// Third attempt, 15s backoff
	f.clock.Add(6 * time.Second)
	f.dispatcher.runCycle(ctx)
	pending, err = f.store.FindPendingByCorrelation(ctx, "abc-1")
	require.NoError(t, err)
	assert.Equal(t, 3, pending.Attempts)
	assert.Equal(t, f.clock.Now().Add(15*time.Second).UnixMilli(), *pending.NextRetry)

	// Fourth attempt succeeds
	f.clock.Add(16 * time.Second)
	f.dispatcher.runCycle(ctx)

	record, err := f.store.FindSuccess(ctx, "abc-1")
	require.NoError(t, err)
	assert.Equal(t, 4, record.Attempts)
	assert.Equal(t, int32(4), calls.Load())
}

func TestTerminal4xxGoesStraightToDLQ(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	f.enqueue(t, server.URL)
	f.dispatcher.runCycle(ctx)

	jobs, total, err := f.store.DLQPage(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, jobs, 1)
	assert.Equal(t, 1, jobs[0].Attempts, "terminal status must not burn the retry budget")
	require.NotNil(t, jobs[0].LastError)
	assert.Contains(t, *jobs[0].LastError, "403")
	require.NotNil(t, jobs[0].MovedToDLQAt)
}

func TestRateLimited429IsRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	f.enqueue(t, server.URL)
	f.dispatcher.runCycle(ctx)

	pending, err := f.store.FindPendingByCorrelation(ctx, "abc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, pending.Attempts)
	require.NotNil(t, pending.NextRetry)

	_, _, dlq, err := f.store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, dlq)
}

func TestExhaustedJobMovesToDLQ(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f.enqueue(t, server.URL)

	for i := 0; i < 5; i++ {
		f.dispatcher.runCycle(ctx)
		f.clock.Add(10 * time.Minute)
	}

	jobs, total, err := f.store.DLQPage(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, jobs, 1)
	assert.Equal(t, 5, jobs[0].Attempts)

	_, retry, _, err := f.store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, retry)
}

func TestTransportErrorIsRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	server.Close() // connection refused from here on

	f.enqueue(t, server.URL)
	f.dispatcher.runCycle(ctx)

	pending, err := f.store.FindPendingByCorrelation(ctx, "abc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, pending.Attempts)
	require.NotNil(t, pending.LastError)
}

func TestBadJobDoesNotHaltTheCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	// A job with an unparseable callback URL fails, the due retry still runs
	bad := webhook.NewJob(webhook.Payload{CorrelationID: "bad"}, ":// not a url", f.clock.Now(), 0)
	require.NoError(t, f.store.Enqueue(ctx, bad))

	good := webhook.NewJob(webhook.Payload{CorrelationID: "good", Status: transaction.StatusCommitted}, server.URL, f.clock.Now(), 0)
	good.Attempts = 1
	require.NoError(t, f.store.ScheduleRetry(ctx, good, f.clock.Now().Add(-time.Second)))

	f.dispatcher.runCycle(ctx)

	record, err := f.store.FindSuccess(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, 2, record.Attempts)

	_, err = f.store.FindDLQByCorrelation(ctx, "bad")
	require.Error(t, err)
	assert.True(t, infra.IsKind(err, infra.KindNotFound), "malformed URL is retryable, not dead lettered yet")
}

// flakyZRemStore fails the nth sorted set removal to mimic a store dropping
// out mid-drain.
type flakyZRemStore struct {
	kvs.Store
	failOn int
	calls  int
}

func (s *flakyZRemStore) ZRem(ctx context.Context, key string, members ...string) (int64, error) {
	s.calls++
	if s.calls == s.failOn {
		return 0, errors.New("connection reset by peer")
	}
	return s.Store.ZRem(ctx, key, members...)
}

func TestPartialDrainStillDeliversRemovedJobs(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	flaky := &flakyZRemStore{Store: kvs.NewFromRedis(rdb), failOn: 2}
	store := webhookstore.New(flaky)
	clk := clock.NewMockClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	cfg := config.WebhookConfig{
		Secret:          testSecret,
		PollInterval:    5 * time.Second,
		DeliveryTimeout: 2 * time.Second,
		MaxAttempts:     5,
	}
	d := New(store, cfg, clk)
	ctx := context.Background()

	var delivered atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		delivered.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	first := webhook.NewJob(webhook.Payload{CorrelationID: "first", Status: transaction.StatusCommitted}, server.URL, clk.Now(), 0)
	first.Attempts = 1
	require.NoError(t, store.ScheduleRetry(ctx, first, clk.Now().Add(-2*time.Second)))

	second := webhook.NewJob(webhook.Payload{CorrelationID: "second", Status: transaction.StatusCommitted}, server.URL, clk.Now(), 0)
	second.Attempts = 1
	require.NoError(t, store.ScheduleRetry(ctx, second, clk.Now().Add(-time.Second)))

	// Removing the second member fails mid-drain. The first is already out of
	// the scheduler, so it must still get its delivery attempt.
	d.runCycle(ctx)

	assert.Equal(t, int32(1), delivered.Load())
	_, err := store.FindSuccess(ctx, "first")
	require.NoError(t, err)

	_, retry, _, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), retry, "the member that survived removal stays scheduled")

	// The surviving member drains normally on the next cycle
	d.runCycle(ctx)
	assert.Equal(t, int32(2), delivered.Load())
	_, err = store.FindSuccess(ctx, "second")
	require.NoError(t, err)
}

func TestAttemptBudgetFollowsTheJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	payload := webhook.Payload{TxID: "tx_42", CorrelationID: "abc-1", Status: transaction.StatusCommitted}
	job := webhook.NewJob(payload, server.URL, f.clock.Now(), 2)
	require.NoError(t, f.store.Enqueue(ctx, job))

	f.dispatcher.runCycle(ctx)
	f.clock.Add(10 * time.Minute)
	f.dispatcher.runCycle(ctx)

	jobs, total, err := f.store.DLQPage(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, jobs, 1)
	assert.Equal(t, 2, jobs[0].Attempts, "the job's own budget caps retries, not the default")
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.dispatcher.Running())

	f.dispatcher.Start()
	assert.True(t, f.dispatcher.Running())

	// Idempotent start
	f.dispatcher.Start()
	assert.True(t, f.dispatcher.Running())

	f.dispatcher.Stop()
	assert.False(t, f.dispatcher.Running())

	// Idempotent stop
	f.dispatcher.Stop()
	assert.False(t, f.dispatcher.Running())
}
