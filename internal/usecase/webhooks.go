package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"ledger-gateway/internal/domain/transaction"
	"ledger-gateway/internal/domain/webhook"
	"ledger-gateway/internal/infra"
	"ledger-gateway/internal/infra/callbackstore"
	"ledger-gateway/internal/infra/fabric"
	"ledger-gateway/internal/infra/kvs"
	"ledger-gateway/internal/infra/webhookstore"
	"ledger-gateway/internal/pkg/clock"
	"ledger-gateway/internal/pkg/config"
	"ledger-gateway/internal/pkg/errs"
)

var (
	ErrJobNotFound      = errors.New("job not found in DLQ")
	ErrHistoryNotFound  = errors.New("webhook history not found")
	ErrReplayInProgress = errors.New("DLQ replay already in progress")
)

// MaxDLQPageSize caps operator pagination.
const MaxDLQPageSize = 100

const (
	replayLockName = "webhook:dlq:reprocess"
	// Generous bound; the lock is released as soon as the drain finishes.
	replayLockTTL = 5 * time.Minute
)

type WebhookStore interface {
	Enqueue(ctx context.Context, job *webhook.Job) error
	DLQPage(ctx context.Context, offset, limit int64) ([]*webhook.Job, int64, error)
	RemoveFromDLQ(ctx context.Context, jobID string) (*webhook.Job, error)
	PopDLQ(ctx context.Context) (*webhook.Job, error)
	FindSuccess(ctx context.Context, correlationID string) (*webhookstore.SuccessRecord, error)
	FindDLQByCorrelation(ctx context.Context, correlationID string) (*webhook.Job, error)
	FindPendingByCorrelation(ctx context.Context, correlationID string) (*webhook.Job, error)
	Stats(ctx context.Context) (queue, retry, dlq int64, err error)
}

// DispatcherState is the little slice of the dispatcher the operator surface
// needs.
type DispatcherState interface {
	Running() bool
}

type WebhookStats struct {
	Queue      int64
	Retry      int64
	DLQ        int64
	Processing bool
}

// DeliveryHistory is the operator view of one correlation id's delivery
// outcome: SUCCESS from the archive, FAILED from the DLQ, PENDING from the
// queue or retry scheduler.
type DeliveryHistory struct {
	CorrelationID  string
	Status         string
	CallbackURL    string
	Attempts       int
	NextRetry      *int64
	LastError      *string
	MovedToDLQAt   *time.Time
	CompletedAt    *time.Time
	ResponseStatus *int
}

type TriggerTestParams struct {
	CorrelationID string
	CallbackURL   string
	Payload       *webhook.Payload
	UserID        string
}

type WebhookUseCase interface {
	Stats(ctx context.Context) (*WebhookStats, error)
	DLQPage(ctx context.Context, offset, limit int64) ([]*webhook.Job, int64, error)
	ReplayAll(ctx context.Context) (int, error)
	ReplayJob(ctx context.Context, jobID string) (*webhook.Job, error)
	History(ctx context.Context, correlationID string) (*DeliveryHistory, error)
	TriggerTest(ctx context.Context, params TriggerTestParams) (*webhook.Payload, error)
}

type webhookUseCaseImpl struct {
	store       WebhookStore
	callback    CallbackStore
	dispatcher  DispatcherState
	kv          kvs.Store
	maxAttempts int
	clock       clock.Clock
}

func NewWebhookUseCase(
	store WebhookStore,
	callback CallbackStore,
	dispatcher DispatcherState,
	kv kvs.Store,
	cfg config.WebhookConfig,
	clk clock.Clock,
) WebhookUseCase {
	return &webhookUseCaseImpl{
		store:       store,
		callback:    callback,
		dispatcher:  dispatcher,
		kv:          kv,
		maxAttempts: cfg.MaxAttempts,
		clock:       clk,
	}
}

func (u *webhookUseCaseImpl) Stats(ctx context.Context) (*WebhookStats, error) {
	queue, retry, dlq, err := u.store.Stats(ctx)
	if err != nil {
		return nil, errs.Mark(err, ErrStoreOperationFailed)
	}
	return &WebhookStats{
		Queue:      queue,
		Retry:      retry,
		DLQ:        dlq,
		Processing: u.dispatcher.Running(),
	}, nil
}

func (u *webhookUseCaseImpl) DLQPage(ctx context.Context, offset, limit int64) ([]*webhook.Job, int64, error) {
	if limit <= 0 || limit > MaxDLQPageSize {
		limit = MaxDLQPageSize
	}
	if offset < 0 {
		offset = 0
	}
	jobs, total, err := u.store.DLQPage(ctx, offset, limit)
	if err != nil {
		return nil, 0, errs.Mark(err, ErrStoreOperationFailed)
	}
	return jobs, total, nil
}

// ReplayAll drains the DLQ back onto the webhook queue with attempt counters
// reset. Returns the number of jobs requeued. A distributed lock keeps two
// operators (or two gateway instances) from draining concurrently.
func (u *webhookUseCaseImpl) ReplayAll(ctx context.Context) (int, error) {
	acquired, err := kvs.AcquireLock(ctx, u.kv, replayLockName, replayLockTTL)
	if err != nil {
		return 0, errs.Mark(err, ErrStoreOperationFailed)
	}
	if !acquired {
		return 0, ErrReplayInProgress
	}
	defer func() {
		if err := kvs.ReleaseLock(ctx, u.kv, replayLockName); err != nil {
			slog.Error("failed to release DLQ replay lock", "error", err)
		}
	}()

	count := 0
	for {
		job, err := u.store.PopDLQ(ctx)
		if err != nil {
			return count, errs.Mark(err, ErrStoreOperationFailed)
		}
		if job == nil {
			break
		}

		job.ResetForReplay()
		if err := u.store.Enqueue(ctx, job); err != nil {
			return count, errs.Mark(err, ErrStoreOperationFailed)
		}
		count++
	}

	slog.Info("reprocessed DLQ jobs", "count", count)
	return count, nil
}

func (u *webhookUseCaseImpl) ReplayJob(ctx context.Context, jobID string) (*webhook.Job, error) {
	job, err := u.store.RemoveFromDLQ(ctx, jobID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, errs.Mark(err, ErrStoreOperationFailed)
	}

	job.ResetForReplay()
	if err := u.store.Enqueue(ctx, job); err != nil {
		return nil, errs.Mark(err, ErrStoreOperationFailed)
	}

	slog.Info("DLQ job requeued",
		"job_id", job.ID,
		"correlation_id", job.Payload.CorrelationID,
	)
	return job, nil
}

func (u *webhookUseCaseImpl) History(ctx context.Context, correlationID string) (*DeliveryHistory, error) {
	if record, err := u.store.FindSuccess(ctx, correlationID); err == nil {
		return &DeliveryHistory{
			CorrelationID:  correlationID,
			Status:         "SUCCESS",
			CallbackURL:    record.CallbackURL,
			Attempts:       record.Attempts,
			CompletedAt:    &record.CompletedAt,
			ResponseStatus: &record.ResponseStatus,
		}, nil
	} else if !infra.IsKind(err, infra.KindNotFound) {
		return nil, errs.Mark(err, ErrStoreOperationFailed)
	}

	if job, err := u.store.FindDLQByCorrelation(ctx, correlationID); err == nil {
		return &DeliveryHistory{
			CorrelationID: correlationID,
			Status:        "FAILED",
			CallbackURL:   job.CallbackURL,
			Attempts:      job.Attempts,
			LastError:     job.LastError,
			MovedToDLQAt:  job.MovedToDLQAt,
		}, nil
	} else if !infra.IsKind(err, infra.KindNotFound) {
		return nil, errs.Mark(err, ErrStoreOperationFailed)
	}

	if job, err := u.store.FindPendingByCorrelation(ctx, correlationID); err == nil {
		return &DeliveryHistory{
			CorrelationID: correlationID,
			Status:        "PENDING",
			CallbackURL:   job.CallbackURL,
			Attempts:      job.Attempts,
			NextRetry:     job.NextRetry,
		}, nil
	} else if !infra.IsKind(err, infra.KindNotFound) {
		return nil, errs.Mark(err, ErrStoreOperationFailed)
	}

	return nil, ErrHistoryNotFound
}

// TriggerTest registers a short-lived callback and enqueues a synthetic
// committed notification. Development aid for webhook receivers.
func (u *webhookUseCaseImpl) TriggerTest(ctx context.Context, params TriggerTestParams) (*webhook.Payload, error) {
	reg := callbackstore.Registration{
		CallbackURL: params.CallbackURL,
		UserID:      params.UserID,
		CreatedAt:   u.clock.Now(),
	}
	if err := u.callback.Register(ctx, params.CorrelationID, reg, callbackstore.TestTriggerTTL); err != nil {
		return nil, errs.Mark(err, ErrStoreOperationFailed)
	}

	payload := params.Payload
	if payload == nil {
		blockNumber := int64(rand.Intn(1000) + 1)
		hash := fabric.PayloadHash(transaction.Payload{Instruction: "test"})
		payload = &webhook.Payload{
			TxID:          fmt.Sprintf("test_%d", u.clock.Now().UnixMilli()),
			CorrelationID: params.CorrelationID,
			Status:        transaction.StatusCommitted,
			BlockNumber:   &blockNumber,
			PayloadHash:   &hash,
		}
	}
	payload.CorrelationID = params.CorrelationID

	job := webhook.NewJob(*payload, params.CallbackURL, u.clock.Now(), u.maxAttempts)
	if err := u.store.Enqueue(ctx, job); err != nil {
		return nil, errs.Mark(err, ErrStoreOperationFailed)
	}

	slog.Info("test webhook job enqueued",
		"correlation_id", params.CorrelationID,
		"callback_url", params.CallbackURL,
	)
	return payload, nil
}
