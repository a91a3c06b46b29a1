package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ledger-gateway/internal/domain/transaction"
	"ledger-gateway/internal/domain/webhook"
	"ledger-gateway/internal/infra"
	"ledger-gateway/internal/infra/callbackstore"
	"ledger-gateway/internal/infra/fabric"
	"ledger-gateway/internal/infra/ledgerstore"
	"ledger-gateway/internal/pkg/clock"
	"ledger-gateway/internal/pkg/config"
	"ledger-gateway/internal/pkg/errs"
)

var (
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrTransactionCommitted = errors.New("transaction already committed, cannot retry")
	ErrTransactionPending   = errors.New("transaction is pending, cannot retry")

	// Error markers for categorization
	ErrSubmitFailed         = errors.New("transaction submission failed")
	ErrStoreOperationFailed = errors.New("store operation failed")
)

type LedgerStore interface {
	Save(ctx context.Context, correlationID string, rec transaction.Record, ttl time.Duration) error
	SaveReverseIndex(ctx context.Context, txID, correlationID string, ttl time.Duration) error
	FindByCorrelationID(ctx context.Context, correlationID string) (*transaction.Record, error)
	ResolveTxID(ctx context.Context, txID string) (string, error)
	Delete(ctx context.Context, correlationID, txID string) error
	ListCorrelationIDs(ctx context.Context) ([]string, error)
}

type CallbackStore interface {
	Register(ctx context.Context, correlationID string, reg callbackstore.Registration, ttl time.Duration) error
	Resolve(ctx context.Context, correlationID string) (*callbackstore.Registration, error)
}

type WebhookEnqueuer interface {
	Enqueue(ctx context.Context, job *webhook.Job) error
}

type SubmitParams struct {
	CorrelationID string
	Payload       transaction.Payload
	CallbackURL   *string
	UserID        string
}

type ListedTransaction struct {
	CorrelationID string
	Record        transaction.Record
}

type TransactionUseCase interface {
	Submit(ctx context.Context, params SubmitParams) (*transaction.Record, bool, error)
	GetByCorrelationID(ctx context.Context, correlationID string) (*transaction.Record, error)
	GetByTxID(ctx context.Context, txID string) (*transaction.Record, error)
	List(ctx context.Context, offset, limit int) ([]ListedTransaction, int, error)
	Retry(ctx context.Context, correlationID string) (*transaction.Record, error)
	RecordCompletion(ctx context.Context, notice fabric.CompletionNotice) error
}

type transactionUseCaseImpl struct {
	ledger      LedgerStore
	callback    CallbackStore
	queue       WebhookEnqueuer
	client      fabric.Client
	maxAttempts int
	clock       clock.Clock
}

func NewTransactionUseCase(
	ledger LedgerStore,
	callback CallbackStore,
	queue WebhookEnqueuer,
	client fabric.Client,
	cfg config.WebhookConfig,
	clk clock.Clock,
) TransactionUseCase {
	return &transactionUseCaseImpl{
		ledger:      ledger,
		callback:    callback,
		queue:       queue,
		client:      client,
		maxAttempts: cfg.MaxAttempts,
		clock:       clk,
	}
}

// Submit is idempotent on correlation id: a duplicate submission returns the
// existing record without touching the ledger client again. The existence
// check and the create are not atomic; two truly concurrent duplicates can
// both reach the client. Accepted limitation, matching the upstream gateway
// behavior; close with kvs.AcquireLock if that ever stops being acceptable.
func (u *transactionUseCaseImpl) Submit(ctx context.Context, params SubmitParams) (*transaction.Record, bool, error) {
	existing, err := u.ledger.FindByCorrelationID(ctx, params.CorrelationID)
	if err == nil {
		slog.Info("duplicate transaction submission short-circuited",
			"correlation_id", params.CorrelationID,
			"status", existing.Status,
		)
		return existing, true, nil
	}
	if !infra.IsKind(err, infra.KindNotFound) {
		return nil, false, errs.Mark(err, ErrStoreOperationFailed)
	}

	if params.CallbackURL != nil {
		reg := callbackstore.Registration{
			CallbackURL: *params.CallbackURL,
			UserID:      params.UserID,
			CreatedAt:   u.clock.Now(),
		}
		if err := u.callback.Register(ctx, params.CorrelationID, reg, callbackstore.DefaultTTL); err != nil {
			return nil, false, errs.Mark(err, ErrStoreOperationFailed)
		}
	}

	txID, err := u.client.Submit(ctx, params.CorrelationID, params.Payload)
	if err != nil {
		failed := transaction.NewFailed(err.Error())
		if saveErr := u.ledger.Save(ctx, params.CorrelationID, failed, ledgerstore.RecordTTL(failed.Status)); saveErr != nil {
			slog.Error("failed to persist FAILED record after submit error",
				"correlation_id", params.CorrelationID,
				"error", saveErr,
			)
		}
		return nil, false, errs.Mark(err, ErrSubmitFailed)
	}

	rec := transaction.NewSubmitted(txID)
	ttl := ledgerstore.RecordTTL(rec.Status)
	if err := u.ledger.Save(ctx, params.CorrelationID, rec, ttl); err != nil {
		return nil, false, errs.Mark(err, ErrStoreOperationFailed)
	}
	if err := u.ledger.SaveReverseIndex(ctx, txID, params.CorrelationID, ttl); err != nil {
		return nil, false, errs.Mark(err, ErrStoreOperationFailed)
	}

	slog.Info("transaction submitted",
		"correlation_id", params.CorrelationID,
		"tx_id", txID,
		"user_id", params.UserID,
	)
	return &rec, false, nil
}

func (u *transactionUseCaseImpl) GetByCorrelationID(ctx context.Context, correlationID string) (*transaction.Record, error) {
	rec, err := u.ledger.FindByCorrelationID(ctx, correlationID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, errs.Mark(err, ErrStoreOperationFailed)
	}
	return rec, nil
}

func (u *transactionUseCaseImpl) GetByTxID(ctx context.Context, txID string) (*transaction.Record, error) {
	correlationID, err := u.ledger.ResolveTxID(ctx, txID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, errs.Mark(err, ErrStoreOperationFailed)
	}
	return u.GetByCorrelationID(ctx, correlationID)
}

// List pages through the whole record keyspace. Debug surface, not meant for
// large deployments.
func (u *transactionUseCaseImpl) List(ctx context.Context, offset, limit int) ([]ListedTransaction, int, error) {
	ids, err := u.ledger.ListCorrelationIDs(ctx)
	if err != nil {
		return nil, 0, errs.Mark(err, ErrStoreOperationFailed)
	}

	total := len(ids)
	if offset >= total {
		return []ListedTransaction{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	items := make([]ListedTransaction, 0, end-offset)
	for _, id := range ids[offset:end] {
		rec, err := u.ledger.FindByCorrelationID(ctx, id)
		if err != nil {
			// Key may have expired between the scan and the read
			continue
		}
		items = append(items, ListedTransaction{CorrelationID: id, Record: *rec})
	}
	return items, total, nil
}

// Retry clears a failed submission so the client can submit again under the
// same correlation id. Committed and pending transactions are refused.
func (u *transactionUseCaseImpl) Retry(ctx context.Context, correlationID string) (*transaction.Record, error) {
	rec, err := u.ledger.FindByCorrelationID(ctx, correlationID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, errs.Mark(err, ErrStoreOperationFailed)
	}

	switch rec.Status {
	case transaction.StatusCommitted:
		return nil, ErrTransactionCommitted
	case transaction.StatusPending:
		return nil, ErrTransactionPending
	}

	if err := u.ledger.Delete(ctx, correlationID, rec.TxID); err != nil {
		return nil, errs.Mark(err, ErrStoreOperationFailed)
	}

	slog.Info("transaction cleared for resubmission",
		"correlation_id", correlationID,
		"previous_status", rec.Status,
	)
	return rec, nil
}

// RecordCompletion handles the ledger's asynchronous completion notice: it
// finalizes the record and enqueues exactly one webhook job when a callback
// is registered. An unknown transaction id is not an error; the record may
// have expired or belong to another gateway instance.
func (u *transactionUseCaseImpl) RecordCompletion(ctx context.Context, notice fabric.CompletionNotice) error {
	correlationID, err := u.ledger.ResolveTxID(ctx, notice.TxID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			slog.Warn("completion notice for unknown transaction", "tx_id", notice.TxID)
			return nil
		}
		return errs.Mark(err, ErrStoreOperationFailed)
	}

	rec := transaction.Completed(notice.TxID, notice.Status, notice.BlockNumber, notice.PayloadHash, notice.Error)
	ttl := ledgerstore.RecordTTL(rec.Status)
	if err := u.ledger.Save(ctx, correlationID, rec, ttl); err != nil {
		return errs.Mark(err, ErrStoreOperationFailed)
	}
	if err := u.ledger.SaveReverseIndex(ctx, notice.TxID, correlationID, ttl); err != nil {
		return errs.Mark(err, ErrStoreOperationFailed)
	}

	slog.Info("transaction finalized",
		"correlation_id", correlationID,
		"tx_id", notice.TxID,
		"status", rec.Status,
	)

	if !rec.Status.IsTerminal() {
		return nil
	}
	return u.enqueueNotification(ctx, correlationID, rec)
}

func (u *transactionUseCaseImpl) enqueueNotification(ctx context.Context, correlationID string, rec transaction.Record) error {
	reg, err := u.callback.Resolve(ctx, correlationID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			slog.Debug("no callback registered, skipping webhook", "correlation_id", correlationID)
			return nil
		}
		return errs.Mark(err, ErrStoreOperationFailed)
	}

	payload := webhook.Payload{
		TxID:          rec.TxID,
		CorrelationID: correlationID,
		Status:        rec.Status,
		BlockNumber:   rec.BlockNumber,
		PayloadHash:   rec.PayloadHash,
		Error:         rec.Error,
	}
	job := webhook.NewJob(payload, reg.CallbackURL, u.clock.Now(), u.maxAttempts)
	if err := u.queue.Enqueue(ctx, job); err != nil {
		return errs.Mark(err, ErrStoreOperationFailed)
	}

	slog.Info("webhook job enqueued", "correlation_id", correlationID, "job_id", job.ID)
	return nil
}
