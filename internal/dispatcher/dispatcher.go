// Package dispatcher runs the delivery loop: on each tick it drains the
// webhook queue and the due slice of the retry scheduler, attempts delivery,
// and routes failures to the scheduler or the DLQ.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"ledger-gateway/internal/domain/webhook"
	"ledger-gateway/internal/pkg/clock"
	"ledger-gateway/internal/pkg/config"
)

const (
	headerSignature = "X-Ledger-Signature"
	headerTimestamp = "X-Ledger-Timestamp"
	headerAttempt   = "X-Ledger-Attempt"
)

type JobStore interface {
	Dequeue(ctx context.Context) (*webhook.Job, error)
	DrainDue(ctx context.Context, now time.Time) ([]*webhook.Job, error)
	ScheduleRetry(ctx context.Context, job *webhook.Job, dueAt time.Time) error
	PushDLQ(ctx context.Context, job *webhook.Job, movedAt time.Time) error
	ArchiveSuccess(ctx context.Context, job *webhook.Job, completedAt time.Time, responseStatus int) error
}

type Dispatcher struct {
	store    JobStore
	client   *http.Client
	secret   string
	interval time.Duration
	clock    clock.Clock

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
}

func New(store JobStore, cfg config.WebhookConfig, clk clock.Clock) *Dispatcher {
	return &Dispatcher{
		store:    store,
		client:   &http.Client{Timeout: cfg.DeliveryTimeout},
		secret:   cfg.Secret,
		interval: cfg.PollInterval,
		clock:    clk,
	}
}

// Start launches the polling loop with one immediate pass.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		slog.Warn("webhook dispatcher already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.running.Store(true)

	d.wg.Add(1)
	go d.loop(ctx)

	slog.Info("webhook dispatcher started", "poll_interval", d.interval)
}

// Stop cancels the polling loop and waits for the in-flight cycle. A delivery
// attempt in progress completes or times out on its own HTTP timeout; it is
// never abandoned mid-flight.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.Load() {
		return
	}
	d.cancel()
	d.wg.Wait()
	d.running.Store(false)

	slog.Info("webhook dispatcher stopped")
}

func (d *Dispatcher) Running() bool {
	return d.running.Load()
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer d.wg.Done()

	d.runCycle(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runCycle(ctx)
		}
	}
}

// runCycle processes at most one queued job plus every due retry. Errors are
// contained per job; one bad job or store hiccup never halts the loop.
func (d *Dispatcher) runCycle(ctx context.Context) {
	job, err := d.store.Dequeue(ctx)
	if err != nil {
		slog.Error("failed to dequeue webhook job", "error", err)
	} else if job != nil {
		d.deliver(ctx, job)
	}

	// DrainDue removes members before returning them. On a partial drain the
	// removed jobs exist nowhere else, so they must still get their attempt.
	due, err := d.store.DrainDue(ctx, d.clock.Now())
	if err != nil {
		slog.Error("failed to drain retry scheduler", "error", err, "recovered_jobs", len(due))
	}
	for _, retryJob := range due {
		d.deliver(ctx, retryJob)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, job *webhook.Job) {
	job.Attempts++

	body, err := json.Marshal(job.Payload)
	if err != nil {
		slog.Error("failed to marshal webhook payload", "job_id", job.ID, "error", err)
		return
	}

	timestamp := d.clock.Now().UTC().Format(time.RFC3339)
	signature := webhook.Sign(d.secret, timestamp, body)

	// Deliberately not the loop context: shutdown lets an in-flight attempt
	// run to completion, bounded by the client timeout.
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, job.CallbackURL, bytes.NewReader(body))
	if err != nil {
		d.handleFailure(ctx, job, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerSignature, signature)
	req.Header.Set(headerTimestamp, timestamp)
	req.Header.Set(headerAttempt, strconv.Itoa(job.Attempts))

	resp, err := d.client.Do(req)
	if err != nil {
		d.handleFailure(ctx, job, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		d.handleFailure(ctx, job, &webhook.HTTPError{StatusCode: resp.StatusCode})
		return
	}

	if err := d.store.ArchiveSuccess(ctx, job, d.clock.Now(), resp.StatusCode); err != nil {
		slog.Error("failed to archive webhook success", "job_id", job.ID, "error", err)
		return
	}

	slog.Info("webhook delivered",
		"job_id", job.ID,
		"correlation_id", job.Payload.CorrelationID,
		"status", resp.StatusCode,
		"attempts", job.Attempts,
	)
}

func (d *Dispatcher) handleFailure(ctx context.Context, job *webhook.Job, deliveryErr error) {
	job.RecordFailure(deliveryErr.Error())

	slog.Error("webhook delivery failed",
		"job_id", job.ID,
		"correlation_id", job.Payload.CorrelationID,
		"attempt", job.Attempts,
		"error", deliveryErr,
	)

	if webhook.ShouldRetry(deliveryErr) && !job.Exhausted() {
		delay := webhook.NextDelay(job.Attempts)
		dueAt := d.clock.Now().Add(delay)
		job.ScheduleAt(dueAt)

		if err := d.store.ScheduleRetry(ctx, job, dueAt); err != nil {
			slog.Error("failed to schedule webhook retry", "job_id", job.ID, "error", err)
			return
		}
		slog.Info("webhook scheduled for retry",
			"job_id", job.ID,
			"next_retry", dueAt.UTC().Format(time.RFC3339),
			"attempt", job.Attempts,
		)
		return
	}

	if err := d.store.PushDLQ(ctx, job, d.clock.Now()); err != nil {
		slog.Error("failed to move webhook job to DLQ", "job_id", job.ID, "error", err)
		return
	}

	slog.Error("webhook job moved to DLQ",
		"job_id", job.ID,
		"correlation_id", job.Payload.CorrelationID,
		"attempts", job.Attempts,
		"last_error", deliveryErr.Error(),
	)
	// Operator-visible alert record; monitoring tails these
	slog.Warn("DLQ alert",
		"correlation_id", job.Payload.CorrelationID,
		"callback_url", job.CallbackURL,
		"attempts", job.Attempts,
	)
}
