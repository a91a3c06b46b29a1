// Package webhookstore owns the three homes of an in-flight delivery job
// (queue, retry scheduler, DLQ) plus the success archive. Moving a job between
// homes always removes it from the previous one first.
package webhookstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ledger-gateway/internal/domain/webhook"
	"ledger-gateway/internal/infra"
	"ledger-gateway/internal/infra/kvs"
)

const (
	queueKey      = "webhook:queue"
	retryKey      = "webhook:retry"
	dlqKey        = "webhook:dlq"
	successPrefix = "webhook:success:"

	SuccessTTL = 24 * time.Hour
)

// SuccessRecord is the archived snapshot of a delivered job.
type SuccessRecord struct {
	webhook.Job
	CompletedAt    time.Time `json:"completedAt"`
	ResponseStatus int       `json:"responseStatus"`
}

type Store struct {
	kv kvs.Store
}

func New(kv kvs.Store) *Store {
	return &Store{kv: kv}
}

// Enqueue appends a job for its first delivery attempt. LPUSH + RPOP keeps
// arrival order FIFO.
func (s *Store) Enqueue(ctx context.Context, job *webhook.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return infra.WrapRepoErr("failed to marshal webhook job", err)
	}
	if err := s.kv.LPush(ctx, queueKey, string(data)); err != nil {
		return infra.WrapRepoErr("failed to enqueue webhook job", err)
	}
	return nil
}

// Dequeue pops the oldest queued job. An empty queue returns (nil, nil).
func (s *Store) Dequeue(ctx context.Context) (*webhook.Job, error) {
	data, err := s.kv.RPop(ctx, queueKey)
	if err != nil {
		if errors.Is(err, kvs.ErrNotFound) {
			return nil, nil
		}
		return nil, infra.WrapRepoErr("failed to dequeue webhook job", err)
	}
	return unmarshalJob(data)
}

// ScheduleRetry inserts the job into the retry scheduler scored by its
// due-at timestamp in unix millis.
func (s *Store) ScheduleRetry(ctx context.Context, job *webhook.Job, dueAt time.Time) error {
	data, err := json.Marshal(job)
	if err != nil {
		return infra.WrapRepoErr("failed to marshal webhook job", err)
	}
	if err := s.kv.ZAdd(ctx, retryKey, float64(dueAt.UnixMilli()), string(data)); err != nil {
		return infra.WrapRepoErr("failed to schedule webhook retry", err)
	}
	return nil
}

// DrainDue removes and returns every job whose due-at score is <= now. Members
// that fail to decode are dropped rather than wedging the scheduler. When a
// removal fails mid-batch the jobs removed so far are returned together with
// the error; the caller owns them now and must still process them. Members not
// yet removed stay scheduled and surface on the next drain.
func (s *Store) DrainDue(ctx context.Context, now time.Time) ([]*webhook.Job, error) {
	members, err := s.kv.ZRangeByScore(ctx, retryKey, 0, float64(now.UnixMilli()))
	if err != nil {
		return nil, infra.WrapRepoErr("failed to range retry scheduler", err)
	}

	jobs := make([]*webhook.Job, 0, len(members))
	for _, member := range members {
		if _, err := s.kv.ZRem(ctx, retryKey, member); err != nil {
			return jobs, infra.WrapRepoErr("failed to remove due retry job", err)
		}
		job, err := unmarshalJob(member)
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// PushDLQ stamps the job and moves it to the dead letter queue.
func (s *Store) PushDLQ(ctx context.Context, job *webhook.Job, movedAt time.Time) error {
	stamped := movedAt
	job.MovedToDLQAt = &stamped

	data, err := json.Marshal(job)
	if err != nil {
		return infra.WrapRepoErr("failed to marshal webhook job", err)
	}
	if err := s.kv.LPush(ctx, dlqKey, string(data)); err != nil {
		return infra.WrapRepoErr("failed to push job to DLQ", err)
	}
	return nil
}

// DLQPage returns a read-only page of dead letter jobs plus the total count.
func (s *Store) DLQPage(ctx context.Context, offset, limit int64) ([]*webhook.Job, int64, error) {
	total, err := s.kv.LLen(ctx, dlqKey)
	if err != nil {
		return nil, 0, infra.WrapRepoErr("failed to count DLQ jobs", err)
	}

	members, err := s.kv.LRange(ctx, dlqKey, offset, offset+limit-1)
	if err != nil {
		return nil, 0, infra.WrapRepoErr("failed to read DLQ page", err)
	}

	jobs := make([]*webhook.Job, 0, len(members))
	for _, member := range members {
		job, err := unmarshalJob(member)
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, total, nil
}

// RemoveFromDLQ finds a dead letter job by id and removes exactly that entry.
func (s *Store) RemoveFromDLQ(ctx context.Context, jobID string) (*webhook.Job, error) {
	members, err := s.kv.LRange(ctx, dlqKey, 0, -1)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to scan DLQ", err)
	}

	for _, member := range members {
		job, err := unmarshalJob(member)
		if err != nil {
			continue
		}
		if job.ID != jobID {
			continue
		}
		if _, err := s.kv.LRem(ctx, dlqKey, 1, member); err != nil {
			return nil, infra.WrapRepoErr("failed to remove job from DLQ", err)
		}
		return job, nil
	}
	return nil, infra.WrapRepoErr("job not found in DLQ", kvs.ErrNotFound, infra.KindNotFound)
}

// PopDLQ pops one dead letter job for bulk replay. Empty DLQ returns (nil, nil).
func (s *Store) PopDLQ(ctx context.Context) (*webhook.Job, error) {
	data, err := s.kv.RPop(ctx, dlqKey)
	if err != nil {
		if errors.Is(err, kvs.ErrNotFound) {
			return nil, nil
		}
		return nil, infra.WrapRepoErr("failed to pop DLQ job", err)
	}
	return unmarshalJob(data)
}

func (s *Store) ArchiveSuccess(ctx context.Context, job *webhook.Job, completedAt time.Time, responseStatus int) error {
	record := SuccessRecord{
		Job:            *job,
		CompletedAt:    completedAt,
		ResponseStatus: responseStatus,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return infra.WrapRepoErr("failed to marshal success record", err)
	}
	key := successPrefix + job.Payload.CorrelationID
	if err := s.kv.SetEx(ctx, key, string(data), SuccessTTL); err != nil {
		return infra.WrapRepoErr("failed to archive webhook success", err)
	}
	return nil
}

func (s *Store) FindSuccess(ctx context.Context, correlationID string) (*SuccessRecord, error) {
	data, err := s.kv.Get(ctx, successPrefix+correlationID)
	if err != nil {
		if errors.Is(err, kvs.ErrNotFound) {
			return nil, infra.WrapRepoErr("success record not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to get success record", err)
	}

	var record SuccessRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, infra.WrapRepoErr("failed to unmarshal success record", err)
	}
	return &record, nil
}

// FindDLQByCorrelation scans the DLQ for the first job of a correlation id.
func (s *Store) FindDLQByCorrelation(ctx context.Context, correlationID string) (*webhook.Job, error) {
	return s.scanList(ctx, dlqKey, correlationID)
}

// FindPendingByCorrelation scans the queue and the retry scheduler for a job
// that has not reached a terminal home yet.
func (s *Store) FindPendingByCorrelation(ctx context.Context, correlationID string) (*webhook.Job, error) {
	job, err := s.scanList(ctx, queueKey, correlationID)
	if err == nil {
		return job, nil
	}
	if !infra.IsKind(err, infra.KindNotFound) {
		return nil, err
	}

	members, err := s.kv.ZRangeByScore(ctx, retryKey, 0, maxScore)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to scan retry scheduler", err)
	}
	return findByCorrelation(members, correlationID)
}

// Stats reports the current length of each job home.
func (s *Store) Stats(ctx context.Context) (queue, retry, dlq int64, err error) {
	if queue, err = s.kv.LLen(ctx, queueKey); err != nil {
		return 0, 0, 0, infra.WrapRepoErr("failed to count queued jobs", err)
	}
	if retry, err = s.kv.ZCard(ctx, retryKey); err != nil {
		return 0, 0, 0, infra.WrapRepoErr("failed to count retry jobs", err)
	}
	if dlq, err = s.kv.LLen(ctx, dlqKey); err != nil {
		return 0, 0, 0, infra.WrapRepoErr("failed to count DLQ jobs", err)
	}
	return queue, retry, dlq, nil
}

// High enough to cover any unix-millis score.
const maxScore = float64(1 << 52)

func (s *Store) scanList(ctx context.Context, key, correlationID string) (*webhook.Job, error) {
	members, err := s.kv.LRange(ctx, key, 0, -1)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to scan "+key, err)
	}
	return findByCorrelation(members, correlationID)
}

func findByCorrelation(members []string, correlationID string) (*webhook.Job, error) {
	for _, member := range members {
		job, err := unmarshalJob(member)
		if err != nil {
			continue
		}
		if job.Payload.CorrelationID == correlationID {
			return job, nil
		}
	}
	return nil, infra.WrapRepoErr("webhook job not found", kvs.ErrNotFound, infra.KindNotFound)
}

func unmarshalJob(data string) (*webhook.Job, error) {
	var job webhook.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, infra.WrapRepoErr("failed to unmarshal webhook job", err)
	}
	return &job, nil
}
