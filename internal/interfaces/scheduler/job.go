package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"

	"ledgerlink/internal/domain/webhook"
)

// Job is a unit of work run by the worker pool.
type Job interface {
	Execute(ctx context.Context) error
	// UserID identifies whose data the job touches, for logs.
	UserID() string
	Description() string
}

// ReplaySource is the part of the webhook router the replay jobs need.
type ReplaySource interface {
	PendingReplays(ctx context.Context, status webhook.Status, limit int) ([]*webhook.EventRecord, error)
	Replay(ctx context.Context, id string) error
}

// ReplayJob re-dispatches one stored webhook event.
type ReplayJob struct {
	record *webhook.EventRecord
	source ReplaySource
	done   func(record *webhook.EventRecord, err error)
}

func NewReplayJob(record *webhook.EventRecord, source ReplaySource, done func(*webhook.EventRecord, error)) *ReplayJob {
	return &ReplayJob{record: record, source: source, done: done}
}

func (j *ReplayJob) Execute(ctx context.Context) error {
	err := j.source.Replay(ctx, j.record.ID)
	if j.done != nil {
		j.done(j.record, err)
	}
	return err
}

func (j *ReplayJob) UserID() string {
	return j.record.UserID
}

func (j *ReplayJob) Description() string {
	return fmt.Sprintf("Replay of %s event %s (attempt %d)", j.record.EventType, j.record.ID, j.record.Attempts+1)
}

// ReplayProvider builds replay jobs for stored events in a given status.
// Events that already used up maxAttempts are left alone, and an event is
// never handed out twice while a previous job for it is still queued or running.
type ReplayProvider struct {
	source      ReplaySource
	status      webhook.Status
	batchSize   int
	maxAttempts int

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewReplayProvider(source ReplaySource, status webhook.Status, batchSize, maxAttempts int) *ReplayProvider {
	return &ReplayProvider{
		source:      source,
		status:      status,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		inFlight:    make(map[string]struct{}),
	}
}

// Jobs matches SchedulerConfig.JobProvider.
func (p *ReplayProvider) Jobs(ctx context.Context) ([]Job, error) {
	records, err := p.source.PendingReplays(ctx, p.status, p.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s webhook events: %w", p.status, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	jobs := make([]Job, 0, len(records))
	exhausted := 0
	for _, record := range records {
		if p.maxAttempts > 0 && record.Attempts >= p.maxAttempts {
			exhausted++
			continue
		}
		if _, busy := p.inFlight[record.ID]; busy {
			continue
		}
		p.inFlight[record.ID] = struct{}{}
		jobs = append(jobs, NewReplayJob(record, p.source, p.release))
	}

	if exhausted > 0 {
		log.Printf("Replay: %d %s events reached %d attempts and need manual review", exhausted, p.status, p.maxAttempts)
	}
	return jobs, nil
}

func (p *ReplayProvider) release(record *webhook.EventRecord, _ error) {
	p.mu.Lock()
	delete(p.inFlight, record.ID)
	p.mu.Unlock()
}

// Forget releases an event whose job never reached a worker.
func (p *ReplayProvider) Forget(job Job) {
	if rj, ok := job.(*ReplayJob); ok {
		p.release(rj.record, nil)
	}
}
