package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/expenses-ingest/internal/jobs"
)

// Queue is an in-memory publisher/consumer for receipt ingestion jobs,
// backed by a Go channel. Suitable for a single-instance deployment; a
// multi-instance setup would swap this for Cloud Tasks or Pub/Sub behind the
// same interfaces.
type Queue struct {
	jobChan   chan *jobs.IngestReceiptJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	workers   int
	closed    bool
}

// NewQueue creates a queue with the given channel buffer size and worker
// count. Jobs are mirrored into store so callers can poll their status.
func NewQueue(bufferSize, workers int, store jobs.JobStore) *Queue {
	if workers <= 0 {
		workers = 2
	}
	return &Queue{
		jobChan:   make(chan *jobs.IngestReceiptJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   workers,
	}
}

// PublishIngestReceipt implements the Publisher interface.
func (q *Queue) PublishIngestReceipt(ctx context.Context, job *jobs.IngestReceiptJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = 3
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start implements the Consumer interface. It launches the worker pool and
// returns immediately.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob runs a single job through the handler with retry bookkeeping.
func (q *Queue) processJob(ctx context.Context, job *jobs.IngestReceiptJob, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err != nil {
		job.Error = err.Error()

		if job.RetryCount < job.MaxRetries {
			job.RetryCount++
			job.Status = jobs.JobStatusRetrying

			// Re-enqueue with linear backoff.
			backoff := time.Duration(job.RetryCount) * time.Second
			time.AfterFunc(backoff, func() {
				job.Status = jobs.JobStatusPending
				job.StartedAt = nil
				job.CompletedAt = nil
				_ = q.PublishIngestReceipt(ctx, job)
			})
		} else {
			job.Status = jobs.JobStatusFailed
		}
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	}

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}
}

// Stop implements the Consumer interface. It waits for in-flight jobs until
// ctx expires.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
