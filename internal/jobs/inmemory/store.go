package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/expenses-ingest/internal/jobs"
)

// Store keeps job state in memory, safe for concurrent use. State is lost on
// restart; job status is only a convenience for pollers, the stored
// transaction log remains the source of truth.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.IngestReceiptJob
}

// NewStore creates a new in-memory job store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*jobs.IngestReceiptJob),
	}
}

// SaveJob saves or updates a job.
func (s *Store) SaveJob(ctx context.Context, job *jobs.IngestReceiptJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy

	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.IngestReceiptJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs retrieves jobs matching the filter.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.IngestReceiptJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.IngestReceiptJob

	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}

		jobCopy := *job
		result = append(result, &jobCopy)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.IngestReceiptJob{}, nil
		}
		result = result[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

var _ jobs.JobStore = (*Store)(nil)
