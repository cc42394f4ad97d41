package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeIngestReceipt represents an async receipt ingestion job.
	JobTypeIngestReceipt JobType = "ingest_receipt"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// IngestReceiptJob asks a worker to extract, normalize and persist a receipt
// that has already been uploaded to the asset store.
type IngestReceiptJob struct {
	JobID string `json:"job_id"`

	// AssetURI is the gs:// URI of the uploaded receipt.
	AssetURI string `json:"asset_uri"`

	// ContentType is the uploaded file's MIME type, forwarded to the
	// extraction model.
	ContentType string `json:"content_type"`

	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// RecordID is the id of the stored transaction once ingestion succeeds.
	RecordID string `json:"record_id,omitempty"`

	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *IngestReceiptJob) GetID() string        { return j.JobID }
func (j *IngestReceiptJob) GetType() JobType     { return JobTypeIngestReceipt }
func (j *IngestReceiptJob) GetStatus() JobStatus { return j.Status }

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishIngestReceipt publishes a receipt ingestion job.
	PublishIngestReceipt(ctx context.Context, job *IngestReceiptJob) error

	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs; handler is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error marks the job failed and may
// trigger a retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore stores and retrieves job status so callers can poll on it.
type JobStore interface {
	SaveJob(ctx context.Context, job *IngestReceiptJob) error
	GetJob(ctx context.Context, jobID string) (*IngestReceiptJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*IngestReceiptJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Status JobStatus
	Limit  int
	Offset int
}
