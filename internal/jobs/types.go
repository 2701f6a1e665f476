package jobs

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bill-tracker/internal/domain"
)

// ErrJobNotFound is returned by a JobStore for an unknown job ID.
var ErrJobNotFound = errors.New("job not found")

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeDetectBills represents a bill detection run.
	JobTypeDetectBills JobType = "detect_bills"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// Source says where a detection job reads its transactions from.
type Source string

const (
	// SourceDocument re-runs detection over the transactions already stored.
	SourceDocument Source = "document"
	// SourceInline uses the transactions carried by the job.
	SourceInline Source = "inline"
	// SourceBigQuery reads transactions from the warehouse for a date range.
	SourceBigQuery Source = "bigquery"
)

// DetectBillsJob is one detection run over a batch of transactions.
type DetectBillsJob struct {
	JobID  string `json:"job_id"`
	Source Source `json:"source"`

	// StartDate and EndDate bound a SourceBigQuery read.
	StartDate *civil.Date `json:"start_date,omitempty"`
	EndDate   *civil.Date `json:"end_date,omitempty"`

	// Transactions is the SourceInline payload. It is not echoed back.
	Transactions []domain.Transaction `json:"-"`

	// NoCanonical groups by verbatim merchant names.
	NoCanonical bool `json:"no_canonical,omitempty"`

	// RunID and BillCount are set when the run completes.
	RunID     string `json:"run_id,omitempty"`
	BillCount int    `json:"bill_count"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *DetectBillsJob) GetID() string {
	return j.JobID
}

func (j *DetectBillsJob) GetType() JobType {
	return JobTypeDetectBills
}

func (j *DetectBillsJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher enqueues jobs.
type Publisher interface {
	PublishDetectBills(ctx context.Context, job *DetectBillsJob) error
	Close() error
}

// Consumer runs queued jobs through a handler.
type Consumer interface {
	// Start begins consuming jobs; handler is called for each job received.
	Start(ctx context.Context, handler JobHandler) error
	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error marks the job for retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore records job state for status queries.
type JobStore interface {
	SaveJob(ctx context.Context, job *DetectBillsJob) error
	GetJob(ctx context.Context, jobID string) (*DetectBillsJob, error)
	// ListJobs returns matching jobs, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*DetectBillsJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Status JobStatus
	Source Source
	Limit  int
	Offset int
}
