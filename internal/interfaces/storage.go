package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/leadforge/internal/models"
)

// ExistingLeadRef identifies where a duplicate lead was first saved
type ExistingLeadRef struct {
	JobID     string
	Name      string
	CreatedAt time.Time
}

// DurableStore is the optional write-through mirror of job and lead
// state. In-memory state is authoritative for the life of the
// process; every method here is best-effort from the caller's point
// of view (failures are logged and swallowed at call sites). A nil
// store disables resume, cross-restart recovery, and cross-job dedup
// but the service still runs.
type DurableStore interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	GetJobsForUser(ctx context.Context, userID string) ([]*models.Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status models.JobStatus, startedAt, completedAt *time.Time) error
	UpdateJobProgress(ctx context.Context, jobID string, progress *models.Progress) error
	UpdateJobCheckpoint(ctx context.Context, jobID string, checkpoint *models.Checkpoint) error
	CompleteJob(ctx context.Context, jobID string, summary *models.JobSummary) error
	FailJob(ctx context.Context, jobID, errMsg string) error
	CancelJob(ctx context.Context, jobID string) error

	// ResetJobForResume clears the terminal state of a failed or
	// cancelled job so a resumed run can write fresh progress.
	ResetJobForResume(ctx context.Context, jobID string) error

	// GetOrphanedJobIDs returns jobs still marked running or pending,
	// used once at startup to fail work orphaned by a process death.
	GetOrphanedJobIDs(ctx context.Context) ([]string, error)

	DeleteJob(ctx context.Context, jobID string) error

	CheckLeadExists(ctx context.Context, userID, placeID, phone string) (*ExistingLeadRef, error)
	AddLead(ctx context.Context, jobID, userID string, lead *models.Lead) error
	UpdateLead(ctx context.Context, jobID string, lead *models.Lead) error
	GetLeadsForJob(ctx context.Context, jobID string) ([]*models.Lead, error)
	GetLead(ctx context.Context, leadID string) (*models.Lead, string, error)
	GetJobPlaceIDs(ctx context.Context, jobID string) ([]string, error)
	DeleteLeadsForJob(ctx context.Context, jobID string) error

	Close() error
}

// KVCache is a small key-value cache with TTL used for research
// results and website fetches.
type KVCache interface {
	Get(key string, value interface{}) (bool, error)
	Set(key string, value interface{}, ttl time.Duration) error
	Delete(key string) error
	Close() error
}
