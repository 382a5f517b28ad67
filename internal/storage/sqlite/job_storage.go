package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/leadforge/internal/models"
)

// Storage is the SQLite-backed durable mirror of job and lead state.
// Implements interfaces.DurableStore.
type Storage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewStorage wraps an open SQLite database as a durable store
func NewStorage(db *SQLiteDB, logger arbor.ILogger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// Close closes the underlying database
func (s *Storage) Close() error {
	return s.db.Close()
}

// CreateJob persists a freshly created job
func (s *Storage) CreateJob(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (job_id, user_id, query, status, max_results, min_score,
			skip_enrichment, skip_outreach, product_context, language, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.DB().ExecContext(ctx, query,
		job.ID,
		job.Config.UserID,
		job.Config.Query,
		string(job.Status),
		job.Config.MaxResults,
		job.Config.MinScore,
		boolToInt(job.Config.SkipEnrichment),
		boolToInt(job.Config.SkipOutreach),
		job.Config.ProductContext,
		job.Config.Language,
		job.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// GetJob loads one job by id. Returns (nil, nil) if the job does not
// exist.
func (s *Storage) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	query := selectJobSQL + " WHERE job_id = ?"

	job, err := scanJob(s.db.DB().QueryRowContext(ctx, query, jobID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	return job, nil
}

// GetJobsForUser returns all stored jobs for a user, newest first
func (s *Storage) GetJobsForUser(ctx context.Context, userID string) ([]*models.Job, error) {
	query := selectJobSQL + " WHERE user_id = ? ORDER BY created_at DESC"

	rows, err := s.db.DB().QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateJobStatus updates status and lifecycle timestamps
func (s *Storage) UpdateJobStatus(ctx context.Context, jobID string, status models.JobStatus, startedAt, completedAt *time.Time) error {
	query := `UPDATE jobs SET status = ?, started_at = ?, completed_at = ? WHERE job_id = ?`
	_, err := s.db.DB().ExecContext(ctx, query,
		string(status), unixOrNil(startedAt), unixOrNil(completedAt), jobID)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return nil
}

// UpdateJobProgress stores the latest progress report
func (s *Storage) UpdateJobProgress(ctx context.Context, jobID string, progress *models.Progress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}
	_, err = s.db.DB().ExecContext(ctx,
		`UPDATE jobs SET progress_json = ? WHERE job_id = ?`, string(data), jobID)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return nil
}

// UpdateJobCheckpoint stores the latest resume checkpoint
func (s *Storage) UpdateJobCheckpoint(ctx context.Context, jobID string, checkpoint *models.Checkpoint) error {
	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	_, err = s.db.DB().ExecContext(ctx,
		`UPDATE jobs SET checkpoint_json = ? WHERE job_id = ?`, string(data), jobID)
	if err != nil {
		return fmt.Errorf("failed to update job checkpoint: %w", err)
	}
	return nil
}

// CompleteJob marks the job completed with its summary
func (s *Storage) CompleteJob(ctx context.Context, jobID string, summary *models.JobSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	_, err = s.db.DB().ExecContext(ctx,
		`UPDATE jobs SET status = ?, summary_json = ?, completed_at = ? WHERE job_id = ?`,
		string(models.JobStatusCompleted), string(data), time.Now().UTC().Unix(), jobID)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

// FailJob marks the job failed with an error message
func (s *Storage) FailJob(ctx context.Context, jobID, errMsg string) error {
	_, err := s.db.DB().ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, completed_at = ? WHERE job_id = ?`,
		string(models.JobStatusFailed), errMsg, time.Now().UTC().Unix(), jobID)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	return nil
}

// CancelJob marks the job cancelled
func (s *Storage) CancelJob(ctx context.Context, jobID string) error {
	_, err := s.db.DB().ExecContext(ctx,
		`UPDATE jobs SET status = ?, completed_at = ? WHERE job_id = ?`,
		string(models.JobStatusCancelled), time.Now().UTC().Unix(), jobID)
	if err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}
	return nil
}

// ResetJobForResume clears terminal state so a resumed run writes
// fresh progress. The checkpoint is kept; the resumed run overwrites
// it as it advances.
func (s *Storage) ResetJobForResume(ctx context.Context, jobID string) error {
	_, err := s.db.DB().ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = '', summary_json = NULL, completed_at = NULL WHERE job_id = ?`,
		string(models.JobStatusPending), jobID)
	if err != nil {
		return fmt.Errorf("failed to reset job for resume: %w", err)
	}
	return nil
}

// GetOrphanedJobIDs returns jobs still marked pending or running,
// which after a restart can only mean the process died mid-run.
func (s *Storage) GetOrphanedJobIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT job_id FROM jobs WHERE status IN (?, ?)`,
		string(models.JobStatusPending), string(models.JobStatusRunning))
	if err != nil {
		return nil, fmt.Errorf("failed to query orphaned jobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteJob removes the job row. Lead rows are removed separately via
// DeleteLeadsForJob.
func (s *Storage) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.DB().ExecContext(ctx, `DELETE FROM jobs WHERE job_id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

const selectJobSQL = `
	SELECT job_id, user_id, query, status, max_results, min_score,
		skip_enrichment, skip_outreach, product_context, language,
		progress_json, checkpoint_json, summary_json, error,
		created_at, started_at, completed_at
	FROM jobs`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job
	var status string
	var skipEnrichment, skipOutreach int
	var progressJSON, checkpointJSON, summaryJSON sql.NullString
	var createdAt int64
	var startedAt, completedAt sql.NullInt64

	err := row.Scan(
		&job.ID,
		&job.Config.UserID,
		&job.Config.Query,
		&status,
		&job.Config.MaxResults,
		&job.Config.MinScore,
		&skipEnrichment,
		&skipOutreach,
		&job.Config.ProductContext,
		&job.Config.Language,
		&progressJSON,
		&checkpointJSON,
		&summaryJSON,
		&job.Error,
		&createdAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Status = models.JobStatus(status)
	job.Config.SkipEnrichment = skipEnrichment != 0
	job.Config.SkipOutreach = skipOutreach != 0
	job.CreatedAt = time.Unix(createdAt, 0).UTC()
	job.StartedAt = timeOrNil(startedAt)
	job.CompletedAt = timeOrNil(completedAt)

	if progressJSON.Valid && progressJSON.String != "" {
		var progress models.Progress
		if err := json.Unmarshal([]byte(progressJSON.String), &progress); err == nil {
			job.Progress = &progress
		}
	}
	if checkpointJSON.Valid && checkpointJSON.String != "" {
		var checkpoint models.Checkpoint
		if err := json.Unmarshal([]byte(checkpointJSON.String), &checkpoint); err == nil {
			job.Checkpoint = &checkpoint
		}
	}
	if summaryJSON.Valid && summaryJSON.String != "" {
		var summary models.JobSummary
		if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err == nil {
			job.Summary = &summary
		}
	}

	return &job, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func unixOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timeOrNil(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0).UTC()
	return &t
}
