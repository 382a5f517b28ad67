package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/leadforge/internal/interfaces"
	"github.com/ternarybob/leadforge/internal/models"
)

// Store is the in-process authoritative state for all active and
// recently-completed jobs. Every state-changing call appends a
// structured event to the job's bounded buffer, notifies live
// subscribers, and shadows the mutation to the durable mirror when
// one is configured. Mirror failures are logged and swallowed: the
// in-memory copy wins for the life of the process.
//
// Store is an explicit registry object, constructed at service start
// and injected where needed.
type Store struct {
	mu       sync.RWMutex
	jobs     map[string]*models.Job
	eventCap int

	registry interfaces.EventRegistry
	durable  interfaces.DurableStore // nil when not configured
	logger   arbor.ILogger
}

// NewStore creates an empty job store. durable may be nil.
func NewStore(registry interfaces.EventRegistry, durable interfaces.DurableStore, eventCap int, logger arbor.ILogger) *Store {
	if eventCap <= 0 {
		eventCap = 100
	}
	return &Store{
		jobs:     make(map[string]*models.Job),
		eventCap: eventCap,
		registry: registry,
		durable:  durable,
		logger:   logger,
	}
}

// HasDurable reports whether a durable mirror is configured
func (s *Store) HasDurable() bool {
	return s.durable != nil
}

// Durable exposes the mirror for read paths (listing, export,
// resume). Returns nil when not configured.
func (s *Store) Durable() interfaces.DurableStore {
	return s.durable
}

// EventCap returns the configured per-job event buffer capacity
func (s *Store) EventCap() int {
	return s.eventCap
}

// mirror runs a durable write, logging and swallowing any failure
func (s *Store) mirror(op string, jobID string, fn func(ctx context.Context) error) {
	if s.durable == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		s.logger.Warn().
			Str("job_id", jobID).
			Str("operation", op).
			Err(err).
			Msg("Durable mirror write failed")
	}
}

// appendAndPublish stores an event on the job and notifies
// subscribers. Caller must hold s.mu.
func (s *Store) appendAndPublish(job *models.Job, event models.JobEvent) {
	stored := job.AppendEvent(event)
	s.registry.Publish(job.ID, stored)
}

// CreateJob registers a fresh pending job and mirrors the creation
func (s *Store) CreateJob(id string, config models.JobConfig) *models.Job {
	job := models.NewJob(id, config, s.eventCap)

	s.mu.Lock()
	s.jobs[id] = job
	s.mu.Unlock()

	s.mirror("create_job", id, func(ctx context.Context) error {
		return s.durable.CreateJob(ctx, job)
	})

	s.logger.Info().
		Str("job_id", id).
		Str("user_id", config.UserID).
		Str("query", config.Query).
		Msg("Job created")
	return job
}

// InsertResumedJob registers a fresh pending job that resumes a prior
// run. The durable row is reset rather than re-created.
func (s *Store) InsertResumedJob(job *models.Job) {
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	s.mirror("reset_job_for_resume", job.ID, func(ctx context.Context) error {
		return s.durable.ResetJobForResume(ctx, job.ID)
	})

	s.logger.Info().
		Str("job_id", job.ID).
		Str("resume_step", job.ResumeStep).
		Int("skip_ids", len(job.SkipPlaceIDs)).
		Msg("Job prepared for resume")
}

// get returns the live job pointer. Caller must hold s.mu.
func (s *Store) get(jobID string) (*models.Job, bool) {
	job, ok := s.jobs[jobID]
	return job, ok
}

// Snapshot returns a copy of the job's visible state for read paths
func (s *Store) Snapshot(jobID string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.get(jobID)
	if !ok {
		return nil, ErrJobNotFound
	}
	return snapshotJob(job), nil
}

func snapshotJob(job *models.Job) *models.Job {
	copied := *job
	copied.Leads = append([]*models.Lead(nil), job.Leads...)
	if job.Progress != nil {
		p := *job.Progress
		copied.Progress = &p
	}
	if job.Summary != nil {
		sm := *job.Summary
		copied.Summary = &sm
	}
	return &copied
}

// ListForUser returns snapshots of the user's in-memory jobs, newest
// first.
func (s *Store) ListForUser(userID string) []*models.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Job
	for _, job := range s.jobs {
		if job.Config.UserID == userID {
			out = append(out, snapshotJob(job))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// CountActive returns the number of pending+running jobs globally
func (s *Store) CountActive() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, job := range s.jobs {
		if job.Status == models.JobStatusPending || job.Status == models.JobStatusRunning {
			count++
		}
	}
	return count
}

// CountActiveForUser returns the user's pending+running job count
func (s *Store) CountActiveForUser(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, job := range s.jobs {
		if job.Config.UserID != userID {
			continue
		}
		if job.Status == models.JobStatusPending || job.Status == models.JobStatusRunning {
			count++
		}
	}
	return count
}

// MarkStarted transitions a job to running. Idempotent with respect
// to the start timestamp.
func (s *Store) MarkStarted(jobID string) error {
	s.mu.Lock()
	job, ok := s.get(jobID)
	if !ok {
		s.mu.Unlock()
		return ErrJobNotFound
	}
	if err := job.MarkStarted(); err != nil {
		s.mu.Unlock()
		return err
	}
	startedAt := job.StartedAt
	s.mu.Unlock()

	s.mirror("update_job_status", jobID, func(ctx context.Context) error {
		return s.durable.UpdateJobStatus(ctx, jobID, models.JobStatusRunning, startedAt, nil)
	})
	return nil
}

// UpdateProgress records progress and emits a status event
func (s *Store) UpdateProgress(jobID, step string, current, total int, message string) error {
	s.mu.Lock()
	job, ok := s.get(jobID)
	if !ok {
		s.mu.Unlock()
		return ErrJobNotFound
	}
	progress := &models.Progress{Step: step, Current: current, Total: total, Message: message}
	job.Progress = progress
	s.appendAndPublish(job, models.NewStatusEvent(step, current, total, message))
	s.mu.Unlock()

	s.mirror("update_job_progress", jobID, func(ctx context.Context) error {
		return s.durable.UpdateJobProgress(ctx, jobID, progress)
	})
	return nil
}

// UpdateCheckpoint records resume state. No event is emitted.
func (s *Store) UpdateCheckpoint(jobID string, checkpoint *models.Checkpoint) error {
	s.mu.Lock()
	job, ok := s.get(jobID)
	if !ok {
		s.mu.Unlock()
		return ErrJobNotFound
	}
	job.Checkpoint = checkpoint
	s.mu.Unlock()

	s.mirror("update_job_checkpoint", jobID, func(ctx context.Context) error {
		return s.durable.UpdateJobCheckpoint(ctx, jobID, checkpoint)
	})
	return nil
}

// AddLead appends an accepted lead, emits a lead event, and mirrors
// the insert. Dedup decisions happen upstream in the orchestrator
// callbacks; this method trusts its caller.
func (s *Store) AddLead(jobID string, lead *models.Lead) error {
	s.mu.Lock()
	job, ok := s.get(jobID)
	if !ok {
		s.mu.Unlock()
		return ErrJobNotFound
	}
	userID := job.Config.UserID
	job.Leads = append(job.Leads, lead)
	s.appendAndPublish(job, models.NewLeadEvent(lead))
	s.mu.Unlock()

	s.mirror("add_lead", jobID, func(ctx context.Context) error {
		return s.durable.AddLead(ctx, jobID, userID, lead)
	})
	return nil
}

// UpdateLead replaces an accepted lead in place and emits a
// lead_update event. A lead whose place id was never accepted is a
// no-op: duplicates rejected at the lead callback must not resurface
// through the update path.
func (s *Store) UpdateLead(jobID string, lead *models.Lead) error {
	s.mu.Lock()
	job, ok := s.get(jobID)
	if !ok {
		s.mu.Unlock()
		return ErrJobNotFound
	}
	found := false
	for i, existing := range job.Leads {
		if existing.PlaceID == lead.PlaceID {
			job.Leads[i] = lead
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return nil
	}
	s.appendAndPublish(job, models.NewLeadUpdateEvent(lead))
	s.mu.Unlock()

	s.mirror("update_lead", jobID, func(ctx context.Context) error {
		return s.durable.UpdateLead(ctx, jobID, lead)
	})
	return nil
}

// CompleteJob transitions running -> completed with a summary and
// emits the terminal complete event.
func (s *Store) CompleteJob(jobID string, summary *models.JobSummary) error {
	s.mu.Lock()
	job, ok := s.get(jobID)
	if !ok {
		s.mu.Unlock()
		return ErrJobNotFound
	}
	if err := job.MarkCompleted(summary); err != nil {
		s.mu.Unlock()
		return err
	}
	s.appendAndPublish(job, models.NewCompleteEvent(summary))
	s.mu.Unlock()

	s.mirror("complete_job", jobID, func(ctx context.Context) error {
		return s.durable.CompleteJob(ctx, jobID, summary)
	})

	s.logger.Info().
		Str("job_id", jobID).
		Int("total_leads", summary.TotalLeads).
		Msg("Job completed")
	return nil
}

// FailJob transitions to failed and emits a non-recoverable error event
func (s *Store) FailJob(jobID, errMsg string) error {
	s.mu.Lock()
	job, ok := s.get(jobID)
	if !ok {
		s.mu.Unlock()
		return ErrJobNotFound
	}
	if err := job.MarkFailed(errMsg); err != nil {
		s.mu.Unlock()
		return err
	}
	s.appendAndPublish(job, models.NewErrorEvent(errMsg, false))
	s.mu.Unlock()

	s.mirror("fail_job", jobID, func(ctx context.Context) error {
		return s.durable.FailJob(ctx, jobID, errMsg)
	})

	s.logger.Warn().
		Str("job_id", jobID).
		Str("error", errMsg).
		Msg("Job failed")
	return nil
}

// RequestCancel cancels a pending or running job. The cancellation
// flag is polled cooperatively by the pipeline; the status flips
// immediately so readers and streams see the terminal state without
// waiting for the pipeline to notice.
func (s *Store) RequestCancel(jobID string) error {
	s.mu.Lock()
	job, ok := s.get(jobID)
	if !ok {
		s.mu.Unlock()
		return ErrJobNotFound
	}
	if job.Status != models.JobStatusPending && job.Status != models.JobStatusRunning {
		s.mu.Unlock()
		return ErrNotCancellable
	}
	job.CancelRequested = true
	if err := job.MarkCancelled(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.appendAndPublish(job, models.NewErrorEvent("Job cancelled by user", false))
	s.mu.Unlock()

	s.mirror("cancel_job", jobID, func(ctx context.Context) error {
		return s.durable.CancelJob(ctx, jobID)
	})

	s.logger.Info().Str("job_id", jobID).Msg("Job cancelled")
	return nil
}

// IsCancelRequested reports whether cancellation was requested.
// Unknown jobs read as cancelled so an orphaned pipeline stops.
func (s *Store) IsCancelRequested(jobID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.get(jobID)
	if !ok {
		return true
	}
	return job.CancelRequested
}

// SubscribeWithReplay atomically replays buffered events after
// afterSeq and registers the sink for new events, so no event is
// missed or duplicated between replay and registration. The returned
// status lets the caller close immediately for terminal jobs.
func (s *Store) SubscribeWithReplay(jobID string, afterSeq int64, sink interfaces.EventSink) ([]models.JobEvent, models.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.get(jobID)
	if !ok {
		return nil, "", ErrJobNotFound
	}
	replay := job.EventsAfter(afterSeq)
	if !job.Status.IsTerminal() {
		s.registry.Register(jobID, sink)
	}
	return replay, job.Status, nil
}

// Unsubscribe removes a streaming sink
func (s *Store) Unsubscribe(jobID string, sink interfaces.EventSink) {
	s.registry.Unregister(jobID, sink)
}

// Remove drops a job from memory along with its subscribers. The
// durable copy is untouched.
func (s *Store) Remove(jobID string) {
	s.mu.Lock()
	delete(s.jobs, jobID)
	s.mu.Unlock()
	s.registry.DropJob(jobID)
}

// TimedOutJobs returns ids of running jobs started before the cutoff
func (s *Store) TimedOutJobs(cutoff time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, job := range s.jobs {
		if job.Status == models.JobStatusRunning && job.StartedAt != nil && job.StartedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

// ExpiredJobs returns ids of terminal jobs completed before the cutoff
func (s *Store) ExpiredJobs(cutoff time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, job := range s.jobs {
		if job.Status.IsTerminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}
