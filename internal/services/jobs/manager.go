package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/leadforge/internal/common"
	"github.com/ternarybob/leadforge/internal/models"
	"github.com/ternarybob/leadforge/internal/services/pipeline"
)

// Manager owns job creation, admission control, dispatch onto the
// worker pool, cancellation, resume, the periodic sweep loop, and
// startup orphan recovery. HTTP handlers talk to jobs exclusively
// through the manager.
type Manager struct {
	store        *Store
	orchestrator *pipeline.Orchestrator
	logger       arbor.ILogger

	maxConcurrent int
	maxPerUser    int
	timeout       time.Duration
	ttl           time.Duration

	workers chan struct{} // worker pool semaphore
	cron    *cron.Cron
	wg      sync.WaitGroup
}

// ManagerConfig carries the tunables the manager needs
type ManagerConfig struct {
	MaxConcurrent   int
	MaxPerUser      int
	TimeoutMinutes  int
	TTLMinutes      int
	CleanupSchedule string
	WorkerCount     int
}

// NewManager creates a job manager. Call Start to begin the sweep
// loop and Stop to drain it.
func NewManager(store *Store, orchestrator *pipeline.Orchestrator, cfg ManagerConfig, logger arbor.ILogger) *Manager {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 3
	}
	if cfg.MaxPerUser <= 0 {
		cfg.MaxPerUser = 1
	}
	m := &Manager{
		store:         store,
		orchestrator:  orchestrator,
		logger:        logger,
		maxConcurrent: cfg.MaxConcurrent,
		maxPerUser:    cfg.MaxPerUser,
		timeout:       time.Duration(cfg.TimeoutMinutes) * time.Minute,
		ttl:           time.Duration(cfg.TTLMinutes) * time.Minute,
		workers:       make(chan struct{}, cfg.WorkerCount),
	}

	schedule := cfg.CleanupSchedule
	if schedule == "" {
		schedule = "@every 1m"
	}
	m.cron = cron.New()
	m.cron.AddFunc(schedule, m.sweep)

	return m
}

// Start launches the background sweep loop
func (m *Manager) Start() {
	m.cron.Start()
	m.logger.Info().Msg("Job sweep loop started")
}

// Stop halts the sweep loop and waits for in-flight pipelines
func (m *Manager) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.wg.Wait()
	m.logger.Info().Msg("Job manager stopped")
}

// checkAdmission enforces the global and per-user concurrency
// ceilings. Advisory counts, not locks: creation is not a hot path
// and the counters are recomputed on every request.
func (m *Manager) checkAdmission(userID string) error {
	if m.store.CountActive() >= m.maxConcurrent {
		return ErrTooManyJobs
	}
	if m.store.CountActiveForUser(userID) >= m.maxPerUser {
		return ErrUserJobLimit
	}
	return nil
}

// CreateJob admits and creates a job, then dispatches the pipeline in
// the background. Returns immediately with the pending job.
func (m *Manager) CreateJob(config models.JobConfig) (*models.Job, error) {
	if err := m.checkAdmission(config.UserID); err != nil {
		return nil, err
	}

	job := m.store.CreateJob(common.NewJobID(), config)
	m.dispatch(job.ID, config, nil, false)
	return job, nil
}

// GetJob returns a snapshot, preferring the live in-memory record and
// falling back to the durable mirror for historical jobs.
func (m *Manager) GetJob(jobID string) (*models.Job, error) {
	if job, err := m.store.Snapshot(jobID); err == nil {
		return job, nil
	}
	if durable := m.store.Durable(); durable != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		job, err := durable.GetJob(ctx, jobID)
		if err != nil {
			m.logger.Warn().Str("job_id", jobID).Err(err).Msg("Durable job lookup failed")
		} else if job != nil {
			return job, nil
		}
	}
	return nil, ErrJobNotFound
}

// ListJobs merges live and historical jobs for a user: in-memory
// first, then durable rows not already present, newest first.
func (m *Manager) ListJobs(userID string) []*models.Job {
	jobs := m.store.ListForUser(userID)
	seen := make(map[string]struct{}, len(jobs))
	for _, j := range jobs {
		seen[j.ID] = struct{}{}
	}

	if durable := m.store.Durable(); durable != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		stored, err := durable.GetJobsForUser(ctx, userID)
		if err != nil {
			m.logger.Warn().Str("user_id", userID).Err(err).Msg("Durable job list failed")
		} else {
			for _, j := range stored {
				if _, ok := seen[j.ID]; !ok {
					jobs = append(jobs, j)
				}
			}
		}
	}

	// In-memory list is already sorted; re-sort the merged view.
	for i := 1; i < len(jobs); i++ {
		for k := i; k > 0 && jobs[k].CreatedAt.After(jobs[k-1].CreatedAt); k-- {
			jobs[k], jobs[k-1] = jobs[k-1], jobs[k]
		}
	}
	return jobs
}

// GetLeads returns a job's accepted leads, reading from the durable
// mirror when the job has left memory.
func (m *Manager) GetLeads(jobID string) ([]*models.Lead, error) {
	if job, err := m.store.Snapshot(jobID); err == nil && len(job.Leads) > 0 {
		return job.Leads, nil
	}
	if durable := m.store.Durable(); durable != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return durable.GetLeadsForJob(ctx, jobID)
	}
	if _, err := m.store.Snapshot(jobID); err != nil {
		return nil, ErrJobNotFound
	}
	return nil, nil
}

// Cancel requests cooperative cancellation of a pending or running job
func (m *Manager) Cancel(jobID, userID string) error {
	job, err := m.store.Snapshot(jobID)
	if err != nil {
		return err
	}
	if job.Config.UserID != userID {
		return ErrNotOwner
	}
	return m.store.RequestCancel(jobID)
}

// Delete removes a job permanently. Running or pending jobs must be
// cancelled first. The durable leads and job row are removed, then
// the in-memory copy.
func (m *Manager) Delete(jobID, userID string) error {
	job, err := m.GetJob(jobID)
	if err != nil {
		return err
	}
	if job.Config.UserID != userID {
		return ErrNotOwner
	}
	if job.Status == models.JobStatusPending || job.Status == models.JobStatusRunning {
		return ErrNotCancellable
	}

	if durable := m.store.Durable(); durable != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := durable.DeleteLeadsForJob(ctx, jobID); err != nil {
			return fmt.Errorf("failed to delete leads: %w", err)
		}
		if err := durable.DeleteJob(ctx, jobID); err != nil {
			return fmt.Errorf("failed to delete job: %w", err)
		}
	}
	m.store.Remove(jobID)
	return nil
}

// Resume restarts a failed or cancelled job from its checkpoint. The
// checkpoint step selects the mode: a step containing "outreach"
// reloads scored leads and re-runs outreach only; anything earlier
// reloads raw leads and re-runs enrich, score, and outreach with the
// already-processed ids skipped. A fresh pending job under the same
// id goes through normal admission control.
func (m *Manager) Resume(jobID, userID string) (*models.Job, error) {
	durable := m.store.Durable()
	if durable == nil {
		return nil, ErrResumeUnavailable
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	stored, err := durable.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if stored == nil {
		return nil, ErrJobNotFound
	}
	if stored.Config.UserID != userID {
		return nil, ErrNotOwner
	}
	if !stored.Status.IsResumable() {
		return nil, ErrNotResumable
	}
	if err := m.checkAdmission(userID); err != nil {
		return nil, err
	}

	saved, err := durable.GetLeadsForJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load saved leads: %w", err)
	}

	resumeStep := pipeline.StepResuming
	skipIDs := make(map[string]struct{})
	if stored.Checkpoint != nil {
		resumeStep = stored.Checkpoint.Step
		for _, id := range stored.Checkpoint.ProcessedPlaceIDs {
			skipIDs[id] = struct{}{}
		}
	}
	outreachOnly := strings.Contains(strings.ToLower(resumeStep), "outreach")

	resumeLeads := make([]*models.Lead, 0, len(saved))
	for _, lead := range saved {
		if outreachOnly {
			reconstructScore(lead)
			lead.Stage = models.StageScored
		} else {
			lead.Stage = models.StageRaw
			lead.Outreach = nil
		}
		resumeLeads = append(resumeLeads, lead)
	}

	job := models.NewJob(jobID, stored.Config, m.store.EventCap())
	job.SkipPlaceIDs = skipIDs
	job.ResumeStep = resumeStep
	job.Leads = append(job.Leads, resumeLeads...)
	m.store.InsertResumedJob(job)

	m.dispatch(jobID, stored.Config, resumeLeads, outreachOnly)
	return job, nil
}

// reconstructScore rebuilds a score for a reloaded lead. Rows written
// by current versions carry the full component breakdown; older rows
// only stored the total, which is split evenly across the five
// components (lossy, accepted).
func reconstructScore(lead *models.Lead) {
	if lead.Score == nil {
		lead.Score = &models.LeadScore{}
	}
	s := lead.Score
	if s.Total > 0 && s.Rating == 0 && s.Reviews == 0 && s.Completeness == 0 && s.Social == 0 && s.Signals == 0 {
		component := s.Total * 1.25 / 5
		s.Rating = component
		s.Reviews = component
		s.Completeness = component
		s.Social = component
		s.Signals = component
	}
}

// dispatch queues the pipeline run on the worker pool
func (m *Manager) dispatch(jobID string, config models.JobConfig, resumeLeads []*models.Lead, outreachOnly bool) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error().
					Str("job_id", jobID).
					Str("panic", fmt.Sprintf("%v", r)).
					Msg("Pipeline panicked")
				m.store.FailJob(jobID, fmt.Sprintf("internal error: %v", r))
			}
		}()

		m.workers <- struct{}{}
		defer func() { <-m.workers }()

		m.runJob(jobID, config, resumeLeads, outreachOnly)
	}()
}

// runJob executes one pipeline run and records its outcome
func (m *Manager) runJob(jobID string, config models.JobConfig, resumeLeads []*models.Lead, outreachOnly bool) {
	// The job may have been cancelled while queued for a worker.
	if m.store.IsCancelRequested(jobID) {
		return
	}
	if err := m.store.MarkStarted(jobID); err != nil {
		m.logger.Warn().Str("job_id", jobID).Err(err).Msg("Could not start job")
		return
	}
	start := time.Now()

	var skipIDs map[string]struct{}
	if snapshot, err := m.store.Snapshot(jobID); err == nil {
		skipIDs = snapshot.SkipPlaceIDs
	} else {
		skipIDs = make(map[string]struct{})
	}

	req := pipeline.Request{
		JobID:        jobID,
		Config:       config,
		SkipPlaceIDs: skipIDs,
		ResumeLeads:  resumeLeads,
		OutreachOnly: outreachOnly,
		Progress: func(step string, current, total int) error {
			if m.store.IsCancelRequested(jobID) {
				return pipeline.ErrCancelled
			}
			return m.store.UpdateProgress(jobID, step, current, total, pipeline.StepMessage(step, current, total))
		},
		OnLeadAccepted: func(lead *models.Lead) {
			if err := m.store.AddLead(jobID, lead); err != nil {
				m.logger.Warn().Str("job_id", jobID).Err(err).Msg("Failed to record lead")
			}
		},
		OnLeadUpdated: func(lead *models.Lead) {
			if err := m.store.UpdateLead(jobID, lead); err != nil {
				m.logger.Warn().Str("job_id", jobID).Err(err).Msg("Failed to update lead")
			}
		},
		Checkpoint: func(step string, processedIDs []string, lastIndex int) {
			m.store.UpdateCheckpoint(jobID, &models.Checkpoint{
				Step:              step,
				ProcessedPlaceIDs: processedIDs,
				LastIndex:         lastIndex,
				SavedAt:           time.Now().UTC(),
			})
		},
	}

	result, err := m.orchestrator.Run(context.Background(), req)
	if err != nil {
		if errors.Is(err, pipeline.ErrCancelled) {
			// Status already flipped by RequestCancel.
			m.logger.Info().Str("job_id", jobID).Msg("Pipeline observed cancellation")
			return
		}
		m.store.FailJob(jobID, err.Error())
		return
	}

	summary := m.buildSummary(jobID, result, time.Since(start))
	if err := m.store.CompleteJob(jobID, summary); err != nil {
		m.logger.Warn().Str("job_id", jobID).Err(err).Msg("Could not complete job")
	}
}

// buildSummary counts tiers over the job's accepted leads
func (m *Manager) buildSummary(jobID string, result *pipeline.Result, elapsed time.Duration) *models.JobSummary {
	summary := &models.JobSummary{
		DuplicatesSkipped: result.DuplicatesSkipped,
		DuplicateJobIDs:   result.DuplicateJobIDs,
		DurationSeconds:   elapsed.Seconds(),
	}

	leads, err := m.GetLeads(jobID)
	if err != nil {
		leads = result.Accepted
	}
	summary.TotalLeads = len(leads)
	for _, lead := range leads {
		switch lead.Tier() {
		case "hot":
			summary.HotLeads++
		case "warm":
			summary.WarmLeads++
		default:
			summary.ColdLeads++
		}
	}
	return summary
}

// sweep force-fails timed-out running jobs and drops expired terminal
// jobs from memory. The durable copy is never swept: only explicit
// delete removes it.
func (m *Manager) sweep() {
	now := time.Now().UTC()

	for _, jobID := range m.store.TimedOutJobs(now.Add(-m.timeout)) {
		msg := fmt.Sprintf("Job timed out after %d minutes. Please try again.", int(m.timeout.Minutes()))
		if err := m.store.FailJob(jobID, msg); err != nil {
			m.logger.Warn().Str("job_id", jobID).Err(err).Msg("Timeout sweep failed to fail job")
		} else {
			m.logger.Warn().Str("job_id", jobID).Msg("Job force-failed by timeout sweep")
		}
	}

	for _, jobID := range m.store.ExpiredJobs(now.Add(-m.ttl)) {
		m.store.Remove(jobID)
		m.logger.Debug().Str("job_id", jobID).Msg("Expired job removed from memory")
	}
}

// RecoverOrphans fails any durably-stored job left running or pending
// by a previous process. Runs once, synchronously, before the server
// starts accepting work.
func (m *Manager) RecoverOrphans(ctx context.Context) error {
	durable := m.store.Durable()
	if durable == nil {
		return nil
	}

	ids, err := durable.GetOrphanedJobIDs(ctx)
	if err != nil {
		return fmt.Errorf("orphan scan failed: %w", err)
	}
	for _, jobID := range ids {
		msg := "Job interrupted by server restart. Please start a new job."
		if err := durable.FailJob(ctx, jobID, msg); err != nil {
			m.logger.Warn().Str("job_id", jobID).Err(err).Msg("Failed to mark orphaned job")
			continue
		}
		m.logger.Info().Str("job_id", jobID).Msg("Orphaned job marked failed")
	}
	if len(ids) > 0 {
		m.logger.Info().Int("count", len(ids)).Msg("Orphan recovery complete")
	}
	return nil
}
