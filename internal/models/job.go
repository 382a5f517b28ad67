package models

import (
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a pipeline job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal returns true for states with no outgoing transitions
// other than resume (which creates a fresh pending job, not a
// transition).
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// IsResumable returns true if a job in this state can be resumed
func (s JobStatus) IsResumable() bool {
	return s == JobStatusFailed || s == JobStatusCancelled
}

// legalTransitions defines the job state machine:
// pending -> running -> {completed | failed | cancelled}
// pending may also fail or be cancelled before it ever runs.
var legalTransitions = map[JobStatus][]JobStatus{
	JobStatusPending: {JobStatusRunning, JobStatusFailed, JobStatusCancelled},
	JobStatusRunning: {JobStatusCompleted, JobStatusFailed, JobStatusCancelled},
}

func canTransition(from, to JobStatus) bool {
	for _, s := range legalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// JobConfig is the immutable configuration captured at job creation
type JobConfig struct {
	Query          string `json:"query"`
	UserID         string `json:"user_id"`
	MaxResults     int    `json:"max_results"`
	MinScore       int    `json:"min_score"`
	SkipEnrichment bool   `json:"skip_enrichment"`
	SkipOutreach   bool   `json:"skip_outreach"`
	ProductContext string `json:"product_context,omitempty"`
	Language       string `json:"language,omitempty"`
}

// Progress is the most recent progress report from the pipeline
type Progress struct {
	Step    string `json:"step"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// Checkpoint records how far a run got so a failed or cancelled job
// can resume without redoing completed work.
type Checkpoint struct {
	Step              string    `json:"step"`
	ProcessedPlaceIDs []string  `json:"processed_place_ids"`
	LastIndex         int       `json:"last_index"`
	SavedAt           time.Time `json:"saved_at"`
}

// JobSummary is attached when a job completes
type JobSummary struct {
	TotalLeads        int      `json:"total_leads"`
	HotLeads          int      `json:"hot_leads"`
	WarmLeads         int      `json:"warm_leads"`
	ColdLeads         int      `json:"cold_leads"`
	DuplicatesSkipped int      `json:"duplicates_skipped"`
	DuplicateJobIDs   []string `json:"duplicate_job_ids,omitempty"`
	DurationSeconds   float64  `json:"duration_seconds"`
}

// Job is one user-initiated pipeline run. All mutation goes through
// the job store so that every change fans out to the durable mirror,
// the event buffer, and live subscribers; nothing outside the store
// should write these fields directly.
type Job struct {
	ID     string    `json:"job_id"`
	Config JobConfig `json:"config"`

	Status      JobStatus   `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Progress    *Progress   `json:"progress,omitempty"`
	Summary     *JobSummary `json:"summary,omitempty"`
	Error       string      `json:"error,omitempty"`

	// Leads that passed dedup, in acceptance order.
	Leads []*Lead `json:"-"`

	Checkpoint      *Checkpoint         `json:"-"`
	SkipPlaceIDs    map[string]struct{} `json:"-"`
	ResumeStep      string              `json:"-"`
	CancelRequested bool                `json:"-"`

	// Bounded circular event log for reconnect replay.
	events   []JobEvent
	eventCap int
	nextSeq  int64
}

// NewJob creates a pending job with the given id, config and event
// buffer capacity.
func NewJob(id string, config JobConfig, eventCap int) *Job {
	if eventCap <= 0 {
		eventCap = 100
	}
	return &Job{
		ID:           id,
		Config:       config,
		Status:       JobStatusPending,
		CreatedAt:    time.Now().UTC(),
		SkipPlaceIDs: make(map[string]struct{}),
		eventCap:     eventCap,
	}
}

// MarkStarted transitions pending -> running. The start timestamp is
// recorded once; a second call while already running is a no-op.
func (j *Job) MarkStarted() error {
	if j.Status == JobStatusRunning {
		return nil
	}
	if !canTransition(j.Status, JobStatusRunning) {
		return fmt.Errorf("cannot start job in status %s", j.Status)
	}
	j.Status = JobStatusRunning
	if j.StartedAt == nil {
		now := time.Now().UTC()
		j.StartedAt = &now
	}
	return nil
}

// MarkCompleted transitions running -> completed and attaches the summary
func (j *Job) MarkCompleted(summary *JobSummary) error {
	if !canTransition(j.Status, JobStatusCompleted) {
		return fmt.Errorf("cannot complete job in status %s", j.Status)
	}
	j.Status = JobStatusCompleted
	j.Summary = summary
	now := time.Now().UTC()
	j.CompletedAt = &now
	return nil
}

// MarkFailed transitions pending/running -> failed with an error message
func (j *Job) MarkFailed(errMsg string) error {
	if !canTransition(j.Status, JobStatusFailed) {
		return fmt.Errorf("cannot fail job in status %s", j.Status)
	}
	j.Status = JobStatusFailed
	j.Error = errMsg
	now := time.Now().UTC()
	j.CompletedAt = &now
	return nil
}

// MarkCancelled transitions pending/running -> cancelled
func (j *Job) MarkCancelled() error {
	if !canTransition(j.Status, JobStatusCancelled) {
		return fmt.Errorf("cannot cancel job in status %s", j.Status)
	}
	j.Status = JobStatusCancelled
	now := time.Now().UTC()
	j.CompletedAt = &now
	return nil
}

// AppendEvent assigns the next sequence number and appends the event
// to the bounded buffer, dropping the oldest entry past capacity.
// Returns the stored event with its sequence populated.
func (j *Job) AppendEvent(event JobEvent) JobEvent {
	event.Sequence = j.nextSeq
	j.nextSeq++
	j.events = append(j.events, event)
	if len(j.events) > j.eventCap {
		j.events = j.events[len(j.events)-j.eventCap:]
	}
	return event
}

// EventsAfter returns buffered events with sequence numbers strictly
// greater than afterSeq, in order. Pass -1 for a full replay.
func (j *Job) EventsAfter(afterSeq int64) []JobEvent {
	out := make([]JobEvent, 0, len(j.events))
	for _, e := range j.events {
		if e.Sequence > afterSeq {
			out = append(out, e)
		}
	}
	return out
}

// AllEvents returns a copy of the full buffered event log
func (j *Job) AllEvents() []JobEvent {
	out := make([]JobEvent, len(j.events))
	copy(out, j.events)
	return out
}

// HasLead reports whether a lead with this place id was accepted
func (j *Job) HasLead(placeID string) bool {
	for _, l := range j.Leads {
		if l.PlaceID == placeID {
			return true
		}
	}
	return false
}

// AcceptedPlaceIDs returns the place ids of accepted leads, in order
func (j *Job) AcceptedPlaceIDs() []string {
	ids := make([]string, 0, len(j.Leads))
	for _, l := range j.Leads {
		ids = append(ids, l.PlaceID)
	}
	return ids
}
