package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    JobStatus
		apply   func(*Job) error
		wantErr bool
	}{
		{"pending to running", JobStatusPending, func(j *Job) error { return j.MarkStarted() }, false},
		{"pending to failed", JobStatusPending, func(j *Job) error { return j.MarkFailed("boom") }, false},
		{"pending to cancelled", JobStatusPending, func(j *Job) error { return j.MarkCancelled() }, false},
		{"pending to completed", JobStatusPending, func(j *Job) error { return j.MarkCompleted(nil) }, true},
		{"running to completed", JobStatusRunning, func(j *Job) error { return j.MarkCompleted(&JobSummary{}) }, false},
		{"running to failed", JobStatusRunning, func(j *Job) error { return j.MarkFailed("boom") }, false},
		{"running to cancelled", JobStatusRunning, func(j *Job) error { return j.MarkCancelled() }, false},
		{"completed to running", JobStatusCompleted, func(j *Job) error { return j.MarkStarted() }, true},
		{"completed to failed", JobStatusCompleted, func(j *Job) error { return j.MarkFailed("boom") }, true},
		{"failed to cancelled", JobStatusFailed, func(j *Job) error { return j.MarkCancelled() }, true},
		{"cancelled to completed", JobStatusCancelled, func(j *Job) error { return j.MarkCompleted(&JobSummary{}) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewJob("abc12345", JobConfig{Query: "plumbers sydney", UserID: "u1"}, 100)
			job.Status = tt.from

			err := tt.apply(job)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestJobMarkStartedIdempotent(t *testing.T) {
	job := NewJob("abc12345", JobConfig{Query: "q", UserID: "u1"}, 100)

	require.NoError(t, job.MarkStarted())
	first := job.StartedAt
	require.NotNil(t, first)

	// Starting an already-running job keeps the original timestamp.
	require.NoError(t, job.MarkStarted())
	assert.Equal(t, first, job.StartedAt)
	assert.Equal(t, JobStatusRunning, job.Status)
}

func TestJobTerminalAndResumable(t *testing.T) {
	assert.False(t, JobStatusPending.IsTerminal())
	assert.False(t, JobStatusRunning.IsTerminal())
	assert.True(t, JobStatusCompleted.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
	assert.True(t, JobStatusCancelled.IsTerminal())

	assert.False(t, JobStatusCompleted.IsResumable())
	assert.True(t, JobStatusFailed.IsResumable())
	assert.True(t, JobStatusCancelled.IsResumable())
}

func TestJobEventBufferBounded(t *testing.T) {
	job := NewJob("abc12345", JobConfig{Query: "q", UserID: "u1"}, 100)

	for i := 0; i < 150; i++ {
		job.AppendEvent(NewStatusEvent("enriching", i, 150, fmt.Sprintf("event %d", i)))
	}

	events := job.AllEvents()
	require.Len(t, events, 100)

	// Oldest 50 dropped, sequences still contiguous and monotonic.
	assert.Equal(t, int64(50), events[0].Sequence)
	assert.Equal(t, int64(149), events[len(events)-1].Sequence)
	for i := 1; i < len(events); i++ {
		assert.Equal(t, events[i-1].Sequence+1, events[i].Sequence)
	}
}

func TestJobEventsAfter(t *testing.T) {
	job := NewJob("abc12345", JobConfig{Query: "q", UserID: "u1"}, 100)
	for i := 0; i < 10; i++ {
		job.AppendEvent(NewStatusEvent("scraping", i, 10, "working"))
	}

	tests := []struct {
		name      string
		afterSeq  int64
		wantCount int
		wantFirst int64
	}{
		{"full replay", -1, 10, 0},
		{"partial replay", 4, 5, 5},
		{"nothing newer", 9, 0, 0},
		{"beyond buffer", 100, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := job.EventsAfter(tt.afterSeq)
			assert.Len(t, events, tt.wantCount)
			if tt.wantCount > 0 {
				assert.Equal(t, tt.wantFirst, events[0].Sequence)
			}
		})
	}
}

func TestJobEventIsTerminal(t *testing.T) {
	assert.True(t, NewCompleteEvent(&JobSummary{}).IsTerminal())
	assert.True(t, NewErrorEvent("fatal", false).IsTerminal())
	assert.False(t, NewErrorEvent("hiccup", true).IsTerminal())
	assert.False(t, NewStatusEvent("scoring", 1, 2, "msg").IsTerminal())
	assert.False(t, NewLeadEvent(&Lead{}).IsTerminal())
}
