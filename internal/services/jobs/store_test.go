package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/leadforge/internal/models"
	"github.com/ternarybob/leadforge/internal/services/events"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := arbor.NewLogger()
	return NewStore(events.NewRegistry(logger), nil, 100, logger)
}

func TestStoreCreateAndSnapshot(t *testing.T) {
	store := newTestStore(t)

	job := store.CreateJob("abc12345", models.JobConfig{Query: "cafes melbourne", UserID: "u1"})
	require.NotNil(t, job)
	assert.Equal(t, models.JobStatusPending, job.Status)

	snapshot, err := store.Snapshot("abc12345")
	require.NoError(t, err)
	assert.Equal(t, "cafes melbourne", snapshot.Config.Query)

	// Snapshots are copies: mutating one must not leak into the store.
	snapshot.Config.Query = "changed"
	again, err := store.Snapshot("abc12345")
	require.NoError(t, err)
	assert.Equal(t, "cafes melbourne", again.Config.Query)

	_, err = store.Snapshot("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestStoreActiveCounts(t *testing.T) {
	store := newTestStore(t)

	store.CreateJob("job1", models.JobConfig{Query: "q", UserID: "u1"})
	store.CreateJob("job2", models.JobConfig{Query: "q", UserID: "u2"})
	require.NoError(t, store.MarkStarted("job2"))

	assert.Equal(t, 2, store.CountActive())
	assert.Equal(t, 1, store.CountActiveForUser("u1"))
	assert.Equal(t, 1, store.CountActiveForUser("u2"))

	require.NoError(t, store.FailJob("job2", "boom"))
	assert.Equal(t, 1, store.CountActive())
	assert.Equal(t, 0, store.CountActiveForUser("u2"))
}

func TestStoreProgressEmitsEvents(t *testing.T) {
	store := newTestStore(t)
	store.CreateJob("job1", models.JobConfig{Query: "q", UserID: "u1"})

	require.NoError(t, store.UpdateProgress("job1", "scraping", 0, 20, "Scraping Google Maps"))
	require.NoError(t, store.UpdateProgress("job1", "enriching", 1, 20, "Enriching leads"))

	sub := events.NewSubscription(16)
	replay, status, err := store.SubscribeWithReplay("job1", -1, sub)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, status)
	require.Len(t, replay, 2)
	assert.Equal(t, models.EventStatus, replay[0].Type)
	assert.Equal(t, int64(0), replay[0].Sequence)
	assert.Equal(t, "enriching", replay[1].Step)

	// Live events flow to the registered sink.
	require.NoError(t, store.UpdateProgress("job1", "enriching", 2, 20, "Enriching leads"))
	select {
	case event := <-sub.Events():
		assert.Equal(t, int64(2), event.Sequence)
	case <-time.After(time.Second):
		t.Fatal("expected live event")
	}
}

func TestStoreSubscribeAfterSeq(t *testing.T) {
	store := newTestStore(t)
	store.CreateJob("job1", models.JobConfig{Query: "q", UserID: "u1"})

	for i := 0; i < 5; i++ {
		require.NoError(t, store.UpdateProgress("job1", "enriching", i, 5, "working"))
	}

	sub := events.NewSubscription(16)
	replay, _, err := store.SubscribeWithReplay("job1", 2, sub)
	require.NoError(t, err)
	require.Len(t, replay, 2)
	assert.Equal(t, int64(3), replay[0].Sequence)
	assert.Equal(t, int64(4), replay[1].Sequence)
	store.Unsubscribe("job1", sub)
}

func TestStoreTerminalJobNotSubscribed(t *testing.T) {
	store := newTestStore(t)
	store.CreateJob("job1", models.JobConfig{Query: "q", UserID: "u1"})
	require.NoError(t, store.MarkStarted("job1"))
	require.NoError(t, store.CompleteJob("job1", &models.JobSummary{TotalLeads: 3}))

	sub := events.NewSubscription(16)
	replay, status, err := store.SubscribeWithReplay("job1", -1, sub)
	require.NoError(t, err)
	assert.True(t, status.IsTerminal())
	require.NotEmpty(t, replay)
	assert.Equal(t, models.EventComplete, replay[len(replay)-1].Type)

	// No registration happened: later publishes cannot reach the sink
	// because the job is terminal, and unsubscribe is a no-op.
	store.Unsubscribe("job1", sub)
}

func TestStoreAddAndUpdateLead(t *testing.T) {
	store := newTestStore(t)
	store.CreateJob("job1", models.JobConfig{Query: "q", UserID: "u1"})

	lead := &models.Lead{PlaceID: "p1", Name: "Acme"}
	require.NoError(t, store.AddLead("job1", lead))

	updated := &models.Lead{PlaceID: "p1", Name: "Acme", Outreach: &models.OutreachMessages{EmailSubject: "Hi"}}
	require.NoError(t, store.UpdateLead("job1", updated))

	// Updating a lead never accepted is a silent no-op.
	require.NoError(t, store.UpdateLead("job1", &models.Lead{PlaceID: "never-seen"}))

	snapshot, err := store.Snapshot("job1")
	require.NoError(t, err)
	require.Len(t, snapshot.Leads, 1)
	assert.Equal(t, "Hi", snapshot.Leads[0].Outreach.EmailSubject)

	sub := events.NewSubscription(16)
	replay, _, err := store.SubscribeWithReplay("job1", -1, sub)
	require.NoError(t, err)
	require.Len(t, replay, 2)
	assert.Equal(t, models.EventLead, replay[0].Type)
	assert.Equal(t, models.EventLeadUpdate, replay[1].Type)
	store.Unsubscribe("job1", sub)
}

func TestStoreRequestCancel(t *testing.T) {
	store := newTestStore(t)
	store.CreateJob("job1", models.JobConfig{Query: "q", UserID: "u1"})

	require.NoError(t, store.RequestCancel("job1"))

	snapshot, err := store.Snapshot("job1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, snapshot.Status)
	assert.True(t, store.IsCancelRequested("job1"))

	// Terminal jobs cannot be cancelled again.
	assert.ErrorIs(t, store.RequestCancel("job1"), ErrNotCancellable)

	// Unknown jobs read as cancelled so orphaned pipelines stop.
	assert.True(t, store.IsCancelRequested("missing"))
}

func TestStoreSweepQueries(t *testing.T) {
	store := newTestStore(t)

	store.CreateJob("running", models.JobConfig{Query: "q", UserID: "u1"})
	require.NoError(t, store.MarkStarted("running"))

	store.CreateJob("done", models.JobConfig{Query: "q", UserID: "u2"})
	require.NoError(t, store.MarkStarted("done"))
	require.NoError(t, store.CompleteJob("done", &models.JobSummary{}))

	// Cutoffs in the future catch everything started/completed so far.
	future := time.Now().UTC().Add(time.Hour)
	assert.Equal(t, []string{"running"}, store.TimedOutJobs(future))
	assert.Equal(t, []string{"done"}, store.ExpiredJobs(future))

	// Cutoffs in the past catch nothing.
	past := time.Now().UTC().Add(-time.Hour)
	assert.Empty(t, store.TimedOutJobs(past))
	assert.Empty(t, store.ExpiredJobs(past))

	store.Remove("done")
	_, err := store.Snapshot("done")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestStoreListForUser(t *testing.T) {
	store := newTestStore(t)

	store.CreateJob("a", models.JobConfig{Query: "q", UserID: "u1"})
	time.Sleep(5 * time.Millisecond)
	store.CreateJob("b", models.JobConfig{Query: "q", UserID: "u1"})
	store.CreateJob("c", models.JobConfig{Query: "q", UserID: "u2"})

	list := store.ListForUser("u1")
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID) // newest first
	assert.Equal(t, "a", list[1].ID)
}
