package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/leadforge/internal/interfaces"
	"github.com/ternarybob/leadforge/internal/models"
)

type fakeScraper struct {
	leads []*models.Lead
	err   error
	calls int
}

func (f *fakeScraper) Scrape(ctx context.Context, query string, maxResults int) ([]*models.Lead, error) {
	f.calls++
	return f.leads, f.err
}

type fakeEnricher struct{ calls int }

func (f *fakeEnricher) Enrich(ctx context.Context, lead *models.Lead) *models.Lead {
	f.calls++
	lead.Stage = models.StageEnriched
	return lead
}

// fakeScorer assigns per-place totals, defaulting to 80.
type fakeScorer struct{ totals map[string]float64 }

func (f *fakeScorer) Score(lead *models.Lead) *models.Lead {
	total := 80.0
	if v, ok := f.totals[lead.PlaceID]; ok {
		total = v
	}
	lead.Score = &models.LeadScore{Total: total, Tier: "warm"}
	lead.Stage = models.StageScored
	return lead
}

type fakeOutreach struct {
	err   error
	calls int
}

func (f *fakeOutreach) Generate(ctx context.Context, lead *models.Lead, productContext, language string) (*models.OutreachMessages, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.OutreachMessages{EmailSubject: "Hello " + lead.Name}, nil
}

// fakeDurable stubs only the dedup lookup; everything else panics via
// the embedded nil interface and must not be reached by Run.
type fakeDurable struct {
	interfaces.DurableStore
	existing  map[string]*interfaces.ExistingLeadRef
	byPhone   map[string]*interfaces.ExistingLeadRef
	gotPhones []string
}

func (f *fakeDurable) CheckLeadExists(ctx context.Context, userID, placeID, phone string) (*interfaces.ExistingLeadRef, error) {
	f.gotPhones = append(f.gotPhones, phone)
	if ref := f.existing[placeID]; ref != nil {
		return ref, nil
	}
	if phone != "" {
		return f.byPhone[phone], nil
	}
	return nil, nil
}

// runRecorder collects the callbacks fired by one pipeline run
type runRecorder struct {
	steps    []string
	accepted []*models.Lead
	updated  []*models.Lead
}

func (r *runRecorder) request(jobID string, config models.JobConfig) Request {
	return Request{
		JobID:        jobID,
		Config:       config,
		SkipPlaceIDs: make(map[string]struct{}),
		Progress: func(step string, current, total int) error {
			r.steps = append(r.steps, step)
			return nil
		},
		OnLeadAccepted: func(lead *models.Lead) { r.accepted = append(r.accepted, lead) },
		OnLeadUpdated:  func(lead *models.Lead) { r.updated = append(r.updated, lead) },
	}
}

func leadsFor(placeIDs ...string) []*models.Lead {
	out := make([]*models.Lead, 0, len(placeIDs))
	for _, id := range placeIDs {
		out = append(out, &models.Lead{PlaceID: id, Name: "Biz " + id})
	}
	return out
}

func newTestOrchestrator(scraper *fakeScraper, outreach interfaces.OutreachGenerator, durable interfaces.DurableStore) (*Orchestrator, *fakeEnricher) {
	enricher := &fakeEnricher{}
	o := NewOrchestrator(scraper, enricher, &fakeScorer{}, outreach, durable, arbor.NewLogger())
	return o, enricher
}

func TestRunHappyPath(t *testing.T) {
	scraper := &fakeScraper{leads: leadsFor("p1", "p2", "p3")}
	outreach := &fakeOutreach{}
	o, enricher := newTestOrchestrator(scraper, outreach, nil)

	rec := &runRecorder{}
	result, err := o.Run(context.Background(), rec.request("job1", models.JobConfig{Query: "cafes", UserID: "u1", MaxResults: 20}))
	require.NoError(t, err)

	assert.Len(t, result.Accepted, 3)
	assert.Len(t, rec.accepted, 3)
	assert.Len(t, rec.updated, 3)
	assert.Equal(t, 3, enricher.calls)
	assert.Equal(t, 3, outreach.calls)
	for _, lead := range rec.updated {
		assert.Equal(t, models.StageFinal, lead.Stage)
		require.NotNil(t, lead.Outreach)
		assert.Contains(t, lead.Outreach.EmailSubject, lead.Name)
	}
	assert.Contains(t, rec.steps, StepScraping)
	assert.Contains(t, rec.steps, StepEnriching)
	assert.Contains(t, rec.steps, StepOutreach)
}

func TestRunEmptyScrape(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeScraper{}, &fakeOutreach{}, nil)

	rec := &runRecorder{}
	result, err := o.Run(context.Background(), rec.request("job1", models.JobConfig{Query: "nothing here", UserID: "u1"}))
	require.NoError(t, err)

	assert.Empty(t, result.Accepted)
	assert.Empty(t, rec.accepted)
	assert.Empty(t, rec.updated)
}

func TestRunScrapeFailure(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeScraper{err: errors.New("browser crashed")}, &fakeOutreach{}, nil)

	rec := &runRecorder{}
	_, err := o.Run(context.Background(), rec.request("job1", models.JobConfig{Query: "q", UserID: "u1"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scrape failed")
}

func TestRunSameJobDedup(t *testing.T) {
	scraper := &fakeScraper{leads: leadsFor("p1", "p1", "p2")}
	o, _ := newTestOrchestrator(scraper, &fakeOutreach{}, nil)

	rec := &runRecorder{}
	result, err := o.Run(context.Background(), rec.request("job1", models.JobConfig{Query: "q", UserID: "u1"}))
	require.NoError(t, err)

	assert.Len(t, result.Accepted, 2)
	assert.Equal(t, 0, result.DuplicatesSkipped) // same-job dups are silent
}

func TestRunCrossJobDedup(t *testing.T) {
	scraper := &fakeScraper{leads: leadsFor("p1", "p2", "p3")}
	durable := &fakeDurable{existing: map[string]*interfaces.ExistingLeadRef{
		"p2": {JobID: "older123", Name: "Biz p2"},
	}}
	o, _ := newTestOrchestrator(scraper, &fakeOutreach{}, durable)

	rec := &runRecorder{}
	result, err := o.Run(context.Background(), rec.request("job1", models.JobConfig{Query: "q", UserID: "u1"}))
	require.NoError(t, err)

	assert.Len(t, result.Accepted, 2)
	assert.Equal(t, 1, result.DuplicatesSkipped)
	assert.Equal(t, []string{"older123"}, result.DuplicateJobIDs)
}

func TestRunPhoneFallbackDedup(t *testing.T) {
	// A re-scraped business whose place id changed must still dedup on
	// the phone; the durable store compares digits-only forms.
	scraper := &fakeScraper{leads: []*models.Lead{
		{PlaceID: "place-B", Name: "Acme", Phone: "+1 (555) 123-4567"},
		{PlaceID: "place-C", Name: "Short", Phone: "555-0134"},
	}}
	durable := &fakeDurable{byPhone: map[string]*interfaces.ExistingLeadRef{
		"15551234567": {JobID: "older123", Name: "Acme"},
	}}
	o, _ := newTestOrchestrator(scraper, &fakeOutreach{}, durable)

	rec := &runRecorder{}
	result, err := o.Run(context.Background(), rec.request("job1", models.JobConfig{Query: "q", UserID: "u1"}))
	require.NoError(t, err)

	require.Len(t, result.Accepted, 1)
	assert.Equal(t, "place-C", result.Accepted[0].PlaceID)
	assert.Equal(t, 1, result.DuplicatesSkipped)
	assert.Equal(t, []string{"older123"}, result.DuplicateJobIDs)
	// Normalized digits for the long number; numbers under 8 digits
	// are not a dedup key at all.
	assert.Equal(t, []string{"15551234567", ""}, durable.gotPhones)
}

func TestRunUnknownPlaceIDNeverDedups(t *testing.T) {
	// "unknown" is a sentinel for listings whose id could not be
	// resolved; two distinct businesses carrying it are both kept.
	scraper := &fakeScraper{leads: []*models.Lead{
		{PlaceID: "unknown", Name: "Biz A"},
		{PlaceID: "unknown", Name: "Biz B"},
		{PlaceID: "", Name: "Biz C"},
	}}
	o, _ := newTestOrchestrator(scraper, &fakeOutreach{}, nil)

	rec := &runRecorder{}
	result, err := o.Run(context.Background(), rec.request("job1", models.JobConfig{Query: "q", UserID: "u1"}))
	require.NoError(t, err)

	assert.Len(t, result.Accepted, 3)
	assert.Equal(t, 0, result.DuplicatesSkipped)
}

func TestRunMinScoreFilter(t *testing.T) {
	scraper := &fakeScraper{leads: leadsFor("low", "high")}
	enricher := &fakeEnricher{}
	scorer := &fakeScorer{totals: map[string]float64{"low": 30, "high": 90}}
	o := NewOrchestrator(scraper, enricher, scorer, &fakeOutreach{}, nil, arbor.NewLogger())

	rec := &runRecorder{}
	config := models.JobConfig{Query: "q", UserID: "u1", MinScore: 50}
	result, err := o.Run(context.Background(), rec.request("job1", config))
	require.NoError(t, err)

	require.Len(t, result.Accepted, 1)
	assert.Equal(t, "high", result.Accepted[0].PlaceID)
}

func TestRunSkipEnrichment(t *testing.T) {
	scraper := &fakeScraper{leads: []*models.Lead{{PlaceID: "p1", Name: "Biz", Phone: "+61 2 9999 0000"}}}
	o, enricher := newTestOrchestrator(scraper, &fakeOutreach{}, nil)

	rec := &runRecorder{}
	config := models.JobConfig{Query: "q", UserID: "u1", SkipEnrichment: true}
	result, err := o.Run(context.Background(), rec.request("job1", config))
	require.NoError(t, err)

	assert.Equal(t, 0, enricher.calls)
	require.Len(t, result.Accepted, 1)
	assert.Equal(t, "+61299990000", result.Accepted[0].WhatsApp)
}

func TestRunSkipOutreach(t *testing.T) {
	scraper := &fakeScraper{leads: leadsFor("p1", "p2")}
	outreach := &fakeOutreach{}
	o, _ := newTestOrchestrator(scraper, outreach, nil)

	rec := &runRecorder{}
	config := models.JobConfig{Query: "q", UserID: "u1", SkipOutreach: true}
	result, err := o.Run(context.Background(), rec.request("job1", config))
	require.NoError(t, err)

	assert.Len(t, result.Accepted, 2)
	assert.Equal(t, 0, outreach.calls)
	assert.Empty(t, rec.updated)
}

func TestRunOutreachFailureContinues(t *testing.T) {
	scraper := &fakeScraper{leads: leadsFor("p1", "p2")}
	outreach := &fakeOutreach{err: errors.New("model overloaded")}
	o, _ := newTestOrchestrator(scraper, outreach, nil)

	rec := &runRecorder{}
	result, err := o.Run(context.Background(), rec.request("job1", models.JobConfig{Query: "q", UserID: "u1"}))
	require.NoError(t, err)

	assert.Len(t, result.Accepted, 2)
	require.Len(t, rec.updated, 2)
	for _, lead := range rec.updated {
		require.NotNil(t, lead.Outreach)
		assert.Empty(t, lead.Outreach.EmailSubject)
		assert.Equal(t, models.StageFinal, lead.Stage)
	}
}

func TestRunCancellation(t *testing.T) {
	scraper := &fakeScraper{leads: leadsFor("p1", "p2", "p3")}
	o, _ := newTestOrchestrator(scraper, &fakeOutreach{}, nil)

	calls := 0
	req := Request{
		JobID:        "job1",
		Config:       models.JobConfig{Query: "q", UserID: "u1"},
		SkipPlaceIDs: make(map[string]struct{}),
		Progress: func(step string, current, total int) error {
			calls++
			if calls > 2 {
				return ErrCancelled
			}
			return nil
		},
		OnLeadAccepted: func(lead *models.Lead) {},
		OnLeadUpdated:  func(lead *models.Lead) {},
	}

	_, err := o.Run(context.Background(), req)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestRunResumeSkipsProcessedLeads(t *testing.T) {
	// Resuming an enrichment-stage job: p1 was accepted by the prior
	// attempt, so it is not re-accepted but still gets fresh outreach.
	outreach := &fakeOutreach{}
	scraper := &fakeScraper{}
	o, _ := newTestOrchestrator(scraper, outreach, nil)

	rec := &runRecorder{}
	req := rec.request("job1", models.JobConfig{Query: "q", UserID: "u1"})
	req.ResumeLeads = leadsFor("p1", "p2")
	req.SkipPlaceIDs = map[string]struct{}{"p1": {}}

	result, err := o.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 0, scraper.calls)
	require.Len(t, result.Accepted, 1)
	assert.Equal(t, "p2", result.Accepted[0].PlaceID)
	assert.Equal(t, 2, outreach.calls) // both leads regenerate outreach
	assert.Len(t, rec.updated, 2)
	assert.Contains(t, rec.steps, StepResuming)
}

func TestRunOutreachOnly(t *testing.T) {
	scraper := &fakeScraper{}
	outreach := &fakeOutreach{}
	o, enricher := newTestOrchestrator(scraper, outreach, nil)

	scored := leadsFor("p1", "p2")
	for _, lead := range scored {
		lead.Score = &models.LeadScore{Total: 70, Tier: "warm"}
		lead.Stage = models.StageScored
	}

	rec := &runRecorder{}
	req := rec.request("job1", models.JobConfig{Query: "q", UserID: "u1"})
	req.ResumeLeads = scored
	req.OutreachOnly = true

	result, err := o.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 0, scraper.calls)
	assert.Equal(t, 0, enricher.calls)
	assert.Equal(t, 2, outreach.calls)
	assert.Len(t, result.Accepted, 2)
	assert.Contains(t, rec.steps, StepResumingOutreach)
}

func TestRunCheckpoints(t *testing.T) {
	scraper := &fakeScraper{leads: leadsFor("p1", "p2")}
	o, _ := newTestOrchestrator(scraper, &fakeOutreach{}, nil)

	type checkpoint struct {
		step string
		ids  []string
	}
	var checkpoints []checkpoint

	rec := &runRecorder{}
	req := rec.request("job1", models.JobConfig{Query: "q", UserID: "u1"})
	req.Checkpoint = func(step string, processedIDs []string, lastIndex int) {
		checkpoints = append(checkpoints, checkpoint{step, processedIDs})
	}

	_, err := o.Run(context.Background(), req)
	require.NoError(t, err)

	require.NotEmpty(t, checkpoints)
	assert.Equal(t, StepEnriching, checkpoints[0].step)
	last := checkpoints[len(checkpoints)-1]
	assert.Equal(t, StepOutreach, last.step)
	assert.Equal(t, []string{"p1", "p2"}, last.ids)
}
