package pipeline

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/leadforge/internal/common"
	"github.com/ternarybob/leadforge/internal/interfaces"
	"github.com/ternarybob/leadforge/internal/models"
)

// Request describes one pipeline run. For a fresh job ResumeLeads is
// empty; for a resumed job it holds the previously-saved leads, raw
// for an enrichment resume and scored for an outreach-only resume.
type Request struct {
	JobID  string
	Config models.JobConfig

	SkipPlaceIDs map[string]struct{}
	ResumeLeads  []*models.Lead
	OutreachOnly bool

	// Progress is called before each unit of work with the current
	// step; an error return (typically ErrCancelled) aborts the run.
	Progress interfaces.ProgressFunc

	// OnLeadAccepted fires for each lead that passed dedup.
	// OnLeadUpdated fires after outreach generation for leads already
	// accepted (this run or a prior resumed run).
	OnLeadAccepted interfaces.LeadFunc
	OnLeadUpdated  interfaces.LeadFunc

	// Checkpoint persists resume state: last step, accepted place
	// ids, last processed index.
	Checkpoint func(step string, processedIDs []string, lastIndex int)
}

// Result summarizes a completed run
type Result struct {
	Accepted          []*models.Lead
	DuplicatesSkipped int
	DuplicateJobIDs   []string
}

// Orchestrator drives the scrape -> enrich -> score -> outreach
// pipeline for one job, wiring stage callbacks into job store
// mutations and enforcing the dedup contract.
type Orchestrator struct {
	scraper  interfaces.Scraper
	enricher interfaces.Enricher
	scorer   interfaces.Scorer
	outreach interfaces.OutreachGenerator
	durable  interfaces.DurableStore // nil disables cross-job dedup
	logger   arbor.ILogger
}

// NewOrchestrator wires the four stage implementations. durable may
// be nil.
func NewOrchestrator(
	scraper interfaces.Scraper,
	enricher interfaces.Enricher,
	scorer interfaces.Scorer,
	outreach interfaces.OutreachGenerator,
	durable interfaces.DurableStore,
	logger arbor.ILogger,
) *Orchestrator {
	return &Orchestrator{
		scraper:  scraper,
		enricher: enricher,
		scorer:   scorer,
		outreach: outreach,
		durable:  durable,
		logger:   logger,
	}
}

// Run executes the pipeline. It returns ErrCancelled (possibly
// wrapped) when a progress checkpoint observed cancellation, any
// other error for a fatal failure, and a Result otherwise. A scrape
// returning no leads short-circuits to an empty successful result.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	result := &Result{}

	if req.OutreachOnly {
		if err := o.runOutreach(ctx, req, req.ResumeLeads); err != nil {
			return nil, err
		}
		result.Accepted = req.ResumeLeads
		return result, nil
	}

	var raw []*models.Lead
	if len(req.ResumeLeads) > 0 {
		if err := req.Progress(StepResuming, 0, len(req.ResumeLeads)); err != nil {
			return nil, err
		}
		raw = req.ResumeLeads
	} else {
		if err := req.Progress(StepScraping, 0, req.Config.MaxResults); err != nil {
			return nil, err
		}
		scraped, err := o.scraper.Scrape(ctx, req.Config.Query, req.Config.MaxResults)
		if err != nil {
			return nil, fmt.Errorf("scrape failed: %w", err)
		}
		raw = scraped
	}

	if len(raw) == 0 {
		o.logger.Info().Str("job_id", req.JobID).Msg("Scrape returned no results")
		return result, nil
	}

	seen := make(map[string]struct{})
	var outreachQueue []*models.Lead

	for i, lead := range raw {
		if err := req.Progress(StepEnriching, i+1, len(raw)); err != nil {
			return nil, err
		}

		enriched := o.enrich(ctx, lead, req.Config.SkipEnrichment)
		scored := o.scorer.Score(enriched)

		if scored.TotalScore() < float64(req.Config.MinScore) {
			continue
		}

		accepted, resumeSkip := o.acceptLead(ctx, req, seen, scored, result)
		if accepted {
			req.OnLeadAccepted(scored)
			result.Accepted = append(result.Accepted, scored)
		}
		if accepted || resumeSkip {
			outreachQueue = append(outreachQueue, scored)
		}

		if req.Checkpoint != nil {
			req.Checkpoint(StepEnriching, processedIDs(outreachQueue), i)
		}
	}

	if err := o.runOutreach(ctx, req, outreachQueue); err != nil {
		return nil, err
	}
	return result, nil
}

// acceptLead applies the dedup contract. Returns (accepted,
// resumeSkip): a lead already processed by a prior attempt of a
// resumed job is not re-accepted but still flows to outreach.
func (o *Orchestrator) acceptLead(ctx context.Context, req Request, seen map[string]struct{}, lead *models.Lead, result *Result) (bool, bool) {
	// Same-job duplicate: reject silently. The "unknown" sentinel and
	// the empty string are not identities and never match.
	if dedupablePlaceID(lead.PlaceID) {
		if _, dup := seen[lead.PlaceID]; dup {
			return false, false
		}
		seen[lead.PlaceID] = struct{}{}
	}

	// Already processed by the run being resumed: skip silently but
	// keep it for outreach regeneration.
	if _, skip := req.SkipPlaceIDs[lead.PlaceID]; skip {
		return false, true
	}

	// Cross-job duplicate via the durable mirror. The phone fallback
	// compares digits-only forms, so the normalized number is passed.
	if o.durable != nil {
		phone := ""
		if normalized := common.NormalizePhone(lead.Phone); len(normalized) >= 8 {
			phone = normalized
		}
		existing, err := o.durable.CheckLeadExists(ctx, req.Config.UserID, lead.PlaceID, phone)
		if err != nil {
			o.logger.Warn().
				Str("job_id", req.JobID).
				Err(err).
				Msg("Cross-job dedup check failed")
		} else if existing != nil {
			result.DuplicatesSkipped++
			if existing.JobID != "" && !containsString(result.DuplicateJobIDs, existing.JobID) {
				result.DuplicateJobIDs = append(result.DuplicateJobIDs, existing.JobID)
			}
			o.logger.Debug().
				Str("job_id", req.JobID).
				Str("place_id", lead.PlaceID).
				Str("existing_job", existing.JobID).
				Msg("Cross-job duplicate skipped")
			return false, false
		}
	}

	return true, false
}

// enrich runs the enrichment stage or degrades to minimal enrichment
// when skipped. Enrichers never fail; a skipped lead still gets its
// messaging handle derived from the phone number.
func (o *Orchestrator) enrich(ctx context.Context, lead *models.Lead, skip bool) *models.Lead {
	if skip {
		lead.WhatsApp = common.PhoneToWhatsApp(lead.Phone)
		lead.Stage = models.StageEnriched
		return lead
	}
	return o.enricher.Enrich(ctx, lead)
}

// runOutreach generates per-channel copy for each queued lead. A
// per-lead generation failure substitutes empty outreach and the
// batch continues.
func (o *Orchestrator) runOutreach(ctx context.Context, req Request, leads []*models.Lead) error {
	if req.Config.SkipOutreach || len(leads) == 0 {
		return nil
	}
	if o.outreach == nil {
		o.logger.Warn().Str("job_id", req.JobID).Msg("No outreach generator configured, skipping outreach")
		return nil
	}

	step := StepOutreach
	if req.OutreachOnly {
		step = StepResumingOutreach
	}

	for i, lead := range leads {
		if err := req.Progress(step, i+1, len(leads)); err != nil {
			return err
		}

		messages, err := o.outreach.Generate(ctx, lead, req.Config.ProductContext, req.Config.Language)
		if err != nil {
			o.logger.Warn().
				Str("job_id", req.JobID).
				Str("place_id", lead.PlaceID).
				Err(err).
				Msg("Outreach generation failed, continuing with empty messages")
			messages = &models.OutreachMessages{}
		}
		lead.Outreach = messages
		lead.Stage = models.StageFinal
		req.OnLeadUpdated(lead)

		if req.Checkpoint != nil {
			req.Checkpoint(step, processedIDs(leads[:i+1]), i)
		}
	}
	return nil
}

// dedupablePlaceID reports whether a place id identifies a listing.
// Scrapes that could not resolve an id carry "" or "unknown".
func dedupablePlaceID(placeID string) bool {
	return placeID != "" && placeID != "unknown"
}

func processedIDs(leads []*models.Lead) []string {
	ids := make([]string, 0, len(leads))
	for _, l := range leads {
		ids = append(ids, l.PlaceID)
	}
	return ids
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
