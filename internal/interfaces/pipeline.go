package interfaces

import (
	"context"

	"github.com/ternarybob/leadforge/internal/models"
)

// ProgressFunc reports pipeline progress. Returning an error aborts
// the run; the orchestrator propagates it unchanged so cancellation
// sentinels survive to the caller.
type ProgressFunc func(step string, current, total int) error

// LeadFunc delivers a lead that finished a pipeline stage
type LeadFunc func(lead *models.Lead)

// Scraper produces raw leads for a search query. A total failure is
// returned as an error; there is no partial-result contract.
type Scraper interface {
	Scrape(ctx context.Context, query string, maxResults int) ([]*models.Lead, error)
}

// Enricher adds contact, social, and intelligence data to a lead.
// It must not fail: enrichment errors degrade to minimal enrichment.
type Enricher interface {
	Enrich(ctx context.Context, lead *models.Lead) *models.Lead
}

// Scorer attaches the deterministic quality score to an enriched lead
type Scorer interface {
	Score(lead *models.Lead) *models.Lead
}

// OutreachGenerator writes per-channel outreach copy for a scored
// lead. It may fail per lead; the orchestrator substitutes empty
// outreach and continues the batch.
type OutreachGenerator interface {
	Generate(ctx context.Context, lead *models.Lead, productContext, language string) (*models.OutreachMessages, error)
}

// ResearchService produces an on-demand company brief for a stored lead
type ResearchService interface {
	Research(ctx context.Context, lead *models.Lead) (map[string]interface{}, error)
}
