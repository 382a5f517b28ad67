package outreach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/ternarybob/leadforge/internal/interfaces"
	"github.com/ternarybob/leadforge/internal/models"
)

// ErrRateLimited is returned when the research budget is exhausted
var ErrRateLimited = errors.New("research rate limit exceeded, try again shortly")

// Researcher produces on-demand company briefs for stored leads.
// Results are cached: a brief rarely changes within a week and the
// endpoint is user-triggered. Implements interfaces.ResearchService.
type Researcher struct {
	service *Service
	cache   interfaces.KVCache // may be nil
	limiter *rate.Limiter
}

// NewResearcher wraps the outreach service for research briefs.
// rpm caps research calls per minute across all users.
func NewResearcher(service *Service, cache interfaces.KVCache, rpm int) *Researcher {
	if rpm <= 0 {
		rpm = 10
	}
	return &Researcher{
		service: service,
		cache:   cache,
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60), rpm),
	}
}

// Research returns a structured research brief for the lead
func (r *Researcher) Research(ctx context.Context, lead *models.Lead) (map[string]interface{}, error) {
	cacheKey := "research:" + lead.ID
	if r.cache != nil {
		var cached map[string]interface{}
		if ok, err := r.cache.Get(cacheKey, &cached); err == nil && ok {
			return cached, nil
		}
	}

	if !r.limiter.Allow() {
		return nil, ErrRateLimited
	}

	raw, err := r.service.complete(ctx, researchSystemPrompt, buildResearchPrompt(lead))
	if err != nil {
		return nil, err
	}

	var brief map[string]interface{}
	if err := json.Unmarshal([]byte(StripCodeFences(raw)), &brief); err != nil {
		return nil, fmt.Errorf("failed to parse research response: %w", err)
	}

	if r.cache != nil {
		if err := r.cache.Set(cacheKey, brief, 7*24*time.Hour); err != nil {
			r.service.logger.Debug().Str("lead_id", lead.ID).Err(err).Msg("Research cache write failed")
		}
	}
	return brief, nil
}
