package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/leadforge/internal/interfaces"
	"github.com/ternarybob/leadforge/internal/services/outreach"
)

// ResearchHandler serves on-demand company research for stored leads
type ResearchHandler struct {
	research interfaces.ResearchService
	durable  interfaces.DurableStore // may be nil
	logger   arbor.ILogger
}

// NewResearchHandler creates a new research handler. Either dependency
// may be nil when the corresponding backend is not configured.
func NewResearchHandler(research interfaces.ResearchService, durable interfaces.DurableStore, logger arbor.ILogger) *ResearchHandler {
	return &ResearchHandler{
		research: research,
		durable:  durable,
		logger:   logger,
	}
}

// ResearchLead handles POST /api/leads/{id}/research
func (h *ResearchHandler) ResearchLead(w http.ResponseWriter, r *http.Request, leadID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if h.durable == nil {
		WriteError(w, http.StatusServiceUnavailable, "lead storage is not configured")
		return
	}
	if h.research == nil {
		WriteError(w, http.StatusServiceUnavailable, "research is not configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	lead, ownerID, err := h.durable.GetLead(ctx, leadID)
	cancel()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if lead == nil {
		WriteError(w, http.StatusNotFound, "lead not found")
		return
	}
	if ownerID != UserID(r) {
		WriteError(w, http.StatusForbidden, "lead belongs to another user")
		return
	}

	brief, err := h.research.Research(r.Context(), lead)
	if err != nil {
		if errors.Is(err, outreach.ErrRateLimited) {
			WriteError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		h.logger.Warn().Str("lead_id", leadID).Err(err).Msg("Research failed")
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"lead_id":  leadID,
		"research": brief,
	})
}
