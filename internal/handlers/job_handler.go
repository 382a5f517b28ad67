package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/leadforge/internal/models"
	"github.com/ternarybob/leadforge/internal/services/jobs"
)

const (
	defaultMaxResults = 20
	maxMaxResults     = 100
	maxContextLength  = 500
)

// JobHandler handles job lifecycle API requests
type JobHandler struct {
	manager  *jobs.Manager
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(manager *jobs.Manager, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		manager:  manager,
		validate: validator.New(),
		logger:   logger,
	}
}

// createJobRequest is the POST /api/jobs payload
type createJobRequest struct {
	Query          string `json:"query" validate:"required,min=2,max=200"`
	MaxResults     int    `json:"max_results"`
	MinScore       int    `json:"min_score" validate:"gte=0,lte=100"`
	SkipEnrichment bool   `json:"skip_enrichment"`
	SkipOutreach   bool   `json:"skip_outreach"`
	ProductContext string `json:"product_context"`
	Language       string `json:"language"`
}

// CreateJob handles POST /api/jobs
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("validation failed: %v", err))
		return
	}

	// Clamp rather than reject: clients routinely send 0 or silly values.
	if req.MaxResults <= 0 {
		req.MaxResults = defaultMaxResults
	}
	if req.MaxResults > maxMaxResults {
		req.MaxResults = maxMaxResults
	}
	if len(req.ProductContext) > maxContextLength {
		req.ProductContext = req.ProductContext[:maxContextLength]
	}
	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = "en"
	}

	config := models.JobConfig{
		Query:          strings.TrimSpace(req.Query),
		UserID:         UserID(r),
		MaxResults:     req.MaxResults,
		MinScore:       req.MinScore,
		SkipEnrichment: req.SkipEnrichment,
		SkipOutreach:   req.SkipOutreach,
		ProductContext: req.ProductContext,
		Language:       language,
	}

	job, err := h.manager.CreateJob(config)
	if err != nil {
		writeJobError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":     job.ID,
		"status":     job.Status,
		"stream_url": fmt.Sprintf("/api/jobs/%s/stream", job.ID),
	})
}

// ListJobs handles GET /api/jobs
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	list := h.manager.ListJobs(UserID(r))
	if list == nil {
		list = []*models.Job{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	job, err := h.requireJob(w, r, jobID)
	if err != nil {
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// CancelJob handles POST /api/jobs/{id}/cancel
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := h.manager.Cancel(jobID, UserID(r)); err != nil {
		writeJobError(w, err)
		return
	}
	WriteSuccess(w, "cancellation requested")
}

// ResumeJob handles POST /api/jobs/{id}/resume
func (h *JobHandler) ResumeJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	job, err := h.manager.Resume(jobID, UserID(r))
	if err != nil {
		writeJobError(w, err)
		return
	}

	h.logger.Info().Str("job_id", jobID).Str("step", job.ResumeStep).Msg("Job resume accepted")
	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":     job.ID,
		"status":     job.Status,
		"stream_url": fmt.Sprintf("/api/jobs/%s/stream", job.ID),
	})
}

// DeleteJob handles DELETE /api/jobs/{id}
func (h *JobHandler) DeleteJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	if err := h.manager.Delete(jobID, UserID(r)); err != nil {
		writeJobError(w, err)
		return
	}
	WriteSuccess(w, "job deleted")
}

// requireJob loads a job and enforces ownership, writing the error
// response itself on failure.
func (h *JobHandler) requireJob(w http.ResponseWriter, r *http.Request, jobID string) (*models.Job, error) {
	job, err := h.manager.GetJob(jobID)
	if err != nil {
		writeJobError(w, err)
		return nil, err
	}
	if job.Config.UserID != UserID(r) {
		writeJobError(w, jobs.ErrNotOwner)
		return nil, jobs.ErrNotOwner
	}
	return job, nil
}
