package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/leadforge/internal/models"
	"github.com/ternarybob/leadforge/internal/services/jobs"
)

// ExportHandler serves a job's leads as a flat CSV or JSON download
type ExportHandler struct {
	manager *jobs.Manager
	logger  arbor.ILogger
}

// NewExportHandler creates a new export handler
func NewExportHandler(manager *jobs.Manager, logger arbor.ILogger) *ExportHandler {
	return &ExportHandler{
		manager: manager,
		logger:  logger,
	}
}

// ExportJob handles GET /api/jobs/{id}/export?format=csv|json
func (h *ExportHandler) ExportJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	job, err := h.manager.GetJob(jobID)
	if err != nil {
		writeJobError(w, err)
		return
	}
	if job.Config.UserID != UserID(r) {
		writeJobError(w, jobs.ErrNotOwner)
		return
	}

	leads, err := h.manager.GetLeads(jobID)
	if err != nil {
		writeJobError(w, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	switch format {
	case "csv":
		h.writeCSV(w, jobID, leads)
	case "json":
		h.writeJSON(w, jobID, leads)
	default:
		WriteError(w, http.StatusBadRequest, "invalid format, valid values are: csv, json")
	}
}

func (h *ExportHandler) writeCSV(w http.ResponseWriter, jobID string, leads []*models.Lead) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="leads_%s.csv"`, jobID))

	writer := csv.NewWriter(w)
	if err := writer.Write(models.ExportColumns); err != nil {
		h.logger.Warn().Str("job_id", jobID).Err(err).Msg("CSV export aborted")
		return
	}
	for _, lead := range leads {
		if err := writer.Write(lead.ExportRow()); err != nil {
			h.logger.Warn().Str("job_id", jobID).Err(err).Msg("CSV export aborted")
			return
		}
	}
	writer.Flush()
}

func (h *ExportHandler) writeJSON(w http.ResponseWriter, jobID string, leads []*models.Lead) {
	rows := make([]models.ExportObject, 0, len(leads))
	for _, lead := range leads {
		rows = append(rows, lead.ToExportObject())
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id": jobID,
		"count":  len(rows),
		"leads":  rows,
	})
}
