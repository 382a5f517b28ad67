package server

import (
	"net/http"

	"github.com/ternarybob/leadforge/internal/handlers"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket event mirror
	mux.HandleFunc("/ws", s.app.WSHandler.StreamJob)

	// API routes - Jobs
	mux.HandleFunc("/api/jobs", s.handleJobsCollection) // GET (list), POST (create)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes)     // Handles /api/jobs/{id} and subpaths

	// API routes - Leads
	mux.HandleFunc("/api/leads/", s.handleLeadRoutes) // Handles /api/leads/{id}/research

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.Version)
	mux.HandleFunc("/api/health", s.app.APIHandler.Health)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFound)

	return mux
}

// handleJobsCollection dispatches /api/jobs by method
func (s *Server) handleJobsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.app.JobHandler.ListJobs(w, r)
	case http.MethodPost:
		s.app.JobHandler.CreateJob(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobRoutes routes /api/jobs/{id} and its subpaths
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	jobID, action := handlers.JobIDFromPath(r.URL.Path, "/api/jobs/")
	if jobID == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch action {
	case "":
		// GET /api/jobs/{id}, DELETE /api/jobs/{id}
		switch r.Method {
		case http.MethodGet:
			s.app.JobHandler.GetJob(w, r, jobID)
		case http.MethodDelete:
			s.app.JobHandler.DeleteJob(w, r, jobID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "cancel":
		s.app.JobHandler.CancelJob(w, r, jobID)
	case "resume":
		s.app.JobHandler.ResumeJob(w, r, jobID)
	case "stream":
		s.app.StreamHandler.StreamJob(w, r, jobID)
	case "export":
		s.app.ExportHandler.ExportJob(w, r, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleLeadRoutes routes /api/leads/{id}/research
func (s *Server) handleLeadRoutes(w http.ResponseWriter, r *http.Request) {
	leadID, action := handlers.JobIDFromPath(r.URL.Path, "/api/leads/")
	if leadID == "" || action != "research" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	s.app.ResearchHandler.ResearchLead(w, r, leadID)
}
