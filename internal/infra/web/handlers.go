package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ai-agent-pipeline/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.checkpoints.Jobs(r.Context())
	if err != nil {
		http.Error(w, "Failed to list jobs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Jobs []string `json:"jobs"`
	}{Jobs: jobs})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		http.Error(w, "Job archive is not configured", http.StatusNotImplemented)
		return
	}
	jobID := chi.URLParam(r, "jobID")
	job, err := s.archive.FindByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to get job", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) listCheckpoints(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	metas, err := s.checkpoints.List(r.Context(), jobID)
	if err != nil {
		http.Error(w, "Failed to list checkpoints", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, metas)
}

func (s *Server) deleteCheckpoint(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	checkpointID := chi.URLParam(r, "checkpointID")
	if err := s.checkpoints.Delete(r.Context(), jobID, checkpointID); err != nil {
		http.Error(w, "Failed to delete checkpoint", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
