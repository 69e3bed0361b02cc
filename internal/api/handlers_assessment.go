package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleDashboard handles GET /api/dashboard - every tracked project
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	assessments, err := s.services.Assessments.Dashboard(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"projects": assessments,
		"count":    len(assessments),
	})
}

// handleGetProject handles GET /api/projects/{name}?symbol=
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	symbol := r.URL.Query().Get("symbol")

	assessment, err := s.services.Assessments.AssessProject(r.Context(), name, symbol)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, assessment)
}
