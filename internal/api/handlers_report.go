package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleUnlockReports handles POST /api/reports/unlock with a payment transaction hash
func (s *Server) handleUnlockReports(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TxHash string `json:"txHash"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	grant, err := s.services.Reports.UnlockReports(r.Context(), walletFrom(r), req.TxHash)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, grant)
}

// handleGetReport handles GET /api/reports/{project}
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.services.Reports.GetReport(r.Context(), walletFrom(r), mux.Vars(r)["project"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}
