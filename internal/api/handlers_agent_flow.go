package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/defi-health-scanner/internal/service"
)

// handleCreateFlow handles POST /api/agent-flows
func (s *Server) handleCreateFlow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetSecurityScore *float64 `json:"targetSecurityScore"`
		TopN                *int     `json:"topN"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.TargetSecurityScore == nil || req.TopN == nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "targetSecurityScore and topN are required", nil)
		return
	}

	flow, err := s.services.Flows.CreateFlow(r.Context(), walletFrom(r), *req.TargetSecurityScore, *req.TopN)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, flow)
}

// handleListFlows handles GET /api/agent-flows
func (s *Server) handleListFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := s.services.Flows.ListFlows(r.Context(), walletFrom(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"flows": flows,
		"count": len(flows),
	})
}

// handlePreviewFlow handles POST /api/agent-flows/{id}/preview - plan only, nothing is swapped
func (s *Server) handlePreviewFlow(w http.ResponseWriter, r *http.Request) {
	wallet := walletFrom(r)
	flow, err := s.services.Flows.GetFlow(r.Context(), wallet, mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	plan, err := s.services.Portfolios.PreviewRebalance(r.Context(), wallet, flow.TargetSecurityScore, flow.TopN)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, plan)
}

// handleExecuteFlow handles POST /api/agent-flows/{id}/execute. The private key is
// used for this request only and is never stored or logged.
func (s *Server) handleExecuteFlow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PrivateKey string `json:"privateKey"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.PrivateKey == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "privateKey is required", nil)
		return
	}

	wallet := walletFrom(r)
	flow, err := s.services.Flows.GetFlow(r.Context(), wallet, mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	result, err := s.services.Portfolios.Rebalance(r.Context(), service.RebalanceInput{
		WalletAddress:       wallet,
		PrivateKey:          req.PrivateKey,
		TargetSecurityScore: flow.TargetSecurityScore,
		TopN:                flow.TopN,
		FlowID:              flow.ID,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
