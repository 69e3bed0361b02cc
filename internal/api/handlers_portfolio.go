package api

import (
	"net/http"
	"strconv"

	"github.com/defi-health-scanner/internal/types"
)

const (
	defaultSwapLimit = 50
	maxSwapLimit     = 500
)

// handleWalletTokens handles GET /api/wallet/tokens - valued holdings of the session wallet
func (s *Server) handleWalletTokens(w http.ResponseWriter, r *http.Request) {
	chain := types.ChainID(r.URL.Query().Get("chain"))

	snapshot, err := s.services.Portfolios.WalletPortfolio(r.Context(), chain, walletFrom(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

// handleListSwaps handles GET /api/swaps?limit=
func (s *Server) handleListSwaps(w http.ResponseWriter, r *http.Request) {
	limit := defaultSwapLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxSwapLimit {
		limit = maxSwapLimit
	}

	swaps, err := s.services.Portfolios.ListSwaps(r.Context(), walletFrom(r), limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"swaps": swaps,
		"count": len(swaps),
	})
}
