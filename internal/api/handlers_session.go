package api

import "net/http"

// handleConnectWallet handles POST /api/session - connect a wallet and open a session
func (s *Server) handleConnectWallet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WalletAddress string `json:"walletAddress"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.WalletAddress == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "walletAddress is required", nil)
		return
	}

	user, session, err := s.services.Users.ConnectWallet(r.Context(), req.WalletAddress)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.config.CookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"walletAddress": user.WalletAddress,
		"visits":        len(user.AccessTimes),
		"expiresAt":     session.ExpiresAt,
	})
}

// handleLogout handles DELETE /api/session
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Users.Logout(r.Context(), sessionFrom(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.config.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.CookieSecure,
	})
	w.WriteHeader(http.StatusNoContent)
}
