package httpapi

import (
	"net/http"
	"strings"
	"time"

	"tradebook.org/internal/auth"
)

type tokenRequest struct {
	OwnerID string `json:"owner_id"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

const tokenTTL = 15 * time.Minute

func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !auth.Enabled() {
		writeError(w, r, http.StatusServiceUnavailable, "token signing is not configured")
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	owner := strings.TrimSpace(req.OwnerID)
	if owner == "" {
		writeError(w, r, http.StatusBadRequest, "owner_id is required")
		return
	}

	token, err := auth.GenerateToken(owner, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	expiresAt := time.Now().UTC().Add(tokenTTL)
	a.audit(r.Context(), "auth.token.issued", "", map[string]any{
		"owner_id":   owner,
		"expires_at": expiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
