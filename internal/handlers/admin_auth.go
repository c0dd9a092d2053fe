package handlers

import (
	"net/http"
)

// requireAdminAuth verifies the bearer credential and returns the admin id.
// On failure it writes the 401 and returns false; callers must not touch any
// table before it succeeds.
func (h *Handler) requireAdminAuth(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.auth == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	adminID, err := h.auth.Authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	return adminID, true
}
