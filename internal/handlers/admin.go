package handlers

import (
	"net/http"
)

// GetViolations returns the most recent refused requests, newest first.
func (h *Handler) GetViolations(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdminAuth(w, r); !ok {
		return
	}
	if h.violations == nil {
		writeError(w, http.StatusServiceUnavailable, "Violation log is not configured")
		return
	}

	violations, err := h.violations.Recent(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		h.logger.Error("failed to fetch violations", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch violations")
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"violations": violations,
		"count":      len(violations),
	})
}
