package handlers

import (
	"net/http"
	"strconv"
)

// PublicProperties handles GET /api/properties/public?limit&offset.
// The body is a bare array; a short page cut off by the backfill budget is
// flagged with X-Feed-Truncated.
func (h *Handler) PublicProperties(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)

	page, err := h.feed.PublicFeed(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("public feed failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch properties")
		return
	}

	if page.Truncated {
		w.Header().Set("X-Feed-Truncated", "true")
	}
	writeJSON(w, http.StatusOK, page.Properties)
}

// queryInt parses an integer query parameter, falling back on absence or
// garbage.
func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
