package handlers

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/AnshRaj112/estatehub-backend/internal/models"
	"github.com/AnshRaj112/estatehub-backend/internal/services"
	"github.com/google/uuid"
)

// CheckRequest asks whether one entity is blacklisted. "category" is
// accepted as an alias of "type".
type CheckRequest struct {
	Type     string `json:"type"`
	Category string `json:"category"`
	Value    string `json:"value" validate:"required,max=320"`
	Email    string `json:"email" validate:"omitempty,email,max=320"`
}

// ValidateContentRequest carries free text to test against the content filters.
type ValidateContentRequest struct {
	Content string `json:"content" validate:"required,max=20000"`
}

// CheckBlacklist handles POST /api/blacklist/check
func (h *Handler) CheckBlacklist(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	raw := req.Type
	if raw == "" {
		raw = req.Category
	}
	category, err := models.ParseCategory(raw)
	if err != nil || !category.Checkable() {
		writeError(w, http.StatusBadRequest, "Invalid blacklist type")
		return
	}

	value := strings.TrimSpace(req.Value)
	var result models.CheckResult
	switch category {
	case models.CategoryUser:
		if _, err := uuid.Parse(value); err != nil {
			writeError(w, http.StatusBadRequest, "value must be a valid user id")
			return
		}
		result = h.blacklist.CheckUser(r.Context(), value, req.Email)
	case models.CategoryProperty:
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "value must be a valid property id")
			return
		}
		result = h.blacklist.CheckProperty(r.Context(), id)
	case models.CategoryIP:
		if net.ParseIP(value) == nil {
			writeError(w, http.StatusBadRequest, "value must be a valid IP address")
			return
		}
		result = h.blacklist.CheckIP(r.Context(), value)
	case models.CategoryEmailDomain:
		domain := services.NormalizeDomain(value)
		if strings.Contains(value, "@") {
			domain = services.EmailDomain(services.NormalizeEmail(value))
		}
		if domain == "" {
			writeError(w, http.StatusBadRequest, "value must be a domain or email address")
			return
		}
		result = h.blacklist.CheckEmailDomain(r.Context(), domain)
	}

	writeData(w, http.StatusOK, result)
}

// ValidateContent handles POST /api/blacklist/validate-content
func (h *Handler) ValidateContent(w http.ResponseWriter, r *http.Request) {
	var req ValidateContentRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	writeData(w, http.StatusOK, h.blacklist.ValidateContent(r.Context(), req.Content))
}
