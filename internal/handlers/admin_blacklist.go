package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/AnshRaj112/estatehub-backend/internal/database"
	"github.com/AnshRaj112/estatehub-backend/internal/models"
	"github.com/AnshRaj112/estatehub-backend/internal/services"
	"github.com/go-chi/chi/v5"
)

// optionalTime distinguishes an absent field from an explicit null.
type optionalTime struct {
	Set   bool
	Value *time.Time
}

func (o *optionalTime) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}

// UpdateEntryRequest carries the editable fields. "expiresAt": null makes
// the entry permanent; an absent field is left unchanged.
type UpdateEntryRequest struct {
	Reason    *string      `json:"reason" validate:"omitempty,min=1,max=1000"`
	ExpiresAt optionalTime `json:"expiresAt"`
	IsActive  *bool        `json:"isActive"`
	Notes     *string      `json:"notes" validate:"omitempty,max=2000"`
}

func (req UpdateEntryRequest) toUpdate() models.EntryUpdate {
	u := models.EntryUpdate{Reason: req.Reason, IsActive: req.IsActive, Notes: req.Notes}
	if req.ExpiresAt.Set {
		if req.ExpiresAt.Value == nil {
			u.ClearExpiry = true
		} else {
			u.ExpiresAt = req.ExpiresAt.Value
		}
	}
	return u
}

// CreateEntryRequest is a new entry; only the key of the path's type is read.
type CreateEntryRequest struct {
	UserID     string           `json:"userId"`
	Email      string           `json:"email" validate:"omitempty,email,max=320"`
	PropertyID int64            `json:"propertyId"`
	IPAddress  string           `json:"ipAddress"`
	Domain     string           `json:"domain" validate:"max=255"`
	Pattern    string           `json:"pattern" validate:"max=500"`
	MatchType  models.MatchType `json:"matchType"`
	Reason     string           `json:"reason" validate:"required,max=1000"`
	ExpiresAt  *time.Time       `json:"expiresAt"`
	Notes      string           `json:"notes" validate:"max=2000"`
}

// entryCategory parses the {type} URL parameter, writing a 400 for unknown types.
func entryCategory(w http.ResponseWriter, r *http.Request) (models.Category, bool) {
	category, err := models.ParseCategory(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid blacklist type")
		return "", false
	}
	return category, true
}

// entryTarget resolves {type} and {id}, writing a 400 when either is malformed.
func entryTarget(w http.ResponseWriter, r *http.Request) (models.Category, string, bool) {
	category, ok := entryCategory(w, r)
	if !ok {
		return "", "", false
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if err := services.ValidateEntryID(category, id); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid blacklist entry id")
		return "", "", false
	}
	return category, id, true
}

// writeEntryError maps entry service errors to status codes.
func (h *Handler) writeEntryError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, database.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "Blacklist entry not found")
	case errors.Is(err, models.ErrUnknownCategory):
		writeError(w, http.StatusBadRequest, "Invalid blacklist type")
	case errors.Is(err, services.ErrInvalidEntryID):
		writeError(w, http.StatusBadRequest, "Invalid blacklist entry id")
	case errors.Is(err, services.ErrInvalidEntry):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("blacklist entry "+action+" failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to "+action+" blacklist entry")
	}
}

// GetEntry handles GET /api/admin/blacklist/{type}/{id}
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdminAuth(w, r); !ok {
		return
	}
	category, id, ok := entryTarget(w, r)
	if !ok {
		return
	}

	entry, err := h.entries.GetEntry(r.Context(), category, id)
	if err != nil {
		h.writeEntryError(w, err, "fetch")
		return
	}
	writeData(w, http.StatusOK, entry)
}

// UpdateEntry handles PUT /api/admin/blacklist/{type}/{id}
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.requireAdminAuth(w, r)
	if !ok {
		return
	}
	category, id, ok := entryTarget(w, r)
	if !ok {
		return
	}

	var req UpdateEntryRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	update := req.toUpdate()
	if update.Empty() {
		writeError(w, http.StatusBadRequest, "No editable fields provided")
		return
	}

	entry, err := h.entries.UpdateEntry(r.Context(), category, id, update)
	if err != nil {
		h.writeEntryError(w, err, "update")
		return
	}
	h.logger.Info("admin updated blacklist entry", "admin", adminID, "type", category, "id", id)
	writeMessage(w, http.StatusOK, "Blacklist entry updated successfully", entry)
}

// DeleteEntry handles DELETE /api/admin/blacklist/{type}/{id}. The entry is
// deactivated, never removed.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.requireAdminAuth(w, r)
	if !ok {
		return
	}
	category, id, ok := entryTarget(w, r)
	if !ok {
		return
	}

	entry, err := h.entries.DeactivateEntry(r.Context(), category, id)
	if err != nil {
		h.writeEntryError(w, err, "deactivate")
		return
	}
	h.logger.Info("admin deactivated blacklist entry", "admin", adminID, "type", category, "id", id)
	writeMessage(w, http.StatusOK, "Blacklist entry deactivated successfully", entry)
}

// ListEntries handles GET /api/admin/blacklist/{type}?active=true&limit&offset
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdminAuth(w, r); !ok {
		return
	}
	category, ok := entryCategory(w, r)
	if !ok {
		return
	}

	activeOnly := r.URL.Query().Get("active") == "true"
	entries, err := h.entries.ListEntries(r.Context(), category, activeOnly, queryInt(r, "limit", 0), queryInt(r, "offset", 0))
	if err != nil {
		h.writeEntryError(w, err, "list")
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"type":    category,
		"entries": entries,
		"count":   len(entries),
	})
}

// CreateEntry handles POST /api/admin/blacklist/{type}
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.requireAdminAuth(w, r)
	if !ok {
		return
	}
	category, ok := entryCategory(w, r)
	if !ok {
		return
	}

	var req CreateEntryRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	entry, err := h.entries.CreateEntry(r.Context(), models.Entry{
		Category:   category,
		UserID:     strings.TrimSpace(req.UserID),
		Email:      req.Email,
		PropertyID: req.PropertyID,
		IPAddress:  req.IPAddress,
		Domain:     req.Domain,
		Pattern:    req.Pattern,
		MatchType:  req.MatchType,
		Reason:     req.Reason,
		ExpiresAt:  req.ExpiresAt,
		Notes:      req.Notes,
	})
	if err != nil {
		h.writeEntryError(w, err, "create")
		return
	}
	h.logger.Info("admin created blacklist entry", "admin", adminID, "type", category, "id", entry.ID)
	writeMessage(w, http.StatusCreated, "Blacklist entry created successfully", entry)
}

// ClearCache handles POST /api/admin/blacklist/cache/clear
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.requireAdminAuth(w, r)
	if !ok {
		return
	}
	h.blacklist.ClearCache()
	h.logger.Info("admin cleared check cache", "admin", adminID)
	writeMessage(w, http.StatusOK, "Blacklist cache cleared", nil)
}
