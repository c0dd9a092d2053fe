package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/AnshRaj112/estatehub-backend/internal/models"
	"github.com/AnshRaj112/estatehub-backend/internal/services"
)

// SubmitInquiryRequest is the public contact form, optionally about a property.
type SubmitInquiryRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	Email      string `json:"email" validate:"required,email,max=320"`
	Phone      string `json:"phone" validate:"omitempty,max=40"`
	Message    string `json:"message" validate:"required,min=10,max=5000"`
	PropertyID *int64 `json:"propertyId" validate:"omitempty,gt=0"`
	UserID     string `json:"userId" validate:"omitempty,uuid"`
}

// SubmitInquiry handles POST /api/inquiries. The IP gate runs before it;
// here the sender, the property and the message are checked.
func (h *Handler) SubmitInquiry(w http.ResponseWriter, r *http.Request) {
	var req SubmitInquiryRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	ipAddress := h.resolver.ClientIP(r)
	email := services.NormalizeEmail(req.Email)

	var sender models.CheckResult
	if req.UserID != "" {
		sender = h.blacklist.CheckUser(ctx, req.UserID, email)
	} else {
		sender = h.blacklist.CheckEmailDomain(ctx, services.EmailDomain(email))
	}
	if sender.IsBlacklisted {
		h.recordViolation(r, models.Violation{
			UserID:      req.UserID,
			IPAddress:   ipAddress,
			Type:        models.ViolationTypeFor(sender.Category),
			Message:     sender.Reason,
			ActionTaken: "rejected",
		})
		writeJSON(w, http.StatusForbidden, response{
			Success: false,
			Error:   "You are not allowed to submit inquiries",
			Data:    sender,
		})
		return
	}

	if req.PropertyID != nil && h.blacklist.CheckProperty(ctx, *req.PropertyID).IsBlacklisted {
		writeError(w, http.StatusNotFound, "Property not found")
		return
	}

	if verdict := h.blacklist.ValidateContent(ctx, req.Name+"\n"+req.Message); !verdict.IsValid {
		h.recordViolation(r, models.Violation{
			UserID:      req.UserID,
			IPAddress:   ipAddress,
			Type:        models.ViolationTypeBlockedContent,
			Message:     verdict.BlockedPattern,
			ContentHash: services.ContentFingerprint(req.Message),
			ActionTaken: "rejected",
		})
		writeJSON(w, http.StatusUnprocessableEntity, response{
			Success: false,
			Error:   "Your message contains content that is not allowed",
			Data:    verdict,
		})
		return
	}

	inquiry, err := h.inquiries.CreateInquiry(ctx, models.Inquiry{
		Name:       strings.TrimSpace(req.Name),
		Email:      email,
		Phone:      strings.TrimSpace(req.Phone),
		Message:    req.Message,
		PropertyID: req.PropertyID,
		UserID:     req.UserID,
		IPAddress:  ipAddress,
	})
	if err != nil {
		h.logger.Error("failed to store inquiry", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to submit inquiry")
		return
	}

	writeMessage(w, http.StatusCreated, "Inquiry submitted successfully. We'll get back to you soon!", map[string]any{
		"id": inquiry.ID,
	})
}

// GetInquiries handles GET /api/admin/inquiries (admin only)
func (h *Handler) GetInquiries(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdminAuth(w, r); !ok {
		return
	}

	limit := queryInt(r, "limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := max(queryInt(r, "offset", 0), 0)

	inquiries, total, err := h.inquiries.ListInquiries(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to fetch inquiries", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch inquiries")
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"inquiries": inquiries,
		"total":     total,
	})
}

// recordViolation writes an audit record. Failures are logged, not returned.
func (h *Handler) recordViolation(r *http.Request, v models.Violation) {
	if h.violations == nil {
		return
	}
	v.Path = r.URL.Path
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
	defer cancel()
	if err := h.violations.Record(ctx, v); err != nil {
		h.logger.Error("failed to record violation", "type", v.Type, "err", err)
	}
}
