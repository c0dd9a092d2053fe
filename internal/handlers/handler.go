package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/AnshRaj112/estatehub-backend/internal/database"
	"github.com/AnshRaj112/estatehub-backend/internal/services"
	"github.com/AnshRaj112/estatehub-backend/pkg/clientip"
	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

// Deps are the collaborators shared by every handler.
type Deps struct {
	Blacklist  *services.BlacklistService
	Feed       *services.ListingMediator
	Entries    *services.EntryService
	Auth       *services.AdminAuthenticator
	Violations services.ViolationLog
	Inquiries  database.InquiryStore
	Resolver   clientip.Resolver
	Logger     *log.Logger
}

// Handler exposes the HTTP API.
type Handler struct {
	blacklist  *services.BlacklistService
	feed       *services.ListingMediator
	entries    *services.EntryService
	auth       *services.AdminAuthenticator
	violations services.ViolationLog
	inquiries  database.InquiryStore
	resolver   clientip.Resolver
	validate   *validator.Validate
	logger     *log.Logger
}

// New constructs a Handler.
func New(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Handler{
		blacklist:  d.Blacklist,
		feed:       d.Feed,
		entries:    d.Entries,
		auth:       d.Auth,
		violations: d.Violations,
		inquiries:  d.Inquiries,
		resolver:   d.Resolver,
		validate:   newValidator(),
		logger:     logger,
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// response is the envelope every JSON endpoint except the public feed uses.
type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, response{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, response{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, response{Success: false, Error: message})
}

// decodeBody reads a JSON body into dst and runs struct validation.
// It writes the 400 itself and returns false on failure.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// validationMessage turns the first validator failure into a short message.
func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "Invalid request body"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "uuid":
		return fe.Field() + " must be a valid id"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters long"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters long"
	default:
		return fe.Field() + " is invalid"
	}
}

// Health is the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}
