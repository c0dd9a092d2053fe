package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/AnshRaj112/estatehub-backend/internal/database"
	"github.com/AnshRaj112/estatehub-backend/internal/models"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

var (
	// ErrInvalidEntryID is returned when an id does not have its category's shape.
	ErrInvalidEntryID = errors.New("invalid blacklist entry id")
	// ErrInvalidEntry is returned when a new entry is missing its category's key.
	ErrInvalidEntry = errors.New("invalid blacklist entry")
)

const (
	defaultEntryPageSize = 50
	maxEntryPageSize     = 200
)

// CacheClearer is implemented by BlacklistService.
type CacheClearer interface {
	ClearCache()
}

// EntryService is the admin side of the blacklist. Every successful
// mutation clears the check cache.
type EntryService struct {
	store  database.EntryStore
	cache  CacheClearer
	logger *log.Logger
}

// NewEntryService creates the admin entry service.
func NewEntryService(store database.EntryStore, cache CacheClearer, logger *log.Logger) *EntryService {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &EntryService{store: store, cache: cache, logger: logger.WithPrefix("entries")}
}

// ValidateEntryID checks id against the id kind of c: integers for property
// and content entries, UUIDs for the rest.
func ValidateEntryID(c models.Category, id string) error {
	id = strings.TrimSpace(id)
	switch c {
	case models.CategoryProperty, models.CategoryContent:
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil || n <= 0 {
			return ErrInvalidEntryID
		}
	case models.CategoryUser, models.CategoryIP, models.CategoryEmailDomain:
		if _, err := uuid.Parse(id); err != nil {
			return ErrInvalidEntryID
		}
	default:
		return models.ErrUnknownCategory
	}
	return nil
}

// GetEntry fetches one row. database.ErrEntryNotFound is passed through.
func (s *EntryService) GetEntry(ctx context.Context, c models.Category, id string) (*models.Entry, error) {
	if err := ValidateEntryID(c, id); err != nil {
		return nil, err
	}
	return s.store.GetEntry(ctx, c, strings.TrimSpace(id))
}

// UpdateEntry merges the editable fields and stamps updatedAt.
func (s *EntryService) UpdateEntry(ctx context.Context, c models.Category, id string, u models.EntryUpdate) (*models.Entry, error) {
	if err := ValidateEntryID(c, id); err != nil {
		return nil, err
	}
	entry, err := s.store.UpdateEntry(ctx, c, strings.TrimSpace(id), u)
	if err != nil {
		return nil, err
	}
	s.cache.ClearCache()
	s.logger.Info("blacklist entry updated", "type", c, "id", entry.ID, "active", entry.IsActive)
	return entry, nil
}

// DeactivateEntry is the only delete: the row stays, isActive becomes false.
func (s *EntryService) DeactivateEntry(ctx context.Context, c models.Category, id string) (*models.Entry, error) {
	inactive := false
	return s.UpdateEntry(ctx, c, id, models.EntryUpdate{IsActive: &inactive})
}

// CreateEntry validates the category key and inserts an active entry.
func (s *EntryService) CreateEntry(ctx context.Context, e models.Entry) (*models.Entry, error) {
	if err := validateNewEntry(&e); err != nil {
		return nil, err
	}
	e.IsActive = true

	entry, err := s.store.CreateEntry(ctx, e)
	if err != nil {
		return nil, err
	}
	s.cache.ClearCache()
	s.logger.Info("blacklist entry created", "type", e.Category, "id", entry.ID)
	return entry, nil
}

// ListEntries pages through a category newest first.
func (s *EntryService) ListEntries(ctx context.Context, c models.Category, activeOnly bool, limit, offset int) ([]models.Entry, error) {
	if _, err := models.ParseCategory(string(c)); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultEntryPageSize
	}
	if limit > maxEntryPageSize {
		limit = maxEntryPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListEntries(ctx, c, database.ListOptions{ActiveOnly: activeOnly, Limit: limit, Offset: offset})
}

func validateNewEntry(e *models.Entry) error {
	if strings.TrimSpace(e.Reason) == "" {
		return fmt.Errorf("%w: reason is required", ErrInvalidEntry)
	}

	switch e.Category {
	case models.CategoryUser:
		if _, err := uuid.Parse(e.UserID); err != nil {
			return fmt.Errorf("%w: userId must be a UUID", ErrInvalidEntry)
		}
		e.Email = NormalizeEmail(e.Email)
	case models.CategoryProperty:
		if e.PropertyID <= 0 {
			return fmt.Errorf("%w: propertyId must be positive", ErrInvalidEntry)
		}
	case models.CategoryIP:
		e.IPAddress = strings.TrimSpace(e.IPAddress)
		if !validIPOrCIDR(e.IPAddress) {
			return fmt.Errorf("%w: ipAddress must be an IP address or CIDR range", ErrInvalidEntry)
		}
	case models.CategoryEmailDomain:
		e.Domain = NormalizeDomain(e.Domain)
		if e.Domain == "" || strings.Contains(e.Domain, "@") {
			return fmt.Errorf("%w: domain must be a bare domain name", ErrInvalidEntry)
		}
	case models.CategoryContent:
		if strings.TrimSpace(e.Pattern) == "" {
			return fmt.Errorf("%w: pattern is required", ErrInvalidEntry)
		}
		switch e.MatchType {
		case "":
			e.MatchType = models.MatchContains
		case models.MatchContains, models.MatchExact:
		case models.MatchRegex:
			if _, err := regexp.Compile(e.Pattern); err != nil {
				return fmt.Errorf("%w: pattern is not a valid regular expression", ErrInvalidEntry)
			}
		default:
			return fmt.Errorf("%w: unknown matchType %q", ErrInvalidEntry, e.MatchType)
		}
	default:
		return models.ErrUnknownCategory
	}
	return nil
}

func validIPOrCIDR(s string) bool {
	if strings.Contains(s, "/") {
		_, _, err := net.ParseCIDR(s)
		return err == nil
	}
	return net.ParseIP(s) != nil
}
