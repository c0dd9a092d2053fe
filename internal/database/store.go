package database

import (
	"context"
	"errors"

	"github.com/AnshRaj112/estatehub-backend/internal/models"
)

// ErrEntryNotFound is returned when an entry id does not exist in its category's table.
var ErrEntryNotFound = errors.New("blacklist entry not found")

// EntryLookup identifies what a detail lookup should match. Only the fields
// belonging to Category are read.
type EntryLookup struct {
	Category   models.Category
	UserID     string
	Email      string
	PropertyID int64
	IPAddress  string
	Domain     string
}

// Predicates is the read side used by the check service: fast boolean
// lookups plus the detail and content-filter reads.
type Predicates interface {
	IsUserBlacklisted(ctx context.Context, userID, email string) (bool, error)
	IsPropertyBlacklisted(ctx context.Context, propertyID int64) (bool, error)
	IsIPBlacklisted(ctx context.Context, ip string) (bool, error)
	IsEmailDomainBlacklisted(ctx context.Context, domain string) (bool, error)

	// LatestActiveEntry returns the most recently created entry that is in
	// effect and matches q, or nil when there is none.
	LatestActiveEntry(ctx context.Context, q EntryLookup) (*models.Entry, error)

	// ActiveContentFilters returns every content filter that is in effect.
	ActiveContentFilters(ctx context.Context) ([]models.Entry, error)
}

// ListOptions pages through a category's entries, newest first.
type ListOptions struct {
	ActiveOnly bool
	Limit      int
	Offset     int
}

// EntryStore is the administrative side of the blacklist tables.
type EntryStore interface {
	GetEntry(ctx context.Context, c models.Category, id string) (*models.Entry, error)
	UpdateEntry(ctx context.Context, c models.Category, id string, u models.EntryUpdate) (*models.Entry, error)
	CreateEntry(ctx context.Context, e models.Entry) (*models.Entry, error)
	ListEntries(ctx context.Context, c models.Category, opts ListOptions) ([]models.Entry, error)
}

// PropertySource pages through publicly listed properties, newest first.
type PropertySource interface {
	ListPublicProperties(ctx context.Context, offset, limit int) ([]models.Property, error)
}

// InquiryStore keeps contact form submissions.
type InquiryStore interface {
	CreateInquiry(ctx context.Context, q models.Inquiry) (*models.Inquiry, error)
	ListInquiries(ctx context.Context, limit, offset int) ([]models.Inquiry, int64, error)
}

// Store is everything the services need from the backend.
type Store interface {
	Predicates
	EntryStore
	PropertySource
	InquiryStore
}
