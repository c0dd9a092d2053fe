package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Category is the dimension a blacklist check or entry applies to.
type Category string

const (
	CategoryUser        Category = "user"
	CategoryProperty    Category = "property"
	CategoryIP          Category = "ip"
	CategoryEmailDomain Category = "email_domain"
	CategoryContent     Category = "content"
)

// ErrUnknownCategory is returned by ParseCategory for anything outside the closed set.
var ErrUnknownCategory = errors.New("unknown blacklist category")

// ParseCategory is the single boundary where category strings become a Category.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	switch c {
	case CategoryUser, CategoryProperty, CategoryIP, CategoryEmailDomain, CategoryContent:
		return c, nil
	}
	return "", ErrUnknownCategory
}

// Checkable reports whether the category can be passed to the check endpoint.
// Content goes through content validation instead.
func (c Category) Checkable() bool {
	return c != CategoryContent && c != ""
}

// MatchType controls how a content filter pattern is compared to text.
type MatchType string

const (
	MatchContains MatchType = "contains"
	MatchExact    MatchType = "exact"
	MatchRegex    MatchType = "regex"
)

// Entry is one row of a category's blacklist table. Only the key fields of
// the entry's category are populated.
type Entry struct {
	ID       string   `json:"id"`
	Category Category `json:"type"`

	UserID     string    `json:"userId,omitempty"`
	Email      string    `json:"email,omitempty"`
	PropertyID int64     `json:"propertyId,omitempty"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	Domain     string    `json:"domain,omitempty"`
	Pattern    string    `json:"pattern,omitempty"`
	MatchType  MatchType `json:"matchType,omitempty"`

	Reason    string     `json:"reason"`
	BlockedAt time.Time  `json:"blockedAt"`
	ExpiresAt *time.Time `json:"expiresAt"`
	IsActive  bool       `json:"isActive"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// InEffect reports whether the entry blocks at the given instant.
func (e *Entry) InEffect(now time.Time) bool {
	if e == nil || !e.IsActive {
		return false
	}
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}

// EntryUpdate carries the editable subset of entry fields. A nil pointer
// leaves the field unchanged. ClearExpiry makes the entry permanent.
type EntryUpdate struct {
	Reason      *string
	ExpiresAt   *time.Time
	ClearExpiry bool
	IsActive    *bool
	Notes       *string
}

// Empty reports whether the update changes nothing.
func (u EntryUpdate) Empty() bool {
	return u.Reason == nil && u.ExpiresAt == nil && !u.ClearExpiry && u.IsActive == nil && u.Notes == nil
}

// Apply merges the update into e and stamps UpdatedAt.
func (u EntryUpdate) Apply(e *Entry, now time.Time) {
	if u.Reason != nil {
		e.Reason = *u.Reason
	}
	if u.ClearExpiry {
		e.ExpiresAt = nil
	} else if u.ExpiresAt != nil {
		t := *u.ExpiresAt
		e.ExpiresAt = &t
	}
	if u.IsActive != nil {
		e.IsActive = *u.IsActive
	}
	if u.Notes != nil {
		e.Notes = *u.Notes
	}
	e.UpdatedAt = now
}

// CheckResult is the outcome of one logical blacklist check.
type CheckResult struct {
	IsBlacklisted bool
	Category      Category
	Reason        string
	BlockedAt     *time.Time
	ExpiresAt     *time.Time

	// HasDetails is false when the entity is blocked but the detail lookup
	// failed or came back empty.
	HasDetails bool
}

type checkResultJSON struct {
	IsBlacklisted bool       `json:"isBlacklisted"`
	Type          Category   `json:"type"`
	Reason        string     `json:"reason,omitempty"`
	BlockedAt     *time.Time `json:"blockedAt,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt"`
}

type checkResultNoExpiryJSON struct {
	IsBlacklisted bool     `json:"isBlacklisted"`
	Type          Category `json:"type"`
}

// MarshalJSON writes the wire shape. Blocked results with details always carry
// expiresAt (null for permanent blocks); other results omit the detail fields.
func (r CheckResult) MarshalJSON() ([]byte, error) {
	if !r.IsBlacklisted || !r.HasDetails {
		return json.Marshal(checkResultNoExpiryJSON{IsBlacklisted: r.IsBlacklisted, Type: r.Category})
	}
	return json.Marshal(checkResultJSON{
		IsBlacklisted: true,
		Type:          r.Category,
		Reason:        r.Reason,
		BlockedAt:     r.BlockedAt,
		ExpiresAt:     r.ExpiresAt,
	})
}

// UnmarshalJSON reads the wire shape back.
func (r *CheckResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		IsBlacklisted bool            `json:"isBlacklisted"`
		Type          Category        `json:"type"`
		Reason        string          `json:"reason"`
		BlockedAt     *time.Time      `json:"blockedAt"`
		ExpiresAt     json.RawMessage `json:"expiresAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = CheckResult{
		IsBlacklisted: raw.IsBlacklisted,
		Category:      raw.Type,
		Reason:        raw.Reason,
		BlockedAt:     raw.BlockedAt,
		HasDetails:    raw.IsBlacklisted && raw.ExpiresAt != nil,
	}
	if len(raw.ExpiresAt) > 0 && string(raw.ExpiresAt) != "null" {
		var t time.Time
		if err := json.Unmarshal(raw.ExpiresAt, &t); err != nil {
			return err
		}
		r.ExpiresAt = &t
	}
	return nil
}

// NotBlacklisted is the safe default for a category.
func NotBlacklisted(c Category) CheckResult {
	return CheckResult{Category: c}
}

// ResultFromEntry builds a blocked result from a detail row. A nil entry
// yields a blocked result without details.
func ResultFromEntry(c Category, e *Entry) CheckResult {
	res := CheckResult{IsBlacklisted: true, Category: c}
	if e == nil {
		return res
	}
	blockedAt := e.BlockedAt
	res.Reason = e.Reason
	res.BlockedAt = &blockedAt
	if e.ExpiresAt != nil {
		exp := *e.ExpiresAt
		res.ExpiresAt = &exp
	}
	res.HasDetails = true
	return res
}

// ContentValidation is the result of testing free text against the content filters.
type ContentValidation struct {
	IsValid        bool   `json:"isValid"`
	BlockedPattern string `json:"blockedPattern,omitempty"`
}
