package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ViolationType string

const (
	ViolationTypeBlockedIP          ViolationType = "blocked_ip"
	ViolationTypeBlockedUser        ViolationType = "blocked_user"
	ViolationTypeBlockedEmailDomain ViolationType = "blocked_email_domain"
	ViolationTypeBlockedContent     ViolationType = "blocked_content"
)

// ViolationTypeFor maps a check category to the violation recorded when it refuses a request.
func ViolationTypeFor(c Category) ViolationType {
	switch c {
	case CategoryUser:
		return ViolationTypeBlockedUser
	case CategoryEmailDomain:
		return ViolationTypeBlockedEmailDomain
	case CategoryContent:
		return ViolationTypeBlockedContent
	default:
		return ViolationTypeBlockedIP
	}
}

type Violation struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`

	// Who triggered it
	UserID    string `bson:"user_id,omitempty" json:"user_id,omitempty"`
	IPAddress string `bson:"ip_address" json:"ip_address"`

	// Violation details
	Type        ViolationType `bson:"type" json:"type"`
	Message     string        `bson:"message" json:"message"`
	ContentHash string        `bson:"content_hash,omitempty" json:"content_hash,omitempty"`
	Path        string        `bson:"path,omitempty" json:"path,omitempty"`

	ActionTaken string `bson:"action_taken" json:"action_taken"` // "rejected", "blocked"
}
