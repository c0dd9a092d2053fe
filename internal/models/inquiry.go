package models

import "time"

// Inquiry is a contact form submission from the public site, optionally
// about a specific property.
type Inquiry struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	Message    string    `json:"message"`
	PropertyID *int64    `json:"property_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
}
