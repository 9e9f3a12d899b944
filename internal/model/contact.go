package model

import (
	"strings"
	"time"
)

// Contact is one addressable person. Only the phone number matters for
// sending: contacts without one are excluded from every send operation.
type Contact struct {
	ID        int64
	FirstName string
	LastName  string
	Phone     string
	Email     string
	Notes     string

	// Imported marks contacts created by a device-book import.
	Imported bool
	// ExternalID is the dedup key for imports; immutable once set.
	ExternalID *string

	GroupIDs []int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Sendable reports whether the contact can receive a message.
func (c *Contact) Sendable() bool {
	return strings.TrimSpace(c.Phone) != ""
}

// DisplayName is the full-name fallback chain: "first last" when both
// are set, the non-empty one when only one is, the phone number when
// neither is, and "Unknown" when there is no phone either.
func (c *Contact) DisplayName() string {
	first := strings.TrimSpace(c.FirstName)
	last := strings.TrimSpace(c.LastName)

	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	case strings.TrimSpace(c.Phone) != "":
		return strings.TrimSpace(c.Phone)
	default:
		return "Unknown"
	}
}

// ContactGroup is a named, colored collection of contacts. Membership is
// many-to-many and lives in the contact_groups join table.
type ContactGroup struct {
	ID        int64
	Name      string
	Color     string
	CreatedAt time.Time
}
